package n8n

import (
	"context"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/outbox"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"go.uber.org/zap"
)

// Enqueuer accepts outbox jobs
type Enqueuer interface {
	Enqueue(job outbox.Job) error
}

// Dispatcher hands workflow triggers to the outbox so the caller never waits
// on, or fails because of, the webhook.
type Dispatcher struct {
	client *Client
	queue  Enqueuer
	now    func() time.Time
}

// NewDispatcher creates a dispatcher delivering through client via queue
func NewDispatcher(client *Client, queue Enqueuer) *Dispatcher {
	return &Dispatcher{client: client, queue: queue, now: time.Now}
}

// Trigger schedules a workflow delivery. Failures to schedule are logged.
func (d *Dispatcher) Trigger(ctx context.Context, workflow string, tenant Tenant, data interface{}) {
	log := logger.Ctx(ctx).With(zap.String("workflow", workflow), zap.String("tenant_id", tenant.ID))

	if !d.client.Enabled() {
		log.Debug("n8n webhook disabled, workflow skipped")
		return
	}

	payload := NewPayload(workflow, tenant, data, d.now())
	err := d.queue.Enqueue(outbox.Job{
		Name: workflow,
		Run: func(ctx context.Context) error {
			return d.client.Trigger(ctx, payload)
		},
	})
	if err != nil {
		log.Error("Failed to schedule workflow", zap.Error(err))
		return
	}
	log.Info("Workflow scheduled")
}
