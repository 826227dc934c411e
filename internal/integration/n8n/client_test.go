package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/outbox"
)

func TestTriggerPostsPayloadToWorkflowPath(t *testing.T) {
	var (
		gotPath        string
		gotContentType string
		gotBody        map[string]interface{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/webhook/", time.Second)
	now := time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("x", 3600))
	payload := NewPayload(WorkflowTimeTracked, Tenant{ID: "t1", Type: "ALANIS_WEB_DEV"}, map[string]int{"hours": 2}, now)

	if err := client.Trigger(context.Background(), payload); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if gotPath != "/webhook/time-tracked" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if gotBody["workflow"] != WorkflowTimeTracked {
		t.Fatalf("unexpected workflow %v", gotBody["workflow"])
	}
	tenant, _ := gotBody["tenant"].(map[string]interface{})
	if tenant["id"] != "t1" || tenant["type"] != "ALANIS_WEB_DEV" {
		t.Fatalf("unexpected tenant %v", gotBody["tenant"])
	}
	if gotBody["timestamp"] != "2025-03-04T04:06:07.008Z" {
		t.Fatalf("unexpected timestamp %v", gotBody["timestamp"])
	}
	iso := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
	if !iso.MatchString(gotBody["timestamp"].(string)) {
		t.Fatalf("timestamp is not ISO-8601: %v", gotBody["timestamp"])
	}
	data, _ := gotBody["data"].(map[string]interface{})
	if data["hours"] != float64(2) {
		t.Fatalf("unexpected data %v", gotBody["data"])
	}
}

func TestTriggerClassifiesFailures(t *testing.T) {
	status := http.StatusInternalServerError
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	payload := NewPayload(WorkflowWeeklyReport, Tenant{ID: "t1"}, nil, time.Now())

	err := client.Trigger(context.Background(), payload)
	if err == nil || outbox.IsPermanent(err) {
		t.Fatalf("expected retryable error for 500, got %v", err)
	}

	status = http.StatusNotFound
	err = client.Trigger(context.Background(), payload)
	if err == nil || !outbox.IsPermanent(err) {
		t.Fatalf("expected permanent error for 404, got %v", err)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/ping" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewClient(server.URL, time.Second).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := NewClient("", time.Second).Ping(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []outbox.Job
}

func (q *recordingQueue) Enqueue(job outbox.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func TestDispatcherEnqueuesDelivery(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	queue := &recordingQueue{}
	d := NewDispatcher(NewClient(server.URL, time.Second), queue)
	d.Trigger(context.Background(), WorkflowInvoiceCreated, Tenant{ID: "t1"}, nil)

	if len(queue.jobs) != 1 || queue.jobs[0].Name != WorkflowInvoiceCreated {
		t.Fatalf("expected one queued job, got %+v", queue.jobs)
	}
	if hits != 0 {
		t.Fatal("delivery must not happen on the calling goroutine")
	}
	if err := queue.jobs[0].Run(context.Background()); err != nil {
		t.Fatalf("job Run() error = %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one webhook call, got %d", hits)
	}
}

func TestDispatcherSkipsWhenDisabled(t *testing.T) {
	queue := &recordingQueue{}
	d := NewDispatcher(NewClient("", time.Second), queue)
	d.Trigger(context.Background(), WorkflowTimeTracked, Tenant{ID: "t1"}, nil)

	if len(queue.jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(queue.jobs))
	}
}
