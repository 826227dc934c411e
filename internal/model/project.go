package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectStatus is the delivery state of a project
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusCancelled ProjectStatus = "CANCELLED"
)

// Valid reports whether s is a known project status
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// Project is billable work for a client. UsedHours mirrors the sum of the
// project's time entry hours and is only written by the time tracking service.
type Project struct {
	ID            string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name          string            `json:"name" gorm:"type:varchar(255);not null"`
	Description   *string           `json:"description,omitempty" gorm:"type:text"`
	Status        ProjectStatus     `json:"status" gorm:"type:varchar(20);not null"`
	QuotedHours   float64           `json:"quotedHours" gorm:"not null"`
	UsedHours     float64           `json:"usedHours" gorm:"not null"`
	HourlyRate    decimal.Decimal   `json:"hourlyRate" gorm:"type:numeric(10,2);not null"`
	StartDate     *time.Time        `json:"startDate,omitempty"`
	EndDate       *time.Time        `json:"endDate,omitempty"`
	QuotationData datatypes.JSONMap `json:"quotationData,omitempty"`
	ClientID      string            `json:"clientId" gorm:"type:varchar(36);index;not null"`
	Client        *Client           `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	TenantID      string            `json:"tenantId" gorm:"type:varchar(36);index;not null"`
	Tenant        *Tenant           `json:"-" gorm:"foreignKey:TenantID"`
	TimeEntries   []TimeEntry       `json:"timeEntries,omitempty" gorm:"foreignKey:ProjectID"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt    `json:"-" gorm:"index"`
}

// BeforeCreate assigns the primary key and initial status
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Status == "" {
		p.Status = ProjectStatusActive
	}
	return nil
}

// RemainingHours is quoted minus used hours
func (p *Project) RemainingHours() float64 {
	return p.QuotedHours - p.UsedHours
}

// PercentageUsed returns used hours as a percentage of quoted hours, or 0
// when nothing was quoted.
func (p *Project) PercentageUsed() float64 {
	if p.QuotedHours <= 0 {
		return 0
	}
	return p.UsedHours / p.QuotedHours * 100
}

// TaskStatus is the progress state of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task is a unit of work inside a project that time can be logged against
type Task struct {
	ID             string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Title          string     `json:"title" gorm:"type:varchar(255);not null"`
	Description    *string    `json:"description,omitempty" gorm:"type:text"`
	Status         TaskStatus `json:"status" gorm:"type:varchar(20);not null"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	ProjectID      string     `json:"projectId" gorm:"type:varchar(36);index;not null"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns the primary key and initial status
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Status == "" {
		t.Status = TaskStatusTodo
	}
	return nil
}
