package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TimeEntry is a logged unit of work against a project
type TimeEntry struct {
	ID          string              `json:"id" gorm:"type:varchar(36);primaryKey"`
	Description string              `json:"description" gorm:"type:text;not null"`
	Hours       float64             `json:"hours" gorm:"not null"`
	Date        time.Time           `json:"date" gorm:"index;not null"`
	Billable    bool                `json:"billable" gorm:"not null"`
	Billed      bool                `json:"billed" gorm:"not null"`
	HourlyRate  decimal.NullDecimal `json:"hourlyRate" gorm:"type:numeric(10,2)"`
	Notes       *string             `json:"notes,omitempty" gorm:"type:text"`
	ProjectID   string              `json:"projectId" gorm:"type:varchar(36);index;not null"`
	Project     *Project            `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	TaskID      *string             `json:"taskId,omitempty" gorm:"type:varchar(36);index"`
	Task        *Task               `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	UserID      string              `json:"userId" gorm:"type:varchar(36);index;not null"`
	User        *User               `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// BeforeCreate assigns the primary key
func (e *TimeEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return nil
}
