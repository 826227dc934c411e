package model

import (
	"time"

	"gorm.io/gorm"
)

// ContactStatus is the triage state of a contact form submission
type ContactStatus string

const (
	ContactStatusPending   ContactStatus = "PENDING"
	ContactStatusResponded ContactStatus = "RESPONDED"
	ContactStatusSpam      ContactStatus = "SPAM"
	ContactStatusArchived  ContactStatus = "ARCHIVED"
)

// Valid reports whether s is a known contact status
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusPending, ContactStatusResponded, ContactStatusSpam, ContactStatusArchived:
		return true
	}
	return false
}

// ContactForm is a public website inquiry
type ContactForm struct {
	ID          string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name        string        `json:"name" gorm:"type:varchar(100);not null"`
	Email       string        `json:"email" gorm:"type:varchar(255);index;not null"`
	Message     string        `json:"message" gorm:"type:text;not null"`
	Phone       *string       `json:"phone,omitempty" gorm:"type:varchar(20)"`
	Company     *string       `json:"company,omitempty" gorm:"type:varchar(100)"`
	Subject     *string       `json:"subject,omitempty" gorm:"type:varchar(200)"`
	Source      *string       `json:"source,omitempty" gorm:"type:varchar(100);index"`
	Status      ContactStatus `json:"status" gorm:"type:varchar(20);index;not null"`
	Response    *string       `json:"response,omitempty" gorm:"type:text"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
	RespondedBy *string       `json:"respondedBy,omitempty" gorm:"type:varchar(36)"`
	UserAgent   *string       `json:"userAgent,omitempty" gorm:"type:text"`
	IPAddress   *string       `json:"ipAddress,omitempty" gorm:"type:varchar(64)"`
	TenantID    string        `json:"tenantId" gorm:"type:varchar(36);index;not null"`
	Tenant      *Tenant       `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	CreatedAt   time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// BeforeCreate assigns the primary key and initial status
func (f *ContactForm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = newID()
	}
	if f.Status == "" {
		f.Status = ContactStatusPending
	}
	return nil
}
