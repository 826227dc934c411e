package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuoteStatus is the lifecycle state of a quote
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "DRAFT"
	QuoteStatusSent      QuoteStatus = "SENT"
	QuoteStatusViewed    QuoteStatus = "VIEWED"
	QuoteStatusApproved  QuoteStatus = "APPROVED"
	QuoteStatusRejected  QuoteStatus = "REJECTED"
	QuoteStatusExpired   QuoteStatus = "EXPIRED"
	QuoteStatusConverted QuoteStatus = "CONVERTED"
)

// QuoteStatuses lists every status in lifecycle order
var QuoteStatuses = []QuoteStatus{
	QuoteStatusDraft,
	QuoteStatusSent,
	QuoteStatusViewed,
	QuoteStatusApproved,
	QuoteStatusRejected,
	QuoteStatusExpired,
	QuoteStatusConverted,
}

// Valid reports whether s is a known quote status
func (s QuoteStatus) Valid() bool {
	for _, status := range QuoteStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ProjectTypes lists the accepted quote project types
var ProjectTypes = []string{"web", "ecommerce", "custom", "landing", "blog"}

// QuoteService is one priced line of a quote
type QuoteService struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	BasePrice      decimal.Decimal        `json:"basePrice"`
	Configuration  map[string]interface{} `json:"configuration,omitempty"`
	EstimatedHours *float64               `json:"estimatedHours,omitempty"`
}

// Quote is a priced proposal that may later convert into a project.
// Monetary totals are supplied by the caller and stored as given.
type Quote struct {
	ID             string                            `json:"id" gorm:"type:varchar(36);primaryKey"`
	QuoteNumber    string                            `json:"quoteNumber" gorm:"type:varchar(20);not null;uniqueIndex:idx_quotes_tenant_number"`
	ClientName     string                            `json:"clientName" gorm:"type:varchar(255);not null"`
	ClientEmail    string                            `json:"clientEmail" gorm:"type:varchar(255);index;not null"`
	ClientPhone    *string                           `json:"clientPhone,omitempty" gorm:"type:varchar(50)"`
	ClientCompany  *string                           `json:"clientCompany,omitempty" gorm:"type:varchar(255)"`
	ProjectName    string                            `json:"projectName" gorm:"type:varchar(255);not null"`
	ProjectType    string                            `json:"projectType" gorm:"type:varchar(20);not null"`
	Description    *string                           `json:"description,omitempty" gorm:"type:text"`
	Services       datatypes.JSONSlice[QuoteService] `json:"services"`
	Subtotal       decimal.Decimal                   `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	Tax            decimal.Decimal                   `json:"tax" gorm:"type:numeric(12,2);not null"`
	Discount       decimal.Decimal                   `json:"discount" gorm:"type:numeric(12,2);not null"`
	Total          decimal.Decimal                   `json:"total" gorm:"type:numeric(12,2);not null"`
	EstimatedHours *float64                          `json:"estimatedHours,omitempty"`
	DeliveryDays   *int                              `json:"deliveryDays,omitempty"`
	ValidUntil     *time.Time                        `json:"validUntil,omitempty"`
	Status         QuoteStatus                       `json:"status" gorm:"type:varchar(20);index;not null"`
	Notes          *string                           `json:"notes,omitempty" gorm:"type:text"`
	InternalNotes  *string                           `json:"internalNotes,omitempty" gorm:"type:text"`
	Metadata       datatypes.JSONMap                 `json:"metadata,omitempty"`
	ProjectID      *string                           `json:"projectId,omitempty" gorm:"type:varchar(36);index"`
	ViewedAt       *time.Time                        `json:"viewedAt,omitempty"`
	ApprovedAt     *time.Time                        `json:"approvedAt,omitempty"`
	RejectedAt     *time.Time                        `json:"rejectedAt,omitempty"`
	ConvertedAt    *time.Time                        `json:"convertedAt,omitempty"`
	TenantID       string                            `json:"tenantId" gorm:"type:varchar(36);not null;uniqueIndex:idx_quotes_tenant_number"`
	Tenant         *Tenant                           `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	CreatedAt      time.Time                         `json:"createdAt" gorm:"index"`
	UpdatedAt      time.Time                         `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt                    `json:"-" gorm:"index"`
}

// BeforeCreate assigns the primary key and initial status
func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = newID()
	}
	if q.Status == "" {
		q.Status = QuoteStatusDraft
	}
	return nil
}

// PublicView returns a copy without fields reserved for the tenant's staff
func (q Quote) PublicView() Quote {
	q.InternalNotes = nil
	q.Metadata = nil
	return q
}

// QuoteSequence is the per-(tenant, year) counter backing quote numbers
type QuoteSequence struct {
	TenantID  string    `gorm:"type:varchar(36);primaryKey"`
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int       `gorm:"not null"`
	UpdatedAt time.Time
}

// FormatQuoteNumber renders QUO-<year>-<4-digit sequence>
func FormatQuoteNumber(year, sequence int) string {
	return fmt.Sprintf("QUO-%d-%04d", year, sequence)
}
