package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncStatus tracks the Invoice Ninja synchronization state of a client
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSynced  SyncStatus = "SYNCED"
	SyncStatusError   SyncStatus = "ERROR"
)

// Address is the postal address stored as JSON on a client
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Client is a customer of a tenant
type Client struct {
	ID             string                       `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name           string                       `json:"name" gorm:"type:varchar(255);not null"`
	Email          string                       `json:"email" gorm:"type:varchar(255);index;not null"`
	Phone          *string                      `json:"phone,omitempty" gorm:"type:varchar(50)"`
	Company        *string                      `json:"company,omitempty" gorm:"type:varchar(255)"`
	TaxID          *string                      `json:"taxId,omitempty" gorm:"type:varchar(100)"`
	Address        *datatypes.JSONType[Address] `json:"address,omitempty"`
	InvoiceNinjaID *string                      `json:"invoiceNinjaId,omitempty" gorm:"type:varchar(100)"`
	SyncStatus     SyncStatus                   `json:"syncStatus" gorm:"type:varchar(20);not null"`
	LastSyncAt     *time.Time                   `json:"lastSyncAt,omitempty"`
	TenantID       string                       `json:"tenantId" gorm:"type:varchar(36);index;not null"`
	Projects       []Project                    `json:"projects,omitempty" gorm:"foreignKey:ClientID"`
	CreatedAt      time.Time                    `json:"createdAt"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt               `json:"-" gorm:"index"`
}

// BeforeCreate assigns the primary key and initial sync status
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.SyncStatus == "" {
		c.SyncStatus = SyncStatusPending
	}
	return nil
}

// AddressData returns the decoded address or nil
func (c *Client) AddressData() *Address {
	if c.Address == nil {
		return nil
	}
	addr := c.Address.Data()
	return &addr
}

// SetAddress replaces the stored address; nil clears it
func (c *Client) SetAddress(addr *Address) {
	if addr == nil {
		c.Address = nil
		return
	}
	value := datatypes.NewJSONType(*addr)
	c.Address = &value
}
