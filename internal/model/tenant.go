package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TenantType enumerates the known tenant kinds
type TenantType string

const (
	TenantTypeAlanisWebDev    TenantType = "ALANIS_WEB_DEV"
	TenantTypeCherryPopDesign TenantType = "CHERRY_POP_DESIGN"
)

// Valid reports whether t is a known tenant type
func (t TenantType) Valid() bool {
	switch t {
	case TenantTypeAlanisWebDev, TenantTypeCherryPopDesign:
		return true
	}
	return false
}

// Tenant is the isolation boundary every business entity belongs to
type Tenant struct {
	ID        string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name      string            `json:"name" gorm:"type:varchar(100);not null"`
	Slug      string            `json:"slug" gorm:"type:varchar(50);uniqueIndex;not null"`
	Type      TenantType        `json:"type" gorm:"type:varchar(32);not null"`
	Domain    *string           `json:"domain,omitempty" gorm:"type:varchar(255)"`
	IsActive  bool              `json:"isActive" gorm:"not null"`
	Settings  datatypes.JSONMap `json:"settings,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	DeletedAt gorm.DeletedAt    `json:"-" gorm:"index"`
}

// BeforeCreate assigns the primary key
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = newID()
	}
	return nil
}
