package model

import (
	"time"

	"gorm.io/gorm"
)

// Role is a user's authorization level inside its tenant
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User represents the user model stored in the database
type User struct {
	ID          string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	Email       string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Password    string         `json:"-" gorm:"type:varchar(255);not null"`
	FirstName   string         `json:"firstName" gorm:"type:varchar(50);not null"`
	LastName    string         `json:"lastName" gorm:"type:varchar(50);not null"`
	Role        Role           `json:"role" gorm:"type:varchar(20);not null"`
	IsActive    bool           `json:"isActive" gorm:"not null"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	TenantID    string         `json:"tenantId" gorm:"type:varchar(36);index;not null"`
	Tenant      *Tenant        `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the primary key
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = newID()
	}
	return nil
}

// FullName joins first and last name
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
