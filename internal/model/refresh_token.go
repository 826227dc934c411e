package model

import (
	"time"

	"gorm.io/gorm"
)

// RefreshToken backs a signed refresh JWT so it can be revoked server side.
// The row is created before signing and updated with the signed value.
type RefreshToken struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Token     string    `json:"-" gorm:"type:text"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	User      *User     `json:"-" gorm:"foreignKey:UserID"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate assigns the primary key
func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = newID()
	}
	return nil
}

// IsExpired checks if the token is expired at the given instant
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
