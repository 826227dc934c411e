package model

import "github.com/google/uuid"

// newID returns a random UUID string used as primary key.
func newID() string {
	return uuid.NewString()
}

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&RefreshToken{},
		&Client{},
		&Project{},
		&Task{},
		&TimeEntry{},
		&Quote{},
		&QuoteSequence{},
		&ContactForm{},
	}
}
