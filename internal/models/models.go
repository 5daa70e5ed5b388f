package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperatorRole enumerates allowed roles.
type OperatorRole string

const (
	// RoleAdmin manages operators and reads the audit trail.
	RoleAdmin OperatorRole = "ADMIN"
	// RoleConsumer may only open contexts and draw random bytes.
	RoleConsumer OperatorRole = "CONSUMER"
)

// Valid reports whether r is a known role.
func (r OperatorRole) Valid() bool {
	return r == RoleAdmin || r == RoleConsumer
}

// OperatorStatus enumerates account states.
type OperatorStatus string

const (
	StatusActive   OperatorStatus = "Active"
	StatusInactive OperatorStatus = "Inactive"
	StatusLocked   OperatorStatus = "Locked"
)

// Valid reports whether s is a known status.
func (s OperatorStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusLocked:
		return true
	}
	return false
}

// Operator is an account allowed to use the HTTP API.
type Operator struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Role         OperatorRole   `gorm:"not null" json:"role"`
	Status       OperatorStatus `gorm:"not null;default:'Active'" json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// GenerationEvent is one audited generate request. Random bytes are never
// stored, only where they came from.
type GenerationEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContextID  uuid.UUID `gorm:"type:uuid;not null;index" json:"context_id"`
	OperatorID string    `gorm:"not null;index" json:"operator_id"`
	Length     int       `gorm:"not null" json:"length"`
	Source     string    `gorm:"not null" json:"source"` // hardware, fallback or none
	Mixed      bool      `gorm:"not null;default:false" json:"mixed"`
	Success    bool      `gorm:"not null" json:"success"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// Migrate will create/update the tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Operator{},
		&GenerationEvent{},
	)
}
