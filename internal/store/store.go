// Package store persists operators and the generation audit trail.
package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ArowuTest/qrng-bridge/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store is the gorm-backed implementation used by the handlers.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) CreateOperator(op *models.Operator) error {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if err := s.db.Create(op).Error; err != nil {
		return fmt.Errorf("store: create operator: %w", err)
	}
	return nil
}

func (s *Store) ListOperators() ([]models.Operator, error) {
	var ops []models.Operator
	if err := s.db.Order("username asc").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("store: list operators: %w", err)
	}
	return ops, nil
}

func (s *Store) CountOperators() (int64, error) {
	var n int64
	if err := s.db.Model(&models.Operator{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count operators: %w", err)
	}
	return n, nil
}

func (s *Store) GetOperator(id uuid.UUID) (*models.Operator, error) {
	var op models.Operator
	if err := s.db.First(&op, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &op, nil
}

func (s *Store) GetOperatorByUsername(username string) (*models.Operator, error) {
	var op models.Operator
	if err := s.db.Where("username = ?", username).First(&op).Error; err != nil {
		return nil, translate(err)
	}
	return &op, nil
}

func (s *Store) UpdateOperator(op *models.Operator) error {
	if err := s.db.Save(op).Error; err != nil {
		return fmt.Errorf("store: update operator: %w", err)
	}
	return nil
}

func (s *Store) DeleteOperator(id uuid.UUID) error {
	res := s.db.Delete(&models.Operator{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("store: delete operator: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordEvent appends one audit record.
func (s *Store) RecordEvent(ev *models.GenerationEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if err := s.db.Create(ev).Error; err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}

// ListEvents returns the newest events first, optionally for one context.
func (s *Store) ListEvents(contextID uuid.UUID, limit int) ([]models.GenerationEvent, error) {
	q := s.db.Order("created_at desc").Limit(limit)
	if contextID != uuid.Nil {
		q = q.Where("context_id = ?", contextID)
	}
	var events []models.GenerationEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	return events, nil
}
