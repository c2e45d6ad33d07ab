package service

import (
	"errors"
	"fmt"

	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"gorm.io/gorm"
)

// Sentinel errors for the traceability core. Services wrap these with
// context via fmt.Errorf("%w: ..."); handlers map them to HTTP codes
// with errors.Is.
var (
	// ErrValidation malformed or duplicate input, rejected before persistence
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientStock requested quantity exceeds available inventory
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidStateTransition status change violates the entity's state machine
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrPermissionDenied actor lacks the required capability
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPersistence underlying transaction/storage failure; the whole
	// operation, audit write included, has been rolled back
	ErrPersistence = errors.New("persistence failure")
)

// translatePersistence maps raw gorm errors from inline queries to the
// taxonomy the handlers understand.
func translatePersistence(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
