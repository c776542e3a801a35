// Package service holds helpers shared by the domain services
package service

import (
	"errors"

	"github.com/jwalitptl/referral-api/internal/repository"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
)

// MsgSlotNotAvailable is returned whenever a slot cannot be claimed
const MsgSlotNotAvailable = "Slot not available"

// RepoError translates repository errors into AppErrors. resource names the
// entity in not-found and conflict messages.
func RepoError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, err)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict(resource+" was modified concurrently", err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", err)
	case errors.Is(err, repository.ErrSlotUnavailable):
		return apperrors.NewBadRequest(MsgSlotNotAvailable, err)
	case errors.Is(err, repository.ErrSlotBooked):
		return apperrors.NewConflict("Slot is booked", err)
	}
	return apperrors.NewInternal(err)
}
