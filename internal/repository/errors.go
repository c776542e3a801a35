package repository

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("record already exists")
	ErrVersionConflict = errors.New("record was modified concurrently")
	ErrSlotUnavailable = errors.New("slot not available")
	ErrSlotBooked      = errors.New("slot is booked")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
