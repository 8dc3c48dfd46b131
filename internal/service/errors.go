package service

import (
	"errors"
	"fmt"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
)

var errConcurrentBooking = apperror.Conflict("Booking was modified concurrently, please retry")

func transitionError(from, to string) error {
	return apperror.BadRequest(fmt.Sprintf("Cannot transition from %s to %s", from, to))
}

// lookupError maps a storage miss to NOT_FOUND with message and anything else to INTERNAL.
func lookupError(err error, message string) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound(message)
	}
	return apperror.Internal(err)
}
