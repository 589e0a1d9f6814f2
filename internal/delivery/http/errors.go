package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/barberqueue/internal/namecheck"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/internal/service"
	"github.com/vogiaan1904/barberqueue/internal/session"
	pkgErrors "github.com/vogiaan1904/barberqueue/pkg/errors"
)

var (
	errInvalidName         = pkgErrors.NewHTTPError("BQ001", http.StatusBadRequest, "Name is not valid")
	errNameAlreadyQueued   = pkgErrors.NewHTTPError("BQ002", http.StatusConflict, "Name is already in the queue")
	errDeviceAlreadyQueued = pkgErrors.NewHTTPError("BQ003", http.StatusConflict, "Device already has an entry in the queue")
	errEntryNotFound       = pkgErrors.NewHTTPError("BQ004", http.StatusNotFound, "Queue entry not found")
	errInvalidTransition   = pkgErrors.NewHTTPError("BQ005", http.StatusConflict, "Entry cannot change to that status")
	errInvalidAmount       = pkgErrors.NewHTTPError("BQ006", http.StatusBadRequest, "Amount must be a non-negative number")
	errStaleSnapshot       = pkgErrors.NewHTTPError("BQ007", http.StatusConflict, "Queue changed, refresh and try again")
	errInvalidChannel      = pkgErrors.NewHTTPError("BQ008", http.StatusBadRequest, "Unknown channel")
	errInvalidServiceType  = pkgErrors.NewHTTPError("BQ009", http.StatusBadRequest, "Unknown service type")
	errInvalidCredentials  = pkgErrors.NewHTTPError("BQ010", http.StatusUnauthorized, "Invalid credentials")
	errInvalidToken        = pkgErrors.NewHTTPError("BQ011", http.StatusUnauthorized, "Invalid or expired token")
	errTooManyRequests     = pkgErrors.NewHTTPError("BQ012", http.StatusTooManyRequests, "Too many requests")
	errInvalidRequest      = pkgErrors.NewHTTPError("BQ013", http.StatusBadRequest, "Invalid request body")
	errQueueBusy           = pkgErrors.NewHTTPError("BQ014", http.StatusServiceUnavailable, "Queue is busy, try again")
	errRouteNotFound       = pkgErrors.NewHTTPError("BQ015", http.StatusNotFound, "Route not found")
	errNotEntryOwner       = pkgErrors.NewHTTPError("BQ016", http.StatusForbidden, "Entry belongs to another device")
)

// mapError converts service, validation and auth errors to API errors.
// Anything else is returned unchanged and rendered as a 500.
func mapError(err error) error {
	if key := namecheck.MessageKey(err); key != "" {
		return errInvalidName.WithKey(key)
	}

	switch {
	case errors.Is(err, service.ErrNameAlreadyQueued):
		return errNameAlreadyQueued.WithKey("name_already_queued")
	case errors.Is(err, service.ErrDeviceAlreadyQueued):
		return errDeviceAlreadyQueued.WithKey("device_already_queued")
	case errors.Is(err, service.ErrEntryNotFound):
		return errEntryNotFound
	case errors.Is(err, service.ErrNotEntryOwner):
		return errNotEntryOwner.WithKey("not_entry_owner")
	case errors.Is(err, service.ErrInvalidTransition):
		return errInvalidTransition
	case errors.Is(err, service.ErrInvalidAmount):
		return errInvalidAmount
	case errors.Is(err, service.ErrStaleSnapshot):
		return errStaleSnapshot
	case errors.Is(err, service.ErrInvalidChannel):
		return errInvalidChannel
	case errors.Is(err, service.ErrInvalidServiceType):
		return errInvalidServiceType
	case errors.Is(err, session.ErrInvalidCredentials):
		return errInvalidCredentials
	case errors.Is(err, session.ErrInvalidToken):
		return errInvalidToken
	case errors.Is(err, repository.ErrConflict):
		return errQueueBusy
	default:
		return err
	}
}
