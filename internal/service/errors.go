package service

import "errors"

var (
	ErrNameAlreadyQueued   = errors.New("name already in queue")
	ErrDeviceAlreadyQueued = errors.New("device already in queue")
	ErrEntryNotFound       = errors.New("queue entry not found")
	ErrNotEntryOwner       = errors.New("entry belongs to another device")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidAmount       = errors.New("amount must be a finite non-negative number")
	ErrStaleSnapshot       = errors.New("queue changed since snapshot was taken")
	ErrInvalidChannel      = errors.New("invalid channel")
	ErrInvalidServiceType  = errors.New("invalid service type")
)
