// Package repository defines the storage contracts the queue engine runs on.
package repository

import (
	"context"
	"errors"

	"github.com/vogiaan1904/barberqueue/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an optimistic transaction kept losing to
	// concurrent writers.
	ErrConflict = errors.New("concurrent modification")
	// ErrNoChange lets a reorder plan decline to write.
	ErrNoChange = errors.New("no change")
)

// QueueRepository stores queue entries. List returns every entry, terminal
// ones included, ascending by OrderKey; equal keys keep insertion order.
type QueueRepository interface {
	Create(ctx context.Context, e *models.Entry) (string, error)
	List(ctx context.Context) ([]models.Entry, error)
	Get(ctx context.Context, id string) (*models.Entry, error)
	Update(ctx context.Context, id string, u models.EntryUpdate) error
	// Subscribe delivers the current entry set immediately and again after
	// every mutation, in order.
	Subscribe(ctx context.Context) (Subscription, error)
	Ping(ctx context.Context) error
}

type Subscription interface {
	Snapshots() <-chan []models.Entry
	Close() error
}

type RevenueRepository interface {
	Append(ctx context.Context, log *models.RevenueLog) (string, error)
	// List returns the log in append order.
	List(ctx context.Context) ([]models.RevenueLog, error)
}

// AtomicAdmitter is implemented by stores that can run a duplicate check
// and the insert as one conditional write.
type AtomicAdmitter interface {
	CreateChecked(ctx context.Context, e *models.Entry, check func([]models.Entry) error) (string, error)
}

// AtomicReorderer is implemented by stores that can compute and write a new
// OrderKey against a consistent read. plan may return ErrNoChange.
type AtomicReorderer interface {
	ReorderChecked(ctx context.Context, id string, plan func([]models.Entry) (int64, error)) error
}
