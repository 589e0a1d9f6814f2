package memory

import (
	"context"
	"sync"

	"github.com/vogiaan1904/barberqueue/internal/models"
)

type RevenueRepository struct {
	mu   sync.RWMutex
	logs []models.RevenueLog
}

func NewRevenueRepository() *RevenueRepository {
	return &RevenueRepository{}
}

func (r *RevenueRepository) Append(ctx context.Context, log *models.RevenueLog) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cp := *log
	cp.ID = newID()

	r.mu.Lock()
	r.logs = append(r.logs, cp)
	r.mu.Unlock()

	return cp.ID, nil
}

func (r *RevenueRepository) List(ctx context.Context) ([]models.RevenueLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RevenueLog, len(r.logs))
	copy(out, r.logs)
	return out, nil
}
