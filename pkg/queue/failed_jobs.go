package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
)

// maxFailedInMemory bounds the per-process failure history returned by
// FailedJobs; the failed_jobs table keeps the full record.
const maxFailedInMemory = 100

// FailedJobRecord is a row in the failed_jobs table, created by the
// migrations in database/migrations.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType  string    `gorm:"size:255;not null;index" json:"job_type"`
	Payload  string    `gorm:"type:text;not null" json:"payload"`
	Error    string    `gorm:"type:text" json:"error"`
	Attempts int       `gorm:"not null;default:0" json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

// FailedJobStore persists jobs that exhausted their retries.
type FailedJobStore interface {
	SaveFailed(ctx context.Context, rec *FailedJobRecord) error
}

// GormFailedJobStore writes failed jobs through gorm.
type GormFailedJobStore struct {
	DB *gorm.DB
}

func (s GormFailedJobStore) SaveFailed(ctx context.Context, rec *FailedJobRecord) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

// List returns the most recent failed jobs, newest first.
func (s GormFailedJobStore) List(ctx context.Context, limit int) ([]FailedJobRecord, error) {
	var out []FailedJobRecord
	err := s.DB.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Prune deletes failed jobs recorded before cutoff and reports how many
// rows went.
func (s GormFailedJobStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&FailedJobRecord{})
	return res.RowsAffected, res.Error
}

// UseStore configures durable storage for failed jobs. Without one, failures
// are only kept in memory.
func (m *Manager) UseStore(s FailedJobStore) {
	m.mu.Lock()
	m.store = s
	m.mu.Unlock()
}

func (m *Manager) persistFailed(ctx context.Context, job Job, typeName string, lastErr error, attempts int) {
	now := time.Now()

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: typeName, Job: job, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	if n := len(m.failed); n > maxFailedInMemory {
		m.failed = append(m.failed[:0:0], m.failed[n-maxFailedInMemory:]...)
	}
	store := m.store
	m.mu.Unlock()

	if store == nil {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}

	record := FailedJobRecord{
		JobType:  typeName,
		Payload:  string(payload),
		Error:    lastErr.Error(),
		Attempts: attempts,
		FailedAt: now,
	}

	// The worker context may already be cancelled during shutdown.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := store.SaveFailed(saveCtx, &record); err != nil {
		logger.Error("queue: persist failed job", "type", typeName, "error", err)
	}
}
