// Package migration runs and tracks schema migrations.
//
// Register migrations from an init() in database/migrations:
//
//	func init() {
//	    migration.Register("2026_10_01_000001_create_products_table", &CreateProductsTable{})
//	}
//
// Run from CLI:
//
//	shop migrate             // run all pending
//	shop migrate:rollback    // rollback last batch
//	shop migrate:status
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
)

// Migration is the interface every migration must implement.
type Migration interface {
	// Up applies the migration.
	Up(db *gorm.DB) error
	// Down reverses the migration.
	Down(db *gorm.DB) error
}

// migrationRecord is the GORM model stored in the tracking table.
type migrationRecord struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (migrationRecord) TableName() string { return "shop_migrations" }

// ErrNotRegistered is returned by Rollback when a recorded migration has no
// registered implementation.
var ErrNotRegistered = errors.New("migration: not registered")

// ------------------- Registry -------------------

type registeredMigration struct {
	name string
	m    Migration
}

var (
	registryMu sync.Mutex
	registry   []registeredMigration
)

// Register adds a migration to the global registry. Names sort
// lexicographically into run order, so prefix them with a timestamp.
func Register(name string, m Migration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, registeredMigration{name: name, m: m})
}

func registered() []registeredMigration {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := append([]registeredMigration(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ------------------- Runner -------------------

// Runner executes and tracks migrations.
type Runner struct {
	db *gorm.DB
}

// New creates a Runner backed by the provided gorm.DB.
func New(db *gorm.DB) *Runner {
	return &Runner{db: db}
}

// EnsureTable creates the tracking table if it does not exist.
func (r *Runner) EnsureTable(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&migrationRecord{})
}

func (r *Runner) ran(ctx context.Context) (map[string]migrationRecord, error) {
	var recs []migrationRecord
	if err := r.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]migrationRecord, len(recs))
	for _, rec := range recs {
		out[rec.Name] = rec
	}
	return out, nil
}

// Pending returns the names of migrations that have not yet been run.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	ran, err := r.ran(ctx)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, reg := range registered() {
		if _, ok := ran[reg.name]; !ok {
			pending = append(pending, reg.name)
		}
	}
	return pending, nil
}

// Run executes all pending migrations in a single batch and returns the
// names it applied. Each migration and its tracking row share a transaction.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	ran, err := r.ran(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: fetch ran: %w", err)
	}

	batch := r.lastBatch(ctx) + 1
	var applied []string
	for _, reg := range registered() {
		if _, ok := ran[reg.name]; ok {
			continue
		}
		logger.Info("migration: running", "name", reg.name, "batch", batch)

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := reg.m.Up(tx); err != nil {
				return fmt.Errorf("migration: %s up: %w", reg.name, err)
			}
			if err := tx.Create(&migrationRecord{Name: reg.name, Batch: batch}).Error; err != nil {
				return fmt.Errorf("migration: record %s: %w", reg.name, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, reg.name)
	}

	if len(applied) == 0 {
		logger.Info("migration: nothing to migrate")
	} else {
		logger.Info("migration: done", "ran", len(applied), "batch", batch)
	}
	return applied, nil
}

// Rollback reverses every migration in the most recent batch, newest first,
// and returns the names it reverted.
func (r *Runner) Rollback(ctx context.Context) ([]string, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	last := r.lastBatch(ctx)
	if last == 0 {
		logger.Info("migration: nothing to roll back")
		return nil, nil
	}

	var records []migrationRecord
	if err := r.db.WithContext(ctx).Where("batch = ?", last).
		Order("id desc").
		Find(&records).Error; err != nil {
		return nil, err
	}

	regMap := make(map[string]Migration)
	for _, reg := range registered() {
		regMap[reg.name] = reg.m
	}

	var reverted []string
	for _, rec := range records {
		m, ok := regMap[rec.Name]
		if !ok {
			return reverted, fmt.Errorf("%w: %s", ErrNotRegistered, rec.Name)
		}
		logger.Info("migration: rolling back", "name", rec.Name)

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return fmt.Errorf("migration: %s down: %w", rec.Name, err)
			}
			return tx.Delete(&migrationRecord{}, rec.ID).Error
		})
		if err != nil {
			return reverted, err
		}
		reverted = append(reverted, rec.Name)
	}
	return reverted, nil
}

// StatusRow is one line of `migrate:status`. Batch is 0 when pending.
type StatusRow struct {
	Name  string
	Ran   bool
	Batch int
}

// Status lists every registered migration and whether it has run.
func (r *Runner) Status(ctx context.Context) ([]StatusRow, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return nil, err
	}
	ran, err := r.ran(ctx)
	if err != nil {
		return nil, err
	}

	var rows []StatusRow
	for _, reg := range registered() {
		rec, ok := ran[reg.name]
		rows = append(rows, StatusRow{Name: reg.name, Ran: ok, Batch: rec.Batch})
	}
	return rows, nil
}

func (r *Runner) lastBatch(ctx context.Context) int {
	var maxBatch struct{ Max int }
	r.db.WithContext(ctx).Model(&migrationRecord{}).Select("COALESCE(MAX(batch), 0) as max").Scan(&maxBatch)
	return maxBatch.Max
}
