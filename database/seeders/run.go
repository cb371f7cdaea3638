// Package seeders loads development data: an admin, a customer and a small
// catalog. Seeders are idempotent, so `shop seed` can be re-run safely.
package seeders

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
)

// SeederFunc inserts one kind of row. db is already scoped to a transaction.
type SeederFunc func(ctx context.Context, db *gorm.DB) error

type seeder struct {
	name string
	fn   SeederFunc
}

var registry []seeder

// Register adds a seeder. Call it from init.
func Register(name string, fn SeederFunc) {
	registry = append(registry, seeder{name: name, fn: fn})
}

// Names lists registered seeders in run order.
func Names() []string {
	out := make([]string, len(registry))
	for i, s := range registry {
		out[i] = s.name
	}
	return out
}

// Run executes the named seeders, or all of them when only is empty, each in
// its own transaction. It stops at the first failure.
func Run(ctx context.Context, db *gorm.DB, only ...string) error {
	for _, name := range only {
		if !slices.Contains(Names(), name) {
			return fmt.Errorf("seed: unknown seeder %q", name)
		}
	}

	for _, s := range registry {
		if len(only) > 0 && !slices.Contains(only, s.name) {
			continue
		}
		logger.Info("seed: running", "seeder", s.name)
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.fn(ctx, tx)
		})
		if err != nil {
			return fmt.Errorf("seeder %q: %w", s.name, err)
		}
	}
	return nil
}
