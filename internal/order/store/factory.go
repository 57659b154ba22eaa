package store

import (
	"context"
	"fmt"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
)

// compile-time assertions
var (
	_ domain.OrderStore = (*MemoryStore)(nil)
	_ domain.OrderStore = (*PostgresStore)(nil)
)

type Options struct {
	Kind        string
	DatabaseURL string
	SeedFile    string
	EventsTopic string
}

// NewStore constructs a domain.OrderStore by kind: "memory" or "postgres".
// A memory store is seeded from SeedFile. A postgres catalog is seeded by the
// migrate command instead, so restarts never reset stock.
func NewStore(ctx context.Context, opts Options) (domain.OrderStore, error) {
	switch opts.Kind {
	case "memory", "mem":
		s, err := newSeededMemoryStore(ctx, opts.SeedFile)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "pg":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("database url required for postgres store")
		}
		s, err := NewPostgresStore(ctx, opts.DatabaseURL, opts.EventsTopic)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store kind: %s", opts.Kind)
	}
}

// Seed upserts the products of a catalog file into s.
func Seed(ctx context.Context, s domain.OrderStore, path string) (int, error) {
	products, err := LoadCatalogFile(path)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}
	if err := s.UpsertProducts(ctx, products); err != nil {
		return 0, fmt.Errorf("seed catalog: %w", err)
	}
	return len(products), nil
}

func newSeededMemoryStore(ctx context.Context, seedFile string) (*MemoryStore, error) {
	s := NewMemoryStore()
	if _, err := Seed(ctx, s, seedFile); err != nil {
		return nil, err
	}
	return s, nil
}
