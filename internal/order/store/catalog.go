package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
)

// LoadCatalogFile reads a JSON array of products and validates each entry.
// A missing path yields an empty catalog.
func LoadCatalogFile(path string) ([]domain.Product, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var list []domain.Product
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[domain.ProductID]bool, len(list))
	for i, p := range list {
		if p.Status == "" {
			p.Status = domain.ProductStatusActive
			list[i] = p
		}
		if err := domain.ValidateProduct(p); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, domain.NewInvalidProductError("id", "duplicate", p.ID)
		}
		seen[p.ID] = true
	}
	// stable order for deterministic seeding
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}
