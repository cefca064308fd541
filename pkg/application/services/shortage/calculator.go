package shortage

import (
	"context"
	"fmt"

	"github.com/vsinha/fulfillment/pkg/application/services/bom"
	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// Compute compares requirements against a snapshot of available stock.
// Only materials with a positive deficit are reported, sorted by material id.
// A material absent from the snapshot counts as zero available.
func Compute(reqs entities.Requirements, snapshot map[entities.MaterialID]entities.Material) []entities.ShortageLine {
	lines := make([]entities.ShortageLine, 0)
	for _, id := range reqs.MaterialIDs() {
		needed := reqs[id]
		material, ok := snapshot[id]
		var available entities.Quantity
		name := string(id)
		if ok {
			available = material.Available()
			name = material.Name
		}
		if available < 0 {
			available = 0
		}
		if needed > available {
			lines = append(lines, entities.ShortageLine{
				MaterialID:   id,
				MaterialName: name,
				Needed:       needed,
				Available:    available,
				Short:        needed - available,
			})
		}
	}
	return lines
}

// MaxBuildable returns floor(min(available / required)) over the per-unit
// requirements. An empty requirement set builds nothing.
func MaxBuildable(perUnit entities.Requirements, snapshot map[entities.MaterialID]entities.Material) entities.Quantity {
	if len(perUnit) == 0 {
		return 0
	}

	first := true
	var buildable entities.Quantity
	for _, id := range perUnit.MaterialIDs() {
		required := perUnit[id]
		if required <= 0 {
			continue
		}
		material, ok := snapshot[id]
		if !ok {
			return 0
		}
		available := material.Available()
		if available <= 0 {
			return 0
		}
		units := available / required
		if first || units < buildable {
			buildable = units
			first = false
		}
	}
	return buildable
}

// Calculator answers shortage and buildable queries from a consistent ledger snapshot
type Calculator struct {
	resolver *bom.Resolver
	ledger   repositories.LedgerStore
}

// NewCalculator creates a new shortage calculator
func NewCalculator(resolver *bom.Resolver, ledger repositories.LedgerStore) *Calculator {
	return &Calculator{resolver: resolver, ledger: ledger}
}

// Shortages reports the deficits for the given requirements
func (c *Calculator) Shortages(ctx context.Context, reqs entities.Requirements) ([]entities.ShortageLine, error) {
	if len(reqs) == 0 {
		return []entities.ShortageLine{}, nil
	}
	snapshot, err := c.ledger.Snapshot(ctx, reqs.MaterialIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot ledger: %w", err)
	}
	return Compute(reqs, snapshot), nil
}

// ShortagesForLines flattens order lines then reports their deficits
func (c *Calculator) ShortagesForLines(ctx context.Context, lines []entities.OrderLine) ([]entities.ShortageLine, error) {
	reqs, err := c.resolver.FlattenLines(ctx, lines)
	if err != nil {
		return nil, err
	}
	return c.Shortages(ctx, reqs)
}

// CanFulfill reports whether the order lines are fully covered by available stock
func (c *Calculator) CanFulfill(ctx context.Context, lines []entities.OrderLine) (bool, error) {
	shortages, err := c.ShortagesForLines(ctx, lines)
	if err != nil {
		return false, err
	}
	return len(shortages) == 0, nil
}

// Buildable returns how many units of the product current stock can produce
func (c *Calculator) Buildable(ctx context.Context, productID entities.ProductID) (entities.Quantity, error) {
	perUnit, err := c.resolver.Flatten(ctx, string(productID), entities.KindProduct, 1)
	if err != nil {
		return 0, err
	}
	if len(perUnit) == 0 {
		return 0, nil
	}
	snapshot, err := c.ledger.Snapshot(ctx, perUnit.MaterialIDs())
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot ledger: %w", err)
	}
	return MaxBuildable(perUnit, snapshot), nil
}
