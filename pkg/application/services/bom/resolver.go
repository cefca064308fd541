package bom

import (
	"context"
	"fmt"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// Resolver expands order targets into leaf material requirements.
// It only reads the product catalog and never touches the ledger.
type Resolver struct {
	traverser *Traverser
}

// NewResolver creates a resolver over the product catalog
func NewResolver(products repositories.ProductReader) *Resolver {
	return &Resolver{traverser: NewTraverser(products)}
}

// Flatten returns the leaf material units needed to supply quantity of the target
func (r *Resolver) Flatten(
	ctx context.Context,
	targetID string,
	kind entities.TargetKind,
	quantity entities.Quantity,
) (entities.Requirements, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("flatten %s %s: %w", kind, targetID, entities.ErrInvalidQuantity)
	}

	visitor := &flattenVisitor{requirements: make(entities.Requirements)}
	if _, err := r.traverser.Traverse(ctx, targetID, kind, quantity, visitor); err != nil {
		return nil, err
	}
	return visitor.requirements, nil
}

// FlattenLines merges the requirements of every order line
func (r *Resolver) FlattenLines(ctx context.Context, lines []entities.OrderLine) (entities.Requirements, error) {
	total := make(entities.Requirements)
	for i, line := range lines {
		reqs, err := r.Flatten(ctx, line.TargetID, line.Kind, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if err := total.Merge(reqs); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return total, nil
}

// Explode returns the full component tree of a product for quantity units
func (r *Resolver) Explode(ctx context.Context, productID entities.ProductID, quantity entities.Quantity) (*Node, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("explode %s: %w", productID, entities.ErrInvalidQuantity)
	}
	result, err := r.traverser.Traverse(ctx, string(productID), entities.KindProduct, quantity, &treeVisitor{})
	if err != nil {
		return nil, err
	}
	return result.(*Node), nil
}
