package bom

import (
	"context"
	"fmt"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
	"github.com/vsinha/fulfillment/pkg/domain/repositories"
)

// NodeContext provides context information during BOM traversal
type NodeContext struct {
	ComponentID string
	Kind        entities.TargetKind
	Product     *entities.Product // nil for material nodes
	Quantity    entities.Quantity
	Level       int
}

// NodeVisitor defines the interface for processing nodes during BOM traversal
type NodeVisitor interface {
	// VisitNode is called for each node in the BOM structure.
	// Returns data to be passed to ProcessChildren and whether to descend.
	VisitNode(ctx context.Context, nodeCtx NodeContext) (interface{}, bool, error)

	// ProcessChildren is called after visiting all children
	ProcessChildren(
		ctx context.Context,
		nodeCtx NodeContext,
		nodeData interface{},
		childResults []interface{},
	) (interface{}, error)
}

// Traverser walks product BOMs depth-first, multiplying quantities along each
// path. A product that reappears on the current path is a cycle.
type Traverser struct {
	products repositories.ProductReader
}

// NewTraverser creates a new BOM traverser
func NewTraverser(products repositories.ProductReader) *Traverser {
	return &Traverser{products: products}
}

// Traverse visits the component and everything below it
func (t *Traverser) Traverse(
	ctx context.Context,
	componentID string,
	kind entities.TargetKind,
	quantity entities.Quantity,
	visitor NodeVisitor,
) (interface{}, error) {
	return t.traverse(ctx, componentID, kind, quantity, 0, nil, visitor)
}

func (t *Traverser) traverse(
	ctx context.Context,
	componentID string,
	kind entities.TargetKind,
	quantity entities.Quantity,
	level int,
	path []entities.ProductID,
	visitor NodeVisitor,
) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodeCtx := NodeContext{
		ComponentID: componentID,
		Kind:        kind,
		Quantity:    quantity,
		Level:       level,
	}

	if kind == entities.KindProduct {
		id := entities.ProductID(componentID)
		for i, seen := range path {
			if seen == id {
				cycle := append(append([]entities.ProductID{}, path[i:]...), id)
				return nil, &entities.CyclicBOMError{Path: cycle}
			}
		}

		product, err := t.products.GetProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get product %s: %w", id, err)
		}
		nodeCtx.Product = product
	}

	nodeData, shouldContinue, err := visitor.VisitNode(ctx, nodeCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to visit node %s: %w", componentID, err)
	}

	// Materials terminate recursion
	if !shouldContinue || nodeCtx.Product == nil {
		return visitor.ProcessChildren(ctx, nodeCtx, nodeData, nil)
	}

	childPath := append(append(make([]entities.ProductID, 0, len(path)+1), path...), nodeCtx.Product.ID)

	childResults := make([]interface{}, 0, len(nodeCtx.Product.BOM))
	for _, line := range nodeCtx.Product.BOM {
		childQty, err := entities.MulQuantity(line.QtyPer, quantity)
		if err != nil {
			return nil, fmt.Errorf("component %s of %s: %w", line.ComponentID, nodeCtx.Product.ID, err)
		}
		childResult, err := t.traverse(
			ctx,
			line.ComponentID,
			line.Kind,
			childQty,
			level+1,
			childPath,
			visitor,
		)
		if err != nil {
			return nil, err
		}
		childResults = append(childResults, childResult)
	}

	return visitor.ProcessChildren(ctx, nodeCtx, nodeData, childResults)
}
