package bom

import (
	"context"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// flattenVisitor accumulates leaf material units
type flattenVisitor struct {
	requirements entities.Requirements
}

func (v *flattenVisitor) VisitNode(ctx context.Context, nodeCtx NodeContext) (interface{}, bool, error) {
	if nodeCtx.Kind == entities.KindMaterial {
		if err := v.requirements.Add(entities.MaterialID(nodeCtx.ComponentID), nodeCtx.Quantity); err != nil {
			return nil, false, err
		}
	}
	return nil, true, nil
}

func (v *flattenVisitor) ProcessChildren(
	ctx context.Context,
	nodeCtx NodeContext,
	nodeData interface{},
	childResults []interface{},
) (interface{}, error) {
	return nil, nil
}

// Node is one row of an exploded BOM tree
type Node struct {
	ComponentID string              `json:"component_id"`
	Name        string              `json:"name,omitempty"`
	Kind        entities.TargetKind `json:"kind"`
	Quantity    entities.Quantity   `json:"quantity"`
	Level       int                 `json:"level"`
	Children    []*Node             `json:"children,omitempty"`
}

// treeVisitor builds the explosion tree for display
type treeVisitor struct{}

func (v *treeVisitor) VisitNode(ctx context.Context, nodeCtx NodeContext) (interface{}, bool, error) {
	node := &Node{
		ComponentID: nodeCtx.ComponentID,
		Kind:        nodeCtx.Kind,
		Quantity:    nodeCtx.Quantity,
		Level:       nodeCtx.Level,
	}
	if nodeCtx.Product != nil {
		node.Name = nodeCtx.Product.Name
	}
	return node, true, nil
}

func (v *treeVisitor) ProcessChildren(
	ctx context.Context,
	nodeCtx NodeContext,
	nodeData interface{},
	childResults []interface{},
) (interface{}, error) {
	node := nodeData.(*Node)
	for _, child := range childResults {
		if child != nil {
			node.Children = append(node.Children, child.(*Node))
		}
	}
	return node, nil
}
