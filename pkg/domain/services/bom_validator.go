package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/fulfillment/pkg/domain/entities"
)

// BOMValidator provides validation for BOM structure integrity
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles        bool
	CyclePaths       [][]entities.ProductID
	MissingProducts  []entities.ProductID
	MissingMaterials []entities.MaterialID
	Errors           []string
}

// ValidateCatalog performs validation across every product in the catalog.
// knownMaterials may be nil to skip the material reference check.
func (v *BOMValidator) ValidateCatalog(products []*entities.Product, knownMaterials map[entities.MaterialID]bool) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:       make([][]entities.ProductID, 0),
		MissingProducts:  make([]entities.ProductID, 0),
		MissingMaterials: make([]entities.MaterialID, 0),
		Errors:           make([]string, 0),
	}

	adjacencyMap := v.buildAdjacencyMap(products)

	cycles := v.detectCycles(adjacencyMap)
	result.HasCycles = len(cycles) > 0
	result.CyclePaths = cycles

	missingProducts := make(map[entities.ProductID]bool)
	missingMaterials := make(map[entities.MaterialID]bool)
	for _, product := range products {
		for _, line := range product.BOM {
			switch line.Kind {
			case entities.KindProduct:
				if _, exists := adjacencyMap[entities.ProductID(line.ComponentID)]; !exists {
					missingProducts[entities.ProductID(line.ComponentID)] = true
				}
			case entities.KindMaterial:
				if knownMaterials != nil && !knownMaterials[entities.MaterialID(line.ComponentID)] {
					missingMaterials[entities.MaterialID(line.ComponentID)] = true
				}
			}
		}
	}
	for id := range missingProducts {
		result.MissingProducts = append(result.MissingProducts, id)
	}
	sort.Slice(result.MissingProducts, func(i, j int) bool { return result.MissingProducts[i] < result.MissingProducts[j] })
	for id := range missingMaterials {
		result.MissingMaterials = append(result.MissingMaterials, id)
	}
	entities.SortMaterialIDs(result.MissingMaterials)

	if result.HasCycles {
		for _, cycle := range result.CyclePaths {
			result.Errors = append(result.Errors, (&entities.CyclicBOMError{Path: cycle}).Error())
		}
	}
	if len(result.MissingProducts) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM references unknown products: %v", result.MissingProducts))
	}
	if len(result.MissingMaterials) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM references unknown materials: %v", result.MissingMaterials))
	}

	return result
}

// CheckCandidate verifies that defining candidate on top of the existing
// catalog keeps the product graph acyclic. An existing product with the same
// id is treated as replaced by the candidate.
func (v *BOMValidator) CheckCandidate(candidate *entities.Product, existing []*entities.Product) error {
	products := make([]*entities.Product, 0, len(existing)+1)
	for _, p := range existing {
		if p.ID != candidate.ID {
			products = append(products, p)
		}
	}
	products = append(products, candidate)

	adjacencyMap := v.buildAdjacencyMap(products)
	for _, sub := range candidate.SubProducts() {
		if _, exists := adjacencyMap[sub]; !exists {
			return fmt.Errorf("component %s of product %s: %w", sub, candidate.ID, entities.ErrProductNotFound)
		}
	}

	visited := make(map[entities.ProductID]bool)
	recursionStack := make(map[entities.ProductID]bool)
	cycles := make([][]entities.ProductID, 0)
	v.dfsDetectCycle(candidate.ID, adjacencyMap, visited, recursionStack, nil, &cycles)
	if len(cycles) > 0 {
		return &entities.CyclicBOMError{Path: cycles[0]}
	}
	return nil
}

// buildAdjacencyMap creates a map of product -> sub-product relationships
func (v *BOMValidator) buildAdjacencyMap(products []*entities.Product) map[entities.ProductID][]entities.ProductID {
	adjacencyMap := make(map[entities.ProductID][]entities.ProductID, len(products))

	for _, product := range products {
		children := make([]entities.ProductID, 0)
		for _, child := range product.SubProducts() {
			// Avoid duplicate children in adjacency list
			found := false
			for _, existing := range children {
				if existing == child {
					found = true
					break
				}
			}
			if !found {
				children = append(children, child)
			}
		}
		adjacencyMap[product.ID] = children
	}

	return adjacencyMap
}

// detectCycles uses DFS to find cycles in the product graph
func (v *BOMValidator) detectCycles(adjacencyMap map[entities.ProductID][]entities.ProductID) [][]entities.ProductID {
	visited := make(map[entities.ProductID]bool)
	recursionStack := make(map[entities.ProductID]bool)
	cycles := make([][]entities.ProductID, 0)

	// Deterministic start order keeps reported paths stable
	parents := make([]entities.ProductID, 0, len(adjacencyMap))
	for parent := range adjacencyMap {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	for _, parent := range parents {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacencyMap, visited, recursionStack, nil, &cycles)
		}
	}

	return cycles
}

// dfsDetectCycle performs depth-first search to detect cycles
func (v *BOMValidator) dfsDetectCycle(
	current entities.ProductID,
	adjacencyMap map[entities.ProductID][]entities.ProductID,
	visited map[entities.ProductID]bool,
	recursionStack map[entities.ProductID]bool,
	path []entities.ProductID,
	cycles *[][]entities.ProductID,
) {
	visited[current] = true
	recursionStack[current] = true
	path = append(path, current)

	for _, child := range adjacencyMap[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacencyMap, visited, recursionStack, path, cycles)
		} else if recursionStack[child] {
			// Found a cycle - extract the cycle path
			for i, part := range path {
				if part == child {
					cycle := make([]entities.ProductID, 0, len(path)-i+1)
					cycle = append(cycle, path[i:]...)
					cycle = append(cycle, child) // Close the cycle
					*cycles = append(*cycles, cycle)
					break
				}
			}
		}
	}

	recursionStack[current] = false
}
