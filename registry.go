package forksearch

import (
	"slices"
	"sync"
)

// ClaimRegistry records which nodes have been committed to some branch.
// A node is never removed once claimed.
type ClaimRegistry[NodeType comparable] struct {
	mu       sync.Mutex
	claimed  map[NodeType]struct{}
	cameFrom map[NodeType]NodeType
}

// NewClaimRegistry returns an empty registry.
func NewClaimRegistry[NodeType comparable]() *ClaimRegistry[NodeType] {
	return &ClaimRegistry[NodeType]{
		claimed:  make(map[NodeType]struct{}),
		cameFrom: make(map[NodeType]NodeType),
	}
}

// TryClaim admits node if nobody owns it yet. Exactly one caller per node gets true.
func (registry *ClaimRegistry[NodeType]) TryClaim(node NodeType) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.claimLocked(node)
}

// TryClaimFrom is TryClaim that also records parent as the node that discovered node.
// The parent pointer is written inside the same critical section as the claim.
func (registry *ClaimRegistry[NodeType]) TryClaimFrom(node NodeType, parent NodeType) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if !registry.claimLocked(node) {
		return false
	}
	registry.cameFrom[node] = parent
	return true
}

func (registry *ClaimRegistry[NodeType]) claimLocked(node NodeType) bool {
	if _, exists := registry.claimed[node]; exists {
		return false
	}
	registry.claimed[node] = struct{}{}
	return true
}

// Len returns the number of claimed nodes.
func (registry *ClaimRegistry[NodeType]) Len() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.claimed)
}

// PathTo walks parent pointers from node back to start and returns start..node.
// It returns nil when node was never claimed.
func (registry *ClaimRegistry[NodeType]) PathTo(node NodeType, start NodeType) []NodeType {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.claimed[node]; !exists {
		return nil
	}

	// cameFrom forms a tree rooted at start: each node keeps the parent of
	// its single winning claim, so the walk cannot cycle.
	path := []NodeType{node}
	for current := node; current != start; {
		parent, exists := registry.cameFrom[current]
		if !exists {
			break
		}
		path = append(path, parent)
		current = parent
	}
	slices.Reverse(path)
	return path
}
