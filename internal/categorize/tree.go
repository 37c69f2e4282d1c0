// Package categorize classifies transaction descriptions against a
// hierarchical keyword category tree. Classification is deterministic and
// pure: the tree is immutable reference data once built, so one engine
// may be shared read-only across concurrent workers.
package categorize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bank-statement-processor/internal/models"
)

// Tree is an arena of category nodes keyed by identifier. Parent links
// are keys into the arena rather than pointers; a parent key must already
// exist at insertion time, which makes the no-cycle invariant hold by
// construction.
type Tree struct {
	nodes   map[uuid.UUID]*models.CategoryNode
	order   []uuid.UUID
	nextSeq int
}

// NewTree creates an empty category tree
func NewTree() *Tree {
	return &Tree{nodes: make(map[uuid.UUID]*models.CategoryNode)}
}

// Add inserts a node into the arena. The node's parent, when set, must
// already be present. The tree assigns the insertion sequence number used
// as the stable classification tie-break.
func (t *Tree) Add(node *models.CategoryNode) error {
	if node == nil {
		return fmt.Errorf("category node cannot be nil")
	}
	if strings.TrimSpace(node.Name) == "" {
		return fmt.Errorf("category name cannot be empty")
	}
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	if _, exists := t.nodes[node.ID]; exists {
		return fmt.Errorf("category %s already present", node.ID)
	}

	if node.ParentID != nil {
		parent, ok := t.nodes[*node.ParentID]
		if !ok {
			return fmt.Errorf("parent category %s not found for %q", node.ParentID, node.Name)
		}
		if !parent.IsRoot() {
			return fmt.Errorf("category tree is two levels deep, %q cannot nest under subcategory %q", node.Name, parent.Name)
		}
	}

	node.Seq = t.nextSeq
	t.nextSeq++
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}

	t.nodes[node.ID] = node
	t.order = append(t.order, node.ID)
	return nil
}

// AddRoot creates and inserts a root category
func (t *Tree) AddRoot(name string, keywords []string) (*models.CategoryNode, error) {
	node := &models.CategoryNode{
		ID:       uuid.New(),
		Name:     name,
		Keywords: keywords,
	}
	if err := t.Add(node); err != nil {
		return nil, err
	}
	return node, nil
}

// AddChild creates and inserts a subcategory under an existing root
func (t *Tree) AddChild(parentID uuid.UUID, name string, keywords []string) (*models.CategoryNode, error) {
	pid := parentID
	node := &models.CategoryNode{
		ID:       uuid.New(),
		Name:     name,
		ParentID: &pid,
		Keywords: keywords,
	}
	if err := t.Add(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Get returns the node with the given id
func (t *Tree) Get(id uuid.UUID) (*models.CategoryNode, bool) {
	node, ok := t.nodes[id]
	return node, ok
}

// Parent returns the parent node, or nil for roots
func (t *Tree) Parent(node *models.CategoryNode) *models.CategoryNode {
	if node == nil || node.ParentID == nil {
		return nil
	}
	return t.nodes[*node.ParentID]
}

// Nodes returns all nodes in insertion order
func (t *Tree) Nodes() []*models.CategoryNode {
	out := make([]*models.CategoryNode, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// Len returns the number of nodes in the tree
func (t *Tree) Len() int {
	return len(t.nodes)
}
