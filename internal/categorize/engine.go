package categorize

import (
	"strings"

	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/logger"
)

// UncategorizedName is the category assigned when no keyword matches
const UncategorizedName = "Uncategorized"

// Config holds configuration options for the category engine
type Config struct {
	// SubcategoryBase is the confidence floor for a subcategory match
	SubcategoryBase float64
	// RootBase is the confidence floor for a root category match
	RootBase float64
}

// DefaultConfig returns a default category engine configuration
func DefaultConfig() *Config {
	return &Config{
		SubcategoryBase: 0.8,
		RootBase:        0.6,
	}
}

// Result is the outcome of classifying one description
type Result struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Engine classifies descriptions against a category tree
type Engine struct {
	tree   *Tree
	config *Config
	log    logger.Logger
}

// NewEngine creates a category engine over an immutable tree
func NewEngine(tree *Tree, config *Config, log logger.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{
		tree:   tree,
		config: config,
		log:    log.WithComponent("categorize"),
	}
}

// match is one candidate keyword hit during classification
type match struct {
	node    *models.CategoryNode
	keyword string
}

// Classify compares the lower-cased description against every node's
// keyword list. The winner is chosen by an explicit total order:
// a non-root node beats a root node, then the longer matching keyword
// wins, then the lower insertion sequence number. No match yields
// Uncategorized with confidence zero. Classification is deterministic:
// the same description against the same tree always yields the same
// result.
func (e *Engine) Classify(description string) Result {
	desc := strings.ToLower(strings.TrimSpace(description))
	if desc == "" {
		return Result{Category: UncategorizedName, Confidence: 0}
	}

	var best *match
	for _, node := range e.tree.Nodes() {
		for _, kw := range node.Keywords {
			keyword := strings.ToLower(strings.TrimSpace(kw))
			if keyword == "" || !strings.Contains(desc, keyword) {
				continue
			}
			candidate := &match{node: node, keyword: keyword}
			if best == nil || e.better(candidate, best) {
				best = candidate
			}
		}
	}

	if best == nil {
		return Result{Category: UncategorizedName, Confidence: 0}
	}

	result := Result{Confidence: e.confidence(best, desc)}
	if best.node.IsRoot() {
		result.Category = best.node.Name
	} else {
		result.Subcategory = best.node.Name
		if parent := e.tree.Parent(best.node); parent != nil {
			result.Category = parent.Name
		}
	}

	return result
}

// better implements the documented total order over candidate matches
func (e *Engine) better(a, b *match) bool {
	aSub, bSub := !a.node.IsRoot(), !b.node.IsRoot()
	if aSub != bSub {
		return aSub
	}
	if len(a.keyword) != len(b.keyword) {
		return len(a.keyword) > len(b.keyword)
	}
	return a.node.Seq < b.node.Seq
}

// confidence scores the match from its specificity and the matched
// keyword's length relative to the description. Longer, more specific
// matches approach 1.0.
func (e *Engine) confidence(m *match, desc string) float64 {
	base := e.config.RootBase
	if !m.node.IsRoot() {
		base = e.config.SubcategoryBase
	}

	ratio := float64(len(m.keyword)) / float64(len(desc))
	if ratio > 1 {
		ratio = 1
	}

	conf := base + (1-base)*ratio
	if conf > 1 {
		conf = 1
	}
	return conf
}
