// Package chunker splits raw documents into overlapping chunks for
// embedding and retrieval.
//
// The package exposes one primitive, a sliding-window splitter, applied
// at two granularities: parent chunks sized for LLM prompt context and
// child chunks sized for precise similarity matching. Hierarchy runs
// the primitive twice to build the two-level tree used by hierarchical
// (child-search, parent-return) retrieval; Split alone covers flat
// single-level ingestion.
//
// All functions are pure and deterministic. Sizes and overlaps are
// measured in runes so multi-byte text (the knowledge bases are mostly
// Japanese) never gets cut mid-character.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOverlap indicates a window configuration where the overlap is not
// smaller than the chunk size, which would make the window never advance.
var ErrOverlap = errors.New("chunk size must be greater than overlap")

// Default window sizes, in runes.
const (
	DefaultParentSize    = 800
	DefaultParentOverlap = 100
	DefaultChildSize     = 200
	DefaultChildOverlap  = 50

	// Flat ingestion uses a smaller parent window.
	FlatParentSize    = 600
	FlatParentOverlap = 50
)

// Options configures the two window levels of Hierarchy.
type Options struct {
	ParentSize    int
	ParentOverlap int
	ChildSize     int
	ChildOverlap  int
}

// DefaultOptions returns the window configuration for hierarchical ingestion.
func DefaultOptions() Options {
	return Options{
		ParentSize:    DefaultParentSize,
		ParentOverlap: DefaultParentOverlap,
		ChildSize:     DefaultChildSize,
		ChildOverlap:  DefaultChildOverlap,
	}
}

// FlatOptions returns the window configuration for flat ingestion.
// The same child window applies when a caller derives children from
// flat parents.
func FlatOptions() Options {
	return Options{
		ParentSize:    FlatParentSize,
		ParentOverlap: FlatParentOverlap,
		ChildSize:     DefaultChildSize,
		ChildOverlap:  DefaultChildOverlap,
	}
}

// Validate checks that both window levels can advance.
func (o Options) Validate() error {
	if o.ParentSize <= o.ParentOverlap {
		return fmt.Errorf("parent window %d/%d: %w", o.ParentSize, o.ParentOverlap, ErrOverlap)
	}
	if o.ChildSize <= o.ChildOverlap {
		return fmt.Errorf("child window %d/%d: %w", o.ChildSize, o.ChildOverlap, ErrOverlap)
	}
	return nil
}

// Child is a fine-grained chunk nested under a parent.
type Child struct {
	Content string
	Index   int
}

// Parent is a coarse chunk with its derived children.
type Parent struct {
	Content  string
	Index    int
	Children []Child
}

// Split cuts text into overlapping windows of size runes, advancing
// size-overlap runes per step. Line endings are normalized and the
// input trimmed first; whitespace-only input yields no chunks. Input
// shorter than size yields exactly one chunk. Windows are trimmed and
// empty ones dropped, so indices in the result are emission order.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= overlap {
		return nil, fmt.Errorf("window %d/%d: %w", size, overlap, ErrOverlap)
	}

	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if normalized == "" {
		return nil, nil
	}

	runes := []rune(normalized)
	step := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		if slice := strings.TrimSpace(string(runes[start:end])); slice != "" {
			chunks = append(chunks, slice)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Hierarchy splits text into parent chunks and re-splits each parent
// into child chunks. Parent indices count in emission order from 0;
// child indices restart at 0 for every parent.
func Hierarchy(text string, opts Options) ([]Parent, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	parentContents, err := Split(text, opts.ParentSize, opts.ParentOverlap)
	if err != nil {
		return nil, err
	}

	parents := make([]Parent, 0, len(parentContents))
	for i, content := range parentContents {
		childContents, err := Split(content, opts.ChildSize, opts.ChildOverlap)
		if err != nil {
			return nil, err
		}

		children := make([]Child, 0, len(childContents))
		for j, child := range childContents {
			children = append(children, Child{Content: child, Index: j})
		}
		parents = append(parents, Parent{Content: content, Index: i, Children: children})
	}
	return parents, nil
}
