package knowledge

import (
	"fmt"
	"strings"
)

// Assemble renders retrieved matches into a single context string for
// prompt injection. Each match becomes a labeled block in result order;
// search results are already relevance-ranked and are not re-sorted.
//
// Empty input produces an empty string, which callers must treat as
// "omit the retrieved-context section entirely".
func Assemble(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(matches))
	for i, m := range matches {
		blocks = append(blocks, fmt.Sprintf("[ソース %d] (score: %.2f)\n%s", i+1, m.Similarity, m.Content))
	}
	return strings.Join(blocks, "\n\n")
}
