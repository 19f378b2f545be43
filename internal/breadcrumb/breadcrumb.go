// Package breadcrumb resolves a folder id to its "root > child > … > leaf"
// display path over a folder map. Resolution is iterative (no
// recursion, so a corrupt folder map cannot blow the stack) and
// cycle-safe: if a chain revisits a folder id the walk stops at the
// revisit and the result is marked Cyclic instead of looping forever.
package breadcrumb

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

// DefaultSeparator is used when Builder.Separator is left empty.
const DefaultSeparator = " > "

// unknownPrefix marks a synthetic segment standing in for a folder id that
// has no entry in the folder map.
const unknownPrefix = "(unknown:"

// Result is what Resolve returns for a single folder id.
type Result struct {
	Path           string
	Cyclic         bool
	MissingParents []string
}

// Builder resolves breadcrumbs over a fixed folder map, memoizing results
// per folder id.
type Builder struct {
	folders   model.FolderMap
	Separator string

	cache *lru.Cache[string, Result]
}

// New constructs a Builder over the given folder map. cacheSize bounds the
// memoization cache; 0 uses a sensible default.
func New(folders model.FolderMap, cacheSize int) *Builder {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	c, _ := lru.New[string, Result](cacheSize)
	return &Builder{folders: folders, cache: c}
}

// Resolve computes the breadcrumb path for folderID, using the memoization
// cache when available.
func (b *Builder) Resolve(folderID string) Result {
	if folderID == "" {
		return Result{Path: ""}
	}
	if cached, ok := b.cache.Get(folderID); ok {
		return cached
	}

	sep := b.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var segments []string
	var missing []string
	visited := make(map[string]bool)
	cyclic := false

	cur := folderID
	for {
		if visited[cur] {
			cyclic = true
			break
		}
		visited[cur] = true

		f, ok := b.folders[cur]
		if !ok {
			segments = append(segments, unknownPrefix+cur+")")
			missing = append(missing, cur)
			break
		}
		segments = append(segments, f.Name)
		if f.ParentID == "" {
			break
		}
		cur = f.ParentID
	}

	reverse(segments)
	res := Result{Path: strings.Join(segments, sep), Cyclic: cyclic, MissingParents: missing}
	b.cache.Add(folderID, res)
	return res
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
