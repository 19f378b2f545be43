package model

import "sort"

// RelationshipGraph is the read-only structure assembled once, after all
// extractors complete.
type RelationshipGraph struct {
	Edges       []RelationshipEdge          `json:"edges"`
	ObjectIndex map[ObjectKey]Summary       `json:"-"`
	Orphans     map[ObjectType][]string     `json:"-"`
	OrphanMeta  map[ObjectKey]OrphanReason  `json:"-"`
	Stats       GraphStats                  `json:"stats"`
}

// OrphanReason records why an object was flagged an orphan: plain "unused"
// vs. the triggered-send-specific journey-builder rule.
type OrphanReason string

const (
	OrphanUnused    OrphanReason = "unused"
	OrphanJBOrphan  OrphanReason = "jb_orphan"
)

// GraphStats carries summary counters written into statistics.json.
type GraphStats struct {
	TotalEdges      int `json:"totalEdges"`
	DanglingEdges   int `json:"danglingEdges"`
	TotalObjects    int `json:"totalObjects"`
	TotalOrphans    int `json:"totalOrphans"`
}

// Builder folds raw items and edges into a RelationshipGraph. It lives here
// (rather than only in internal/graph) because the fold/dedupe step is part
// of the data model's own invariants — an edge is dangling exactly when its
// target is absent from the index; internal/graph composes this with the
// orphan rule table.
type Builder struct {
	index map[ObjectKey]Summary
	edges map[dedupeKey]RelationshipEdge
}

func NewBuilder() *Builder {
	return &Builder{
		index: make(map[ObjectKey]Summary),
		edges: make(map[dedupeKey]RelationshipEdge),
	}
}

// AddObjects indexes a batch of extracted objects by (type, id).
func (b *Builder) AddObjects(items []Object) {
	for _, it := range items {
		b.index[it.Key()] = Summary{
			Type:       it.Type,
			ID:         it.ID,
			Name:       it.Name,
			FolderPath: it.FolderPath,
			Status:     it.Status,
		}
	}
}

// AddEdges folds edges into the graph, deduplicating by the 5-tuple.
func (b *Builder) AddEdges(edges []RelationshipEdge) {
	for _, e := range edges {
		key := e.dedupeKey()
		if _, exists := b.edges[key]; exists {
			continue
		}
		b.edges[key] = e
	}
}

// Build finalizes the graph: marks dangling edges and computes stats. Orphan
// computation is layered on top by internal/graph, which owns the rule
// table and writes into Orphans/OrphanMeta before the graph is considered
// complete.
func (b *Builder) Build() *RelationshipGraph {
	edges := make([]RelationshipEdge, 0, len(b.edges))
	dangling := 0
	for _, e := range b.edges {
		if _, ok := b.index[e.TargetKey()]; !ok {
			e.Dangling = true
			dangling++
		}
		edges = append(edges, e)
	}
	// Deterministic order so two runs over the same fixture produce
	// byte-identical graph documents.
	sort.Slice(edges, func(i, j int) bool {
		a, c := edges[i], edges[j]
		if a.SourceType != c.SourceType {
			return a.SourceType < c.SourceType
		}
		if a.SourceID != c.SourceID {
			return a.SourceID < c.SourceID
		}
		if a.Kind != c.Kind {
			return a.Kind < c.Kind
		}
		if a.TargetType != c.TargetType {
			return a.TargetType < c.TargetType
		}
		return a.TargetID < c.TargetID
	})
	return &RelationshipGraph{
		Edges:       edges,
		ObjectIndex: b.index,
		Orphans:     make(map[ObjectType][]string),
		OrphanMeta:  make(map[ObjectKey]OrphanReason),
		Stats: GraphStats{
			TotalEdges:    len(edges),
			DanglingEdges: dangling,
			TotalObjects:  len(b.index),
		},
	}
}
