// Package graph implements the relationship builder: it folds all
// extractors' items and edges into a read-only RelationshipGraph, then
// computes orphan sets per the rule table, plus the triggered-send-specific
// journey-builder-orphan rule.
package graph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

// usageRules maps an object kind to the set of source kinds that, if they
// reference it, count it as used. A kind absent
// from this map is never flagged as an orphan by the generic rule (the
// triggered send's JB-orphan rule, handled separately, is the exception).
var usageRules = map[model.ObjectType][]model.ObjectType{
	model.ObjectQuery:             {model.ObjectAutomation},
	model.ObjectScript:            {model.ObjectAutomation},
	model.ObjectImport:            {model.ObjectAutomation},
	model.ObjectDataExtract:       {model.ObjectAutomation},
	model.ObjectFileTransfer:      {model.ObjectAutomation},
	model.ObjectFilter:            {model.ObjectAutomation, model.ObjectJourney},
	model.ObjectEventDefinition:   {model.ObjectJourney},
	model.ObjectDataExtension: {
		model.ObjectQuery, model.ObjectJourney, model.ObjectImport, model.ObjectFilter,
		model.ObjectEventDefinition, model.ObjectTriggeredSend, model.ObjectDataExtract,
	},
	model.ObjectEmail:             {model.ObjectAutomation, model.ObjectJourney, model.ObjectTriggeredSend},
	model.ObjectList:              {model.ObjectTriggeredSend, model.ObjectJourney},
	model.ObjectSenderProfile:     {model.ObjectSendClassification, model.ObjectTriggeredSend},
	model.ObjectDeliveryProfile:   {model.ObjectSendClassification, model.ObjectTriggeredSend},
	model.ObjectSendClassification: {model.ObjectTriggeredSend},
}

// jbOrphanNamePattern matches the UUID-suffix naming convention Journey
// Builder gives a triggered send it auto-creates.
var jbOrphanNamePattern = regexp.MustCompile(`(?i).*-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Build assembles extracted items and edges into a read-only
// RelationshipGraph and computes its orphan sets.
func Build(items []model.Object, edges []model.RelationshipEdge) *model.RelationshipGraph {
	b := model.NewBuilder()
	b.AddObjects(items)
	b.AddEdges(edges)
	g := b.Build()
	computeOrphans(g)
	return g
}

func computeOrphans(g *model.RelationshipGraph) {
	usedBy := make(map[model.ObjectKey]map[model.ObjectType]bool)
	for _, e := range g.Edges {
		if e.Dangling {
			continue
		}
		tk := e.TargetKey()
		if usedBy[tk] == nil {
			usedBy[tk] = map[model.ObjectType]bool{}
		}
		usedBy[tk][e.SourceType] = true
	}

	for key, summary := range g.ObjectIndex {
		if key.Type == model.ObjectTriggeredSend {
			if isJBOrphan(summary) {
				addOrphan(g, key, model.OrphanJBOrphan)
			}
			continue
		}
		allowed, ok := usageRules[key.Type]
		if !ok {
			continue
		}
		used := false
		for _, a := range allowed {
			if usedBy[key][a] {
				used = true
				break
			}
		}
		if !used {
			addOrphan(g, key, model.OrphanUnused)
		}
	}
	for _, ids := range g.Orphans {
		sort.Strings(ids)
	}
	g.Stats.TotalOrphans = len(g.OrphanMeta)
}

func addOrphan(g *model.RelationshipGraph, key model.ObjectKey, reason model.OrphanReason) {
	g.Orphans[key.Type] = append(g.Orphans[key.Type], key.ID)
	g.OrphanMeta[key] = reason
}

// isJBOrphan implements the triggered-send-specific rule: a
// TS is a journey-builder orphan iff its folder path contains
// "journeybuilder", its status is Deleted, and its name matches the
// UUID-suffix pattern Journey Builder gives auto-created sends.
func isJBOrphan(s model.Summary) bool {
	if s.Status != "Deleted" {
		return false
	}
	if !strings.Contains(strings.ToLower(s.FolderPath), "journeybuilder") {
		return false
	}
	return jbOrphanNamePattern.MatchString(s.Name)
}
