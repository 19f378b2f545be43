package graph

import (
	"testing"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

// A query with no incoming automation_contains_query edge is the only
// orphan.
func TestOrphanUnreferencedQuery(t *testing.T) {
	items := []model.Object{
		{ID: "Q1", Type: model.ObjectQuery, Name: "Q1"},
		{ID: "Q2", Type: model.ObjectQuery, Name: "Q2"},
		{ID: "A1", Type: model.ObjectAutomation, Name: "A1"},
	}
	edges := []model.RelationshipEdge{
		{SourceType: model.ObjectAutomation, SourceID: "A1", Kind: model.EdgeAutomationContainsQuery, TargetType: model.ObjectQuery, TargetID: "Q2"},
	}
	g := Build(items, edges)

	orphans := g.Orphans[model.ObjectQuery]
	if len(orphans) != 1 || orphans[0] != "Q1" {
		t.Fatalf("expected orphan set {Q1}, got %v", orphans)
	}
	reason := g.OrphanMeta[model.ObjectKey{Type: model.ObjectQuery, ID: "Q1"}]
	if reason != model.OrphanUnused {
		t.Fatalf("reason = %v, want unused", reason)
	}
	if _, flagged := g.OrphanMeta[model.ObjectKey{Type: model.ObjectQuery, ID: "Q2"}]; flagged {
		t.Fatalf("Q2 should not be flagged as orphan")
	}
	if g.Stats.TotalOrphans != 1 {
		t.Fatalf("TotalOrphans = %d, want 1", g.Stats.TotalOrphans)
	}
}

// An Active triggered send outside a journey-builder folder is not an
// orphan; a Deleted one inside a journeybuilder folder with a
// UUID-suffixed name is flagged jb_orphan.
func TestJBOrphanTriggeredSend(t *testing.T) {
	items := []model.Object{
		{
			ID: "TS_alpha", Type: model.ObjectTriggeredSend, Name: "welcome-send",
			Status: "Active", FolderPath: "/root/triggered_send",
		},
		{
			ID: "TS_beta", Type: model.ObjectTriggeredSend,
			Name:       "promo-emailv2-1b2e3f4a-5b6c-7d8e-9f01-23456789abcd",
			Status:     "Deleted",
			FolderPath: "/root/triggered_send/journeybuilder",
		},
	}
	g := Build(items, nil)

	if _, flagged := g.OrphanMeta[model.ObjectKey{Type: model.ObjectTriggeredSend, ID: "TS_alpha"}]; flagged {
		t.Fatalf("TS_alpha should not be flagged as orphan")
	}
	reason, flagged := g.OrphanMeta[model.ObjectKey{Type: model.ObjectTriggeredSend, ID: "TS_beta"}]
	if !flagged {
		t.Fatalf("TS_beta should be flagged as orphan")
	}
	if reason != model.OrphanJBOrphan {
		t.Fatalf("reason = %v, want jb_orphan", reason)
	}
}

func TestUnknownKindsAreNeverFlagged(t *testing.T) {
	items := []model.Object{
		{ID: "F1", Type: model.ObjectFolder, Name: "F1"},
		{ID: "AS1", Type: model.ObjectAsset, Name: "AS1"},
	}
	g := Build(items, nil)
	if g.Stats.TotalOrphans != 0 {
		t.Fatalf("expected no orphans for kinds without a rule, got %d", g.Stats.TotalOrphans)
	}
}

func TestDanglingEdgeTargetIsExcludedFromUsage(t *testing.T) {
	items := []model.Object{
		{ID: "A1", Type: model.ObjectAutomation, Name: "A1"},
	}
	edges := []model.RelationshipEdge{
		// Targets a query that was never extracted (e.g. deleted out from under us):
		// dangling, and since the query is absent from ObjectIndex it can never be
		// iterated over by computeOrphans in the first place.
		{SourceType: model.ObjectAutomation, SourceID: "A1", Kind: model.EdgeAutomationContainsQuery, TargetType: model.ObjectQuery, TargetID: "Q-missing"},
	}
	g := Build(items, edges)
	if g.Stats.DanglingEdges != 1 {
		t.Fatalf("DanglingEdges = %d, want 1", g.Stats.DanglingEdges)
	}
	if _, present := g.ObjectIndex[model.ObjectKey{Type: model.ObjectQuery, ID: "Q-missing"}]; present {
		t.Fatalf("Q-missing should not appear in the object index")
	}
}
