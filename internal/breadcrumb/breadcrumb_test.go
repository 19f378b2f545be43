package breadcrumb

import (
	"testing"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

func TestResolveBuildsFullPath(t *testing.T) {
	folders := model.FolderMap{
		"root": {ID: "root", Name: "Root"},
		"mid":  {ID: "mid", Name: "Mid", ParentID: "root"},
		"leaf": {ID: "leaf", Name: "Leaf", ParentID: "mid"},
	}
	b := New(folders, 0)
	res := b.Resolve("leaf")
	if res.Path != "Root > Mid > Leaf" {
		t.Fatalf("unexpected path: %q", res.Path)
	}
	if res.Cyclic {
		t.Fatalf("did not expect cyclic result")
	}
}

func TestResolveMissingParentSyntheticSegment(t *testing.T) {
	folders := model.FolderMap{
		"leaf": {ID: "leaf", Name: "Leaf", ParentID: "ghost"},
	}
	b := New(folders, 0)
	res := b.Resolve("leaf")
	if res.Path != "(unknown:ghost) > Leaf" {
		t.Fatalf("unexpected path: %q", res.Path)
	}
	if len(res.MissingParents) != 1 || res.MissingParents[0] != "ghost" {
		t.Fatalf("expected missing parent 'ghost', got %v", res.MissingParents)
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	folders := model.FolderMap{
		"a": {ID: "a", Name: "A", ParentID: "b"},
		"b": {ID: "b", Name: "B", ParentID: "a"},
	}
	b := New(folders, 0)
	res := b.Resolve("a")
	if !res.Cyclic {
		t.Fatalf("expected cyclic=true for a<->b cycle")
	}
}

func TestResolveIsMemoized(t *testing.T) {
	folders := model.FolderMap{
		"root": {ID: "root", Name: "Root"},
	}
	b := New(folders, 0)
	first := b.Resolve("root")
	folders["root"] = model.Folder{ID: "root", Name: "Mutated"}
	second := b.Resolve("root")
	if first.Path != second.Path {
		t.Fatalf("expected memoized result to be reused, got %q then %q", first.Path, second.Path)
	}
}

func TestResolveCustomSeparator(t *testing.T) {
	folders := model.FolderMap{
		"root": {ID: "root", Name: "Root"},
		"leaf": {ID: "leaf", Name: "Leaf", ParentID: "root"},
	}
	b := New(folders, 0)
	b.Separator = "/"
	res := b.Resolve("leaf")
	if res.Path != "Root/Leaf" {
		t.Fatalf("unexpected path: %q", res.Path)
	}
}
