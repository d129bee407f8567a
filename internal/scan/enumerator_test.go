package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nordlicht-labs/corpusgraph/pkg/common"
	"github.com/nordlicht-labs/corpusgraph/pkg/remote"
)

// fakeLister serves a fixed folder tree and can fail specific folders.
type fakeLister struct {
	tree     map[string][]remote.Entry
	failing  map[string]bool
	authFail map[string]bool
	calls    map[string]int
}

func (f *fakeLister) ListChildren(_ context.Context, folderID string, _ int, _ string) ([]remote.Entry, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[folderID]++
	if f.authFail[folderID] {
		return nil, fmt.Errorf("%w: credentials refused", remote.ErrAuth)
	}
	if f.failing[folderID] {
		return nil, errors.New("listing failed")
	}
	return f.tree[folderID], nil
}

func file(id, name string, size int64) remote.Entry {
	return remote.Entry{ID: id, Name: name, Type: remote.EntryTypeFile, Size: size}
}

func folder(id, name string) remote.Entry {
	return remote.Entry{ID: id, Name: name, Type: remote.EntryTypeFolder}
}

func newTestEnumerator(lister Lister, maxDepth int) *Enumerator {
	return NewEnumerator(NewEnumeratorParams{
		Lister:   lister,
		SpaceID:  "space-1",
		MaxDepth: maxDepth,
		Pace:     -1,
	})
}

func TestWalkRecordsFilesAndHistograms(t *testing.T) {
	lister := &fakeLister{tree: map[string][]remote.Entry{
		"root": {
			file("f1", "a.pdf", 100),
			file("f2", "b.jpg", 200),
			folder("sub", "docs"),
		},
		"sub": {
			file("f3", "c.xlsx", 300),
			file("f4", "d.jpg", 50),
		},
	}}

	inv, err := newTestEnumerator(lister, 0).Walk(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inv.Folders != 2 {
		t.Errorf("folders = %d, want 2", inv.Folders)
	}
	if inv.Files != 4 {
		t.Errorf("files = %d, want 4", inv.Files)
	}
	if inv.TotalSize != 650 {
		t.Errorf("total_size = %d, want 650", inv.TotalSize)
	}
	if inv.Extensions["jpg"] != 2 {
		t.Errorf("jpg count = %d, want 2", inv.Extensions["jpg"])
	}
	if inv.Categories["image"] != 2 {
		t.Errorf("image kind count = %d, want 2", inv.Categories["image"])
	}

	// Nested path and space id on descriptors.
	var nested *common.FileDescriptor
	for i := range inv.AllFiles {
		if inv.AllFiles[i].FileID == "f3" {
			nested = &inv.AllFiles[i]
		}
	}
	if nested == nil {
		t.Fatal("f3 missing from inventory")
	}
	if nested.Path != "docs/c.xlsx" {
		t.Errorf("path = %q, want docs/c.xlsx", nested.Path)
	}
	if nested.SpaceID != "space-1" {
		t.Errorf("space id = %q", nested.SpaceID)
	}
	if nested.ParentFolder != "sub" {
		t.Errorf("parent = %q, want sub", nested.ParentFolder)
	}
}

func TestWalkFileIDsUniqueAndSizesNonNegative(t *testing.T) {
	lister := &fakeLister{tree: map[string][]remote.Entry{
		"root": {
			file("f1", "a.pdf", -5),
			file("f2", "b.jpg", 10),
		},
	}}

	inv, err := newTestEnumerator(lister, 0).Walk(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, fd := range inv.AllFiles {
		if seen[fd.FileID] {
			t.Errorf("duplicate file id %s", fd.FileID)
		}
		seen[fd.FileID] = true
		if fd.SizeBytes < 0 {
			t.Errorf("negative size on %s", fd.FileID)
		}
	}
}

func TestWalkListingFailureKeepsSiblings(t *testing.T) {
	lister := &fakeLister{
		tree: map[string][]remote.Entry{
			"root": {
				file("f1", "a.pdf", 1),
				folder("bad", "broken"),
				file("f2", "b.jpg", 1),
			},
		},
		failing: map[string]bool{"bad": true},
	}

	inv, err := newTestEnumerator(lister, 0).Walk(context.Background(), "root")
	if err != nil {
		t.Fatalf("a failing folder must not abort the scan: %v", err)
	}
	if inv.Files != 2 {
		t.Errorf("files = %d, want 2 (siblings survive)", inv.Files)
	}
	if lister.calls["bad"] < 2 {
		t.Errorf("failing folder tried %d times, want retries", lister.calls["bad"])
	}
}

func TestWalkAbortsOnRejectedCredentials(t *testing.T) {
	lister := &fakeLister{
		tree: map[string][]remote.Entry{
			"root": {file("f1", "a.pdf", 1)},
		},
		authFail: map[string]bool{"root": true},
	}

	_, err := newTestEnumerator(lister, 0).Walk(context.Background(), "root")
	if !errors.Is(err, remote.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth (rejected credentials must abort the scan)", err)
	}
}

func TestWalkCutsCycles(t *testing.T) {
	lister := &fakeLister{tree: map[string][]remote.Entry{
		"root": {folder("loop", "self"), file("f1", "a.pdf", 1)},
		"loop": {folder("root", "back")},
	}}

	inv, err := newTestEnumerator(lister, 0).Walk(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lister.calls["root"] != 1 {
		t.Errorf("root listed %d times, want 1", lister.calls["root"])
	}
	if inv.Files != 1 {
		t.Errorf("files = %d, want 1", inv.Files)
	}
}

func TestWalkBoundsDepth(t *testing.T) {
	lister := &fakeLister{tree: map[string][]remote.Entry{
		"root": {folder("l1", "a"), file("f0", "top.txt", 1)},
		"l1":   {folder("l2", "b")},
		"l2":   {file("deep", "deep.txt", 1)},
	}}

	e := NewEnumerator(NewEnumeratorParams{
		Lister:   lister,
		SpaceID:  "space-1",
		MaxDepth: 1,
		Pace:     -1,
	})
	inv, err := e.Walk(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Files != 1 {
		t.Errorf("files = %d, want 1 (deep file beyond max depth)", inv.Files)
	}
	if lister.calls["l2"] != 0 {
		t.Errorf("folder beyond max depth was listed")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	lister := &fakeLister{tree: map[string][]remote.Entry{
		"root": {file("f1", "a.pdf", 10), file("f2", "b.jpg", 20)},
	}}

	inv, err := newTestEnumerator(lister, 0).Walk(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "inventory.json")
	if err := WriteSnapshot(inv, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(loaded.AllFiles) != len(inv.AllFiles) {
		t.Fatalf("files = %d, want %d", len(loaded.AllFiles), len(inv.AllFiles))
	}
	for i := range loaded.AllFiles {
		if loaded.AllFiles[i].FileID != inv.AllFiles[i].FileID {
			t.Errorf("order changed at %d", i)
		}
	}
}
