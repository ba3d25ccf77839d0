package store

import (
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
)

type liveWidget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type deletedWidget struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted string `json:"deleted"`
}

func newTestRegistry(t *testing.T) *Registry[liveWidget, deletedWidget] {
	t.Helper()
	dir := t.TempDir()
	live, err := Open[liveWidget](filepath.Join(dir, "v1.0_widgets.json"), logr.Discard(), func(w liveWidget) string { return w.ID })
	if err != nil {
		t.Fatalf("Open live: %v", err)
	}
	deleted, err := Open[deletedWidget](filepath.Join(dir, "v1.0_deleted_widgets.json"), logr.Discard(), func(w deletedWidget) string { return w.ID })
	if err != nil {
		t.Fatalf("Open deleted: %v", err)
	}
	return NewRegistry(live, deleted)
}

func TestRegistryMoveToDeletedAndRestore(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Live.Put("a", liveWidget{ID: "a", Name: "alpha"}); err != nil {
		t.Fatalf("seed live: %v", err)
	}

	if err := r.MoveToDeleted("a", deletedWidget{ID: "a", Name: "alpha", Deleted: "2026-07-29"}); err != nil {
		t.Fatalf("MoveToDeleted: %v", err)
	}
	if r.Live.Contains("a") {
		t.Error("live store still contains a after MoveToDeleted")
	}
	_, d, state := r.Get("a")
	if state != StateDeleted || d.Name != "alpha" {
		t.Errorf("Get(a) = %v, %v, want deleted/alpha", d, state)
	}

	if err := r.Restore("a", liveWidget{ID: "a", Name: "alpha"}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if r.Deleted.Contains("a") {
		t.Error("deleted store still contains a after Restore")
	}
	live, _, state := r.Get("a")
	if state != StateLive || live.Name != "alpha" {
		t.Errorf("Get(a) = %v, %v, want live/alpha", live, state)
	}
}

func TestRegistryGetAbsent(t *testing.T) {
	r := newTestRegistry(t)
	_, _, state := r.Get("missing")
	if state != StateAbsent {
		t.Errorf("Get(missing) state = %v, want StateAbsent", state)
	}
}

func TestRegistryLiveWinsOnDuplicate(t *testing.T) {
	// Simulates the crash window described in §4.H: the deleted write
	// succeeded but the live removal did not happen, leaving the id in
	// both stores. Live must win.
	r := newTestRegistry(t)
	if err := r.Live.Put("a", liveWidget{ID: "a", Name: "alpha"}); err != nil {
		t.Fatalf("seed live: %v", err)
	}
	if err := r.Deleted.Put("a", deletedWidget{ID: "a", Name: "alpha", Deleted: "2026-07-29"}); err != nil {
		t.Fatalf("seed deleted: %v", err)
	}

	live, _, state := r.Get("a")
	if state != StateLive || live.Name != "alpha" {
		t.Errorf("Get(a) = %v, %v, want live/alpha (live wins)", live, state)
	}
}
