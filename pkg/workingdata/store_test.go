package workingdata

import (
	"reflect"
	"testing"

	"github.com/flowschema/evalengine/pkg/evalpath"
)

func path(t *testing.T, s string) evalpath.Path {
	t.Helper()
	return evalpath.Normalize(s)
}

func TestSetCreatesIntermediateObjects(t *testing.T) {
	s := New()
	s.Set(path(t, "a.b.c"), 42.0)

	got, ok := s.Get(path(t, "a.b.c"))
	if !ok || got != 42.0 {
		t.Fatalf("Get(a.b.c) = %v, %v; want 42.0, true", got, ok)
	}
}

func TestSetExtendsArrayWithNullPadding(t *testing.T) {
	s := New()
	s.Set(path(t, "items.2"), "x")

	got, ok := s.Get(path(t, "items"))
	if !ok {
		t.Fatal("expected items to exist")
	}
	arr, ok := got.([]any)
	if !ok || len(arr) != 3 {
		t.Fatalf("expected a 3-element array, got %#v", got)
	}
	if arr[0] != nil || arr[1] != nil || arr[2] != "x" {
		t.Fatalf("unexpected padding: %#v", arr)
	}
}

func TestReplaceRoot(t *testing.T) {
	s := New()
	s.Set(path(t, "a"), 1.0)
	s.ReplaceRoot(map[string]any{"b": 2.0})

	if _, ok := s.Get(path(t, "a")); ok {
		t.Fatal("expected old root to be discarded")
	}
	got, ok := s.Get(path(t, "b"))
	if !ok || got != 2.0 {
		t.Fatalf("Get(b) = %v, %v; want 2.0, true", got, ok)
	}
}

func TestSetAtRootReplacesDocument(t *testing.T) {
	s := New()
	s.Set(evalpath.Root(), map[string]any{"x": 1.0})
	if !reflect.DeepEqual(s.Root(), map[string]any{"x": 1.0}) {
		t.Fatalf("unexpected root: %#v", s.Root())
	}
}

func TestGetMissingPath(t *testing.T) {
	s := New()
	if _, ok := s.Get(path(t, "missing.deep")); ok {
		t.Fatal("expected missing path to report false")
	}
}
