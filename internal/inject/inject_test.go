package inject

import (
	"context"
	"testing"
)

func TestInject_EmptyTextRejected(t *testing.T) {
	i := New("")
	if err := i.Inject(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty transcript")
	}
}

func TestNew_DefaultTarget(t *testing.T) {
	if got := New("").Target; got != "Cursor" {
		t.Fatalf("expected default target Cursor, got %q", got)
	}
	if got := New("Zed").Target; got != "Zed" {
		t.Fatalf("expected explicit target, got %q", got)
	}
}
