package fileid

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestFileDocID(t *testing.T) {
	id1 := FileDocID("/cv/jane_doe.pdf")
	id2 := FileDocID("/cv/jane_doe.pdf")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, Prefix) {
		t.Errorf("ID should have prefix %q: got %q", Prefix, id1)
	}
	if !Valid(id1) {
		t.Errorf("Valid(%q) = false", id1)
	}
}

func TestFileDocID_differentPaths(t *testing.T) {
	if FileDocID("/cv/a.pdf") == FileDocID("/cv/b.pdf") {
		t.Error("different paths should give different IDs")
	}
}

func TestFileDocID_normalized(t *testing.T) {
	id1 := FileDocID("/cv/a")
	if id1 != FileDocID("/cv/a/") {
		t.Error("paths differing only by trailing slash should match")
	}
	if id1 != FileDocID("/cv/./a") {
		t.Error("paths with . should normalize")
	}
}

func TestFileDocID_absoluteFromFilepath(t *testing.T) {
	abs, _ := filepath.Abs(".")
	if id := FileDocID(abs); !Valid(id) {
		t.Errorf("absolute path: got %q", id)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{FileDocID("/x"), true},
		{"resume:abc", false},
		{"file:" + strings.Repeat("a", 64), false},
		{Prefix + strings.Repeat("z", 64), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.id); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestShort(t *testing.T) {
	id := FileDocID("/cv/a.pdf")
	s := Short(id)
	if len(s) != len(Prefix)+shortLen || !strings.HasPrefix(id, s) {
		t.Errorf("Short(%q) = %q", id, s)
	}
	if Short("resume:ab") != "resume:ab" {
		t.Error("short IDs are returned unchanged")
	}
}
