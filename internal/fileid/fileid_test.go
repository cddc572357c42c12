package fileid

import (
	"strings"
	"testing"
)

func TestNoteID(t *testing.T) {
	id1 := NoteID("/Volumes/TM/Users/amy/Stickies/A.rtfd")
	id2 := NoteID("/Volumes/TM/Users/amy/Stickies/A.rtfd")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if !Valid(id1) {
		t.Errorf("Valid(%q) = false", id1)
	}
}

func TestNoteID_differentPaths(t *testing.T) {
	if NoteID("/s/A.rtfd") == NoteID("/s/B.rtfd") {
		t.Error("different paths should give different IDs")
	}
}

func TestNoteID_normalized(t *testing.T) {
	id1 := NoteID("/s/A.rtfd")
	if id2 := NoteID("/s/A.rtfd/"); id1 != id2 {
		t.Errorf("trailing slash should not matter: %q vs %q", id1, id2)
	}
	if id3 := NoteID("/s/./A.rtfd"); id1 != id3 {
		t.Errorf("paths with . should normalize: %q vs %q", id1, id3)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{NoteID("/x"), true},
		{"", false},
		{"note:", false},
		{"file:" + NoteID("/x")[len(prefix):], false},
		{prefix + strings.Repeat("z", 32), false},
		{prefix + strings.Repeat("a", 31), false},
	}
	for _, tt := range tests {
		if got := Valid(tt.id); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
