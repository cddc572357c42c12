package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("caf\xc3\xa9 au lait", 4); got != "caf\xc3\xa9..." {
		t.Errorf("multi-byte runes must not be split: got %q", got)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"joins lines", "Groceries\n- milk\n- eggs", 0, "Groceries - milk - eggs"},
		{"collapses tabs", "a\t\tb", 0, "a b"},
		{"truncates", "one two three", 7, "one two..."},
		{"empty", "  \n ", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.in, tt.max); got != tt.want {
				t.Errorf("Preview(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}
