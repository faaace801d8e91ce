package contextitem

import (
	"strings"
	"testing"
)

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one byte", "a", 1},
		{"exactly four", "abcd", 1},
		{"five", "abcde", 2},
		{"eight", "abcdefgh", 2},
		{"nine", "abcdefghi", 3},
		{"whitespace counts", "    ", 1},
		{"accented letters count once", "éééé", 1},    // 8 bytes, 4 units
		{"CJK counts once per character", "日本語の", 1}, // 12 bytes, 4 units
		{"CJK five characters", "日本語の本", 2},
		{"astral plane counts twice", "😀😀", 1},   // 4 units
		{"astral plane boundary", "😀😀a", 2},     // 5 units
		{"invalid UTF-8 counts per byte", "\xff\xfe\xfd\xfc\xfb", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateSize(tt.text); got != tt.want {
				t.Errorf("EstimateSize(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestUTF16Len_NeverExceedsBytes(t *testing.T) {
	for _, s := range []string{"", "abc", "héllo", "日本語", "😀x", "\xffab\xc3"} {
		if got := UTF16Len(s); got > len(s) {
			t.Errorf("UTF16Len(%q) = %d, more than %d bytes", s, got, len(s))
		}
	}
}

func TestEstimateSize_Stable(t *testing.T) {
	text := strings.Repeat("x", 40001)
	first := EstimateSize(text)
	for range 5 {
		if got := EstimateSize(text); got != first {
			t.Fatalf("EstimateSize not stable: %d then %d", first, got)
		}
	}
	if first != 10001 {
		t.Errorf("EstimateSize = %d, want 10001", first)
	}
}

func TestNormalizeWorkspace(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "default"},
		{"   ", "default"},
		{"MyProject", "myproject"},
		{"  My   Project  ", "my project"},
		{"tab\tseparated", "tab separated"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeWorkspace(tt.input); got != tt.want {
				t.Errorf("NormalizeWorkspace(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCountChars(t *testing.T) {
	if got := CountChars("héllo"); got != 5 {
		t.Errorf("CountChars = %d, want 5", got)
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if Kind("folder").Valid() {
		t.Error("folder should not be a valid kind")
	}
}

func TestDefaultDisplayName(t *testing.T) {
	tests := []struct {
		name, path, want string
	}{
		{"explicit", "/a/b.go", "explicit"},
		{"", "/a/b.go", "b.go"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := DefaultDisplayName(tt.name, tt.path); got != tt.want {
			t.Errorf("DefaultDisplayName(%q, %q) = %q, want %q", tt.name, tt.path, got, tt.want)
		}
	}
}
