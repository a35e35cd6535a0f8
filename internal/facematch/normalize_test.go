package facematch

import (
	"errors"
	"testing"
)

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLabelKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := LabelKey(tt.input); result != tt.expected {
				t.Errorf("LabelKey(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "plain", input: "Alice", expected: "Alice"},
		{name: "trimmed", input: "  Bob  ", expected: "Bob"},
		{name: "decomposed to NFC", input: "Jiří", expected: "Jiří"},
		{name: "case kept", input: "alice", expected: "alice"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "reserved", input: "unknown", wantErr: true},
		{name: "reserved uppercase", input: "Unknown", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "backslash", input: `a\b`, wantErr: true},
		{name: "dot prefix", input: ".hidden", wantErr: true},
		{name: "parent dir", input: "..", wantErr: true},
		{name: "control", input: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLabel(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLabel) {
					t.Errorf("NormalizeLabel(%q) error = %v, want ErrInvalidLabel", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeLabel(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
