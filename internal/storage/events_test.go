package storage

import "testing"

func TestTruncatePrompt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		maxLen int
		want   string
	}{
		{"short untouched", "hello", 200, "hello"},
		{"exact length untouched", "abcde", 5, "abcde"},
		{"truncated with marker", "abcdef", 5, "abcde..."},
		{"multibyte safe", "あいうえおかき", 5, "あいうえお..."},
		{"empty", "", 200, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncatePrompt(tt.prompt, tt.maxLen); got != tt.want {
				t.Errorf("TruncatePrompt(%q, %d) = %q, want %q", tt.prompt, tt.maxLen, got, tt.want)
			}
		})
	}
}
