package utils

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("hi", 5); got != "hi" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello", 0); got != "hello" {
		t.Errorf("Truncate zero = %q", got)
	}
	// Rune-safe: must not split multi-byte characters.
	if got := Truncate("日本語テキスト", 3); got != "日本語..." {
		t.Errorf("Truncate runes = %q", got)
	}
}
