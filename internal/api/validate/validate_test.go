package validate

import (
	"strings"
	"testing"
)

func TestUserID(t *testing.T) {
	for _, ok := range []string{"5215512345678", "+5215512345678", "12345"} {
		if err := UserID(ok); err != nil {
			t.Errorf("UserID(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"", "abc", "+", "1234", "+52 155"} {
		if err := UserID(bad); err == nil {
			t.Errorf("UserID(%q) = nil, want error", bad)
		}
	}
}

func TestMessageText(t *testing.T) {
	if err := MessageText("schedule a meeting tomorrow"); err != nil {
		t.Errorf("MessageText = %v, want nil", err)
	}
	if err := MessageText(""); err == nil {
		t.Error("empty text accepted")
	}
	if err := MessageText(strings.Repeat("a", 5000)); err == nil {
		t.Error("oversized text accepted")
	}
}
