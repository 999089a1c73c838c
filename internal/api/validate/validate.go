package validate

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// UserID must look like a phone-style chat identifier: optional leading +,
// then 5 to 20 digits.
var userIDRx = regexp.MustCompile(`^\+?[0-9]{5,20}$`)

func UserID(v string) error {
	if v == "" {
		return fmt.Errorf("userId is required")
	}
	if !userIDRx.MatchString(v) {
		return fmt.Errorf("userId must be a phone identifier (optional +, 5-20 digits)")
	}
	return nil
}

// MessageText bounds inbound chat messages to a single reasonable message.
func MessageText(v string) error {
	if v == "" {
		return fmt.Errorf("text is required")
	}
	if utf8.RuneCountInString(v) > 4096 {
		return fmt.Errorf("text exceeds 4096 characters")
	}
	return nil
}
