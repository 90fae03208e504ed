package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// PIILevel defines how much end-user content reaches the logs.
type PIILevel string

const (
	// PIILevelNone redacts all user content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed hashes detected PII and user ids
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

// Sanitizer masks LINE user ids, message text and credentials before logging.
type Sanitizer struct {
	level PIILevel
	salt  string

	emailPattern *regexp.Regexp
	phonePattern *regexp.Regexp
}

// NewSanitizer builds a sanitizer; unknown levels fall back to hashed.
func NewSanitizer(level string, salt string) *Sanitizer {
	l := PIILevel(level)
	switch l {
	case PIILevelNone, PIILevelHashed, PIILevelFull:
	default:
		l = PIILevelHashed
	}
	return &Sanitizer{
		level:        l,
		salt:         salt,
		emailPattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		phonePattern: regexp.MustCompile(`\b0\d{1,4}[-\s]?\d{1,4}[-\s]?\d{3,4}\b`),
	}
}

// Text sanitizes free-form message content.
func (s *Sanitizer) Text(input string) string {
	switch s.level {
	case PIILevelNone:
		if input == "" {
			return ""
		}
		return "[REDACTED]"
	case PIILevelFull:
		return input
	}

	result := s.emailPattern.ReplaceAllStringFunc(input, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})
	result = s.phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
	return result
}

// UserID sanitizes a LINE user id.
func (s *Sanitizer) UserID(userID string) string {
	if userID == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return userID
	default:
		return s.hash(userID)
	}
}

// Preview returns the first n runes of a credential followed by an ellipsis.
// Credentials never reach the log in full regardless of level.
func Preview(secret string, n int) string {
	if secret == "" {
		return ""
	}
	if utf8.RuneCountInString(secret) <= n {
		return "***"
	}
	runes := []rune(secret)
	return string(runes[:n]) + "..."
}

func (s *Sanitizer) hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:8]
}
