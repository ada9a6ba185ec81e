package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const sha256Prefix = "sha256:"

// auditAnswerLimit bounds the copy of a submitted answer kept for audit
const auditAnswerLimit = 200

// NormalizeAnswer trims surrounding whitespace from a submitted answer.
// An empty result is rejected with ErrInvalidInput.
func NormalizeAnswer(answer string) (string, error) {
	normalized := strings.TrimSpace(answer)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty answer", ErrInvalidInput)
	}
	return normalized, nil
}

// AuditCopy returns the trimmed, length-bounded form of an answer stored on
// the submission ledger. The cut lands on a rune boundary and invalid bytes
// are replaced, so the copy is always valid UTF-8.
func AuditCopy(answer string) string {
	trimmed := strings.ToValidUTF8(strings.TrimSpace(answer), string(utf8.RuneError))
	if len(trimmed) <= auditAnswerLimit {
		return trimmed
	}
	n := auditAnswerLimit
	for n > 0 && !utf8.RuneStart(trimmed[n]) {
		n--
	}
	return trimmed[:n]
}

// DigestFlag returns the default sha256 digest of a canonical flag
func DigestFlag(flag string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(flag)))
	return sha256Prefix + hex.EncodeToString(sum[:])
}

// DigestFlagBcrypt returns a bcrypt digest of a canonical flag
func DigestFlagBcrypt(flag string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(flag)), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt flag: %w", err)
	}
	return string(hash), nil
}

// MatchFlag compares a normalized answer against a stored digest. The sha256
// form is compared in constant time; bcrypt digests use bcrypt's comparison.
func MatchFlag(digest, answer string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, sha256Prefix):
		want, err := hex.DecodeString(strings.TrimPrefix(digest, sha256Prefix))
		if err != nil || len(want) != sha256.Size {
			return false, fmt.Errorf("%w: malformed sha256 flag digest", ErrInvalidInput)
		}
		got := sha256.Sum256([]byte(answer))
		return subtle.ConstantTimeCompare(got[:], want) == 1, nil

	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(answer))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("compare bcrypt flag: %w", err)

	default:
		return false, fmt.Errorf("%w: unsupported flag digest format", ErrInvalidInput)
	}
}
