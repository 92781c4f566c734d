package util

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// joinCodeAlphabet leaves out characters that are easy to misread aloud.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const JoinCodeLength = 6

// NewJoinCode returns a random session join code.
func NewJoinCode() string {
	buf := make([]byte, JoinCodeLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf)
}

// NormalizeJoinCode canonicalizes a code typed by a user.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
