package game

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/lps-games/lastplayer/go/internal/gameerrors"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// CodeLength is the length of every game code.
	CodeLength = 6

	maxCodeAttempts = 10
)

// generateCode produces a unique 6-character game code, retrying on
// collision. After maxCodeAttempts collisions it gives up with Conflict
// so a pathologically full code space fails deterministically.
func generateCode(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate game code: %w", err)
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", gameerrors.Conflict("could not generate a unique game code after %d attempts", maxCodeAttempts)
}

func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// ValidCode reports whether code has the right length and charset.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
