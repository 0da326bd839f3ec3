package game

import (
	"context"
	"testing"

	"github.com/lps-games/lastplayer/go/internal/gameerrors"
)

func TestGenerateCodeRetriesOnCollision(t *testing.T) {
	calls := 0
	code, err := generateCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		calls++
		return calls <= 3, nil
	})
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	if !ValidCode(code) {
		t.Fatalf("generated code %q is not valid", code)
	}
}

func TestGenerateCodeGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := generateCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		calls++
		return true, nil
	})
	if gameerrors.KindOf(err) != gameerrors.KindConflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
	if calls != maxCodeAttempts {
		t.Fatalf("expected %d attempts, got %d", maxCodeAttempts, calls)
	}
}

func TestRandomCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := randomCode()
		if err != nil {
			t.Fatalf("randomCode: %v", err)
		}
		if !ValidCode(code) {
			t.Fatalf("randomCode produced invalid code %q", code)
		}
	}
}

func TestValidCode(t *testing.T) {
	valid := []string{"ABC123", "ZZZZZZ", "000000", "A1B2C3"}
	for _, code := range valid {
		if !ValidCode(code) {
			t.Errorf("expected %q to be valid", code)
		}
	}

	invalid := []string{"", "ABC12", "ABC1234", "abc123", "ABC 12", "ABC12!", "ÀBC123"}
	for _, code := range invalid {
		if ValidCode(code) {
			t.Errorf("expected %q to be invalid", code)
		}
	}
}
