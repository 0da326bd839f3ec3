package gameerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{NotFound("game %s not found", "ABC123"), KindNotFound},
		{Forbidden("nope"), KindForbidden},
		{InvalidState("bad phase"), KindInvalidState},
		{Conflict("taken"), KindConflict},
		{Validation("bad input"), KindValidation},
		{errors.New("plain"), ""},
		{nil, ""},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("game not found"))
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected NotFound through wrapping, got %q", KindOf(err))
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := Conflict("username taken")
	if !errors.Is(err, Conflict("")) {
		t.Fatal("expected errors.Is to match on kind")
	}
	if errors.Is(err, NotFound("")) {
		t.Fatal("expected kinds not to cross-match")
	}
}

func TestWrapKeepsMessageCleanButUnwraps(t *testing.T) {
	cause := errors.New("pq: deadlock detected")
	err := Wrap(Conflict("could not join game"), cause)

	if MessageOf(err) != "could not join game" {
		t.Fatalf("client message must not include the cause, got %q", MessageOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause to stay reachable via Unwrap")
	}
	if err.Error() != "could not join game: pq: deadlock detected" {
		t.Fatalf("unexpected full error string: %q", err.Error())
	}
}

func TestMessageOfUnknownError(t *testing.T) {
	if MessageOf(errors.New("sql: rows closed")) != "internal error" {
		t.Fatal("unexpected internals must be hidden behind a generic message")
	}
}
