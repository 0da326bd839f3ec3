package models

import "testing"

func TestGameStatusDerivation(t *testing.T) {
	cases := []struct {
		phase GamePhase
		want  GameStatus
	}{
		{PhaseLobby, GameStatusLobby},
		{PhaseQuestion, GameStatusActive},
		{PhaseReveal, GameStatusActive},
		{PhaseElimination, GameStatusActive},
		{PhaseSurvivors, GameStatusActive},
		{PhaseRedemption, GameStatusActive},
		{PhaseFinished, GameStatusFinished},
	}
	for _, c := range cases {
		g := &Game{Phase: c.phase}
		if got := g.Status(); got != c.want {
			t.Errorf("phase %s: status %s, want %s", c.phase, got, c.want)
		}
		if g.IsActive() != (c.want == GameStatusActive) {
			t.Errorf("phase %s: IsActive mismatch", c.phase)
		}
	}
}

func TestValidPhase(t *testing.T) {
	for _, p := range []GamePhase{PhaseLobby, PhaseQuestion, PhaseReveal, PhaseElimination, PhaseSurvivors, PhaseRedemption, PhaseFinished} {
		if !ValidPhase(p) {
			t.Errorf("expected %s to be valid", p)
		}
	}
	for _, p := range []GamePhase{"", "lobby", "PAUSED"} {
		if ValidPhase(p) {
			t.Errorf("expected %q to be invalid", p)
		}
	}
}

func TestPlayerInPlay(t *testing.T) {
	cases := []struct {
		status PlayerStatus
		want   bool
	}{
		{PlayerStatusActive, true},
		{PlayerStatusRedeemed, true},
		{PlayerStatusEliminated, false},
	}
	for _, c := range cases {
		p := &Player{Status: c.status}
		if p.InPlay() != c.want {
			t.Errorf("status %s: InPlay() = %v, want %v", c.status, p.InPlay(), c.want)
		}
	}
}

func TestValidAnswerOption(t *testing.T) {
	for _, a := range []AnswerOption{AnswerA, AnswerB, AnswerC, AnswerD} {
		if !ValidAnswerOption(a) {
			t.Errorf("expected %s to be valid", a)
		}
	}
	for _, a := range []AnswerOption{"", "a", "E", "AB"} {
		if ValidAnswerOption(a) {
			t.Errorf("expected %q to be invalid", a)
		}
	}
}

func TestQuestionRedacted(t *testing.T) {
	q := &Question{Text: "?", CorrectAnswer: AnswerC}
	r := q.Redacted()
	if r.CorrectAnswer != "" {
		t.Fatalf("expected stripped answer, got %q", r.CorrectAnswer)
	}
	if q.CorrectAnswer != AnswerC {
		t.Fatal("Redacted must not mutate the original")
	}
}
