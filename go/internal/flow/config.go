package flow

import "time"

// Config holds the fixed phase durations driving the round flow. The
// question and voting durations bound player actions in both modes;
// the rest only pace auto-flow games.
type Config struct {
	Question    time.Duration `yaml:"question"`
	Reveal      time.Duration `yaml:"reveal"`
	Elimination time.Duration `yaml:"elimination"`
	Survivors   time.Duration `yaml:"survivors"`
	Voting      time.Duration `yaml:"voting"`
}

// DefaultConfig returns the standard game pacing.
func DefaultConfig() Config {
	return Config{
		Question:    30 * time.Second,
		Reveal:      5 * time.Second,
		Elimination: 3 * time.Second,
		Survivors:   2 * time.Second,
		Voting:      20 * time.Second,
	}
}
