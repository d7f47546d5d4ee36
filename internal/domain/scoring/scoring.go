// Package scoring computes round scores from phrase difficulty and typing speed.
package scoring

import "time"

// Default scoring configuration constants.
const (
	defaultBasePerChar     = 100.0
	defaultSpeedBonusMax   = 500.0
	defaultSpeedBonusDecay = 10.0 // points lost per second
)

// Input carries the progress fields needed to compute a score.
type Input struct {
	TargetLength int
	Elapsed      time.Duration
	Progress     float64 // 0..1, used only for partial scores
}

// Scorer turns typing progress into points.
type Scorer interface {
	// Completed returns the final score for a finished phrase.
	Completed(in Input) float64

	// Partial estimates the live score of an unfinished phrase so standings
	// can be shown mid-round.
	Partial(in Input) float64
}

// Option applies a configuration option to the StandardScorer.
type Option func(*StandardScorer)

// WithBasePerChar sets the base value awarded per target character.
func WithBasePerChar(v float64) Option {
	return func(s *StandardScorer) {
		if v > 0 {
			s.basePerChar = v
		}
	}
}

// WithSpeedBonus sets the maximum speed bonus and its linear decay per second.
func WithSpeedBonus(max, decayPerSec float64) Option {
	return func(s *StandardScorer) {
		if max > 0 && decayPerSec > 0 {
			s.bonusMax = max
			s.bonusDecay = decayPerSec
		}
	}
}

// StandardScorer implements Scorer with a length-based value plus a bounded
// speed bonus that decays linearly with elapsed time, floored at zero.
type StandardScorer struct {
	basePerChar float64
	bonusMax    float64
	bonusDecay  float64
}

// NewStandardScorer creates a scorer with configuration options applied.
func NewStandardScorer(opts ...Option) *StandardScorer {
	s := &StandardScorer{
		basePerChar: defaultBasePerChar,
		bonusMax:    defaultSpeedBonusMax,
		bonusDecay:  defaultSpeedBonusDecay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Completed returns base value for the phrase plus the remaining speed bonus.
func (s *StandardScorer) Completed(in Input) float64 {
	base := s.basePerChar * float64(in.TargetLength)
	bonus := s.bonusMax - s.bonusDecay*in.Elapsed.Seconds()
	if bonus < 0 {
		bonus = 0
	}
	return base + bonus
}

// Partial scales the completed-score estimate by the current progress ratio.
func (s *StandardScorer) Partial(in Input) float64 {
	if in.Progress <= 0 {
		return 0
	}
	if in.Progress > 1 {
		in.Progress = 1
	}
	return s.Completed(in) * in.Progress
}
