// Package judge converts routed key events into correctness, progress and
// completion semantics, and exposes live standings.
//
// All mutation is funneled through a single dispatcher goroutine (see
// Dispatcher), so events are judged strictly in arrival order. That serial
// order is what defines the first-to-complete tie-break: the contestant whose
// completing event is judged first wins, even when capture timestamps are
// equal.
package judge

import (
	"context"
	"sync"
	"time"
	"unicode"

	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/internal/domain/scoring"
	"github.com/mkanda/typerace/internal/domain/types"
	"github.com/mkanda/typerace/pkg/logger"
	"github.com/mkanda/typerace/pkg/metrics"
)

// Outcome classifies what a single key event did to a contestant's state.
type Outcome int

const (
	OutcomeIgnored   Outcome = iota // unbound device, or contestant already completed
	OutcomeCorrect                  // expected character appended
	OutcomeIncorrect                // printable character that did not match
	OutcomeBackspace                // buffer popped (no-op on empty buffer)
	OutcomeInvalid                  // non-printable or unmapped input, reported back only
)

// Result is returned to the caller per keystroke so presentation can react
// without treating invalid input as an error.
type Result struct {
	ContestantID string
	Phrase       string
	Outcome      Outcome
	Progress     float64
	Completed    bool
	Winner       bool
}

// ProgressFunc observes per-keystroke progress updates.
type ProgressFunc func(types.PlayerStats)

// CompletionFunc observes phrase completions.
type CompletionFunc func(types.PlayerStats)

// progress is the per-(contestant, phrase) state machine. Once completed it is
// immutable except for read access.
type progress struct {
	contestant  string
	device      model.DeviceID
	target      []rune
	buffer      []rune
	errors      int
	invalid     int
	keystrokes  int
	startedAt   time.Time
	completedAt time.Time
	completed   bool
	winner      bool
	order       int
}

func (p *progress) ratio() float64 {
	if len(p.target) == 0 {
		return 0
	}
	return float64(len(p.buffer)) / float64(len(p.target))
}

// round groups the contestants racing on one phrase.
type round struct {
	phrase       string
	byContestant map[string]*progress
	order        []*progress
}

// Engine owns the per-phrase progress maps. External readers only ever get
// copies; mutation happens exclusively through Judge.
type Engine struct {
	mu sync.RWMutex

	rounds     map[string]*round
	bindings   map[model.DeviceID]string // device -> contestant
	assignment map[string]string         // contestant -> active phrase
	teams      map[string][]string       // team -> member contestants

	scorer scoring.Scorer
	clock  func() time.Time
	log    logger.Logger

	progressSubs   []ProgressFunc
	completionSubs []CompletionFunc
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithScorer sets the scorer used for standings.
func WithScorer(s scoring.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithClock overrides the time source used for live elapsed calculations.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Engine with configuration options applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		rounds:     make(map[string]*round),
		bindings:   make(map[model.DeviceID]string),
		assignment: make(map[string]string),
		teams:      make(map[string][]string),
		scorer:     scoring.NewStandardScorer(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("judge")
	}
	return e
}

// SubscribeProgress registers a progress observer. Observers fire in
// registration order, synchronously on the judging goroutine.
func (e *Engine) SubscribeProgress(fn ProgressFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progressSubs = append(e.progressSubs, fn)
}

// SubscribeCompletion registers a completion observer.
func (e *Engine) SubscribeCompletion(fn CompletionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completionSubs = append(e.completionSubs, fn)
}

// AssignRound replaces the active assignment: each contestant's target phrase,
// the device each contestant types on, and team membership. Progress for the
// named phrases starts fresh; earlier rounds stay readable for reporting.
func (e *Engine) AssignRound(phrases map[string]string, bindings map[model.DeviceID]string, teams map[string][]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.assignment = make(map[string]string, len(phrases))
	for contestant, phrase := range phrases {
		e.assignment[contestant] = phrase
		e.rounds[phrase] = &round{
			phrase:       phrase,
			byContestant: make(map[string]*progress),
		}
	}

	e.bindings = make(map[model.DeviceID]string, len(bindings))
	for dev, contestant := range bindings {
		e.bindings[dev] = contestant
	}

	e.teams = make(map[string][]string, len(teams))
	for team, members := range teams {
		e.teams[team] = append([]string(nil), members...)
	}
}

// Judge applies one key event to the bound contestant's state machine and
// returns the per-keystroke result. Events from unbound devices are dropped
// (ok=false). Must only be called from the single dispatcher goroutine.
func (e *Engine) Judge(ev model.KeyEvent) (Result, bool) {
	start := time.Now()
	defer func() {
		metrics.RecordJudgeLatency(time.Since(start).Seconds())
	}()

	e.mu.Lock()

	contestant, bound := e.bindings[ev.Device]
	if !bound {
		e.mu.Unlock()
		e.log.Debug(context.Background(), "event from unbound device dropped",
			logger.String("device", string(ev.Device)),
		)
		return Result{}, false
	}
	phrase, assigned := e.assignment[contestant]
	if !assigned {
		e.mu.Unlock()
		return Result{}, false
	}

	rd := e.rounds[phrase]
	if rd == nil {
		rd = &round{phrase: phrase, byContestant: make(map[string]*progress)}
		e.rounds[phrase] = rd
	}

	// Unknown (contestant, phrase) pairs auto-create fresh state instead of
	// failing; the engine tolerates out-of-order first events.
	p := rd.byContestant[contestant]
	if p == nil {
		p = &progress{
			contestant: contestant,
			device:     ev.Device,
			target:     []rune(phrase),
			startedAt:  ev.At,
			order:      len(rd.order),
		}
		rd.byContestant[contestant] = p
		rd.order = append(rd.order, p)
	}

	res := Result{ContestantID: contestant, Phrase: phrase}

	if p.completed {
		// Terminal state: reads only.
		res.Outcome = OutcomeIgnored
		res.Progress = p.ratio()
		res.Completed = true
		res.Winner = p.winner
		e.mu.Unlock()
		metrics.RecordKeystroke(metrics.OutcomeIgnored)
		return res, true
	}

	p.keystrokes++
	res.Outcome = e.apply(rd, p, ev)
	res.Progress = p.ratio()
	res.Completed = p.completed
	res.Winner = p.winner

	stats := e.statsLocked(p)
	completed := p.completed && res.Outcome == OutcomeCorrect
	progressSubs := e.progressSubs
	completionSubs := e.completionSubs
	e.mu.Unlock()

	switch res.Outcome {
	case OutcomeCorrect:
		metrics.RecordKeystroke(metrics.OutcomeCorrect)
	case OutcomeIncorrect:
		metrics.RecordKeystroke(metrics.OutcomeIncorrect)
	case OutcomeBackspace:
		metrics.RecordKeystroke(metrics.OutcomeBackspace)
	case OutcomeInvalid:
		metrics.RecordKeystroke(metrics.OutcomeInvalid)
	}

	// Fan-out happens outside the lock, in registration order, still on the
	// judging goroutine so observers see updates serially.
	for _, fn := range progressSubs {
		fn(stats)
	}
	if completed {
		metrics.RecordCompletion()
		for _, fn := range completionSubs {
			fn(stats)
		}
	}
	return res, true
}

// apply runs one state machine transition. Caller holds the write lock.
func (e *Engine) apply(rd *round, p *progress, ev model.KeyEvent) Outcome {
	switch ev.Kind {
	case model.KindBackspace:
		// Idempotent on an empty buffer.
		if len(p.buffer) > 0 {
			p.buffer = p.buffer[:len(p.buffer)-1]
		}
		return OutcomeBackspace

	case model.KindRune:
		if ev.Rune == 0 || !unicode.IsPrint(ev.Rune) || len(p.target) == 0 {
			p.invalid++
			return OutcomeInvalid
		}
		if ev.Rune == p.target[len(p.buffer)] {
			p.buffer = append(p.buffer, ev.Rune)
			if len(p.buffer) == len(p.target) {
				e.complete(rd, p, ev.At)
			}
			return OutcomeCorrect
		}
		// A mismatch never corrupts the buffer; only confirmed-correct
		// characters are appended.
		p.errors++
		return OutcomeIncorrect

	default:
		p.invalid++
		return OutcomeInvalid
	}
}

// complete finalizes a contestant and resolves first-to-complete. Because
// judging is serialized, scanning peers here is race-free and the first
// processed completion wins regardless of timestamp ties.
func (e *Engine) complete(rd *round, p *progress, at time.Time) {
	p.completed = true
	p.completedAt = at

	for _, other := range rd.order {
		if other != p && other.completed {
			return
		}
	}
	p.winner = true
}

// statsLocked builds a PlayerStats snapshot. Caller holds at least the read
// lock.
func (e *Engine) statsLocked(p *progress) types.PlayerStats {
	elapsed := time.Duration(0)
	if !p.startedAt.IsZero() {
		if p.completed {
			elapsed = p.completedAt.Sub(p.startedAt)
		} else {
			elapsed = e.clock().Sub(p.startedAt)
		}
	}

	in := scoring.Input{
		TargetLength: len(p.target),
		Elapsed:      elapsed,
		Progress:     p.ratio(),
	}
	var score float64
	if p.completed {
		score = e.scorer.Completed(in)
	} else {
		score = e.scorer.Partial(in)
	}

	return types.PlayerStats{
		ContestantID:  p.contestant,
		Phrase:        string(p.target),
		Buffer:        string(p.buffer),
		Progress:      p.ratio(),
		Errors:        p.errors,
		Keystrokes:    p.keystrokes,
		InvalidInputs: p.invalid,
		Completed:     p.completed,
		Winner:        p.winner,
		Elapsed:       elapsed,
		Score:         score,
	}
}

// PlayerStats returns a snapshot of one contestant's state for a phrase.
func (e *Engine) PlayerStats(phrase, contestant string) (types.PlayerStats, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rd := e.rounds[phrase]
	if rd == nil {
		return types.PlayerStats{}, false
	}
	p := rd.byContestant[contestant]
	if p == nil {
		return types.PlayerStats{}, false
	}
	return e.statsLocked(p), true
}

// Winner returns the first contestant to complete the phrase, if any.
func (e *Engine) Winner(phrase string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rd := e.rounds[phrase]
	if rd == nil {
		return "", false
	}
	for _, p := range rd.order {
		if p.winner {
			return p.contestant, true
		}
	}
	return "", false
}
