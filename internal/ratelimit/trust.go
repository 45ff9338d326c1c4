package ratelimit

import (
	"sync"
)

// Trust score constants. Scores live in [0,1]; new subjects start neutral.
const (
	trustDefault     = 0.5
	trustDecayOld    = 0.7
	trustDecayNew    = 0.3
	trustMinMultiple = 0.5
	trustMaxMultiple = 2.0
)

// BehaviorScorer turns request metadata into a behavior score in [0,1].
// Scoring heuristics are a pluggable extension point; the engine only
// guarantees the update formula and multiplier mapping.
type BehaviorScorer interface {
	Score(meta map[string]float64) float64
}

// NeutralScorer always returns the neutral score. It is the default stub.
type NeutralScorer struct{}

// Score returns 0.5 regardless of metadata.
func (NeutralScorer) Score(map[string]float64) float64 { return trustDefault }

type trustUpdate struct {
	subject string
	score   float64
}

// TrustEngine maintains per-subject trust scores and maps them onto limit
// multipliers. Updates arrive through a buffered channel drained by a
// background goroutine, so feeding behavior data never blocks a rate-limit
// decision and never affects the current one.
type TrustEngine struct {
	mu     sync.RWMutex
	scores map[string]float64

	updates chan trustUpdate

	closeOnce sync.Once
	done      chan struct{}
	drained   chan struct{}
}

// NewTrustEngine constructs a running engine.
func NewTrustEngine() *TrustEngine {
	e := &TrustEngine{
		scores:  make(map[string]float64),
		updates: make(chan trustUpdate, 256),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *TrustEngine) loop() {
	defer close(e.drained)
	for {
		select {
		case <-e.done:
			return
		case u := <-e.updates:
			e.UpdateTrust(u.subject, u.score)
		}
	}
}

// Close stops the background updater.
func (e *TrustEngine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
	<-e.drained
}

// GetTrust returns the subject's trust score, defaulting to neutral.
// It is idempotent absent an intervening update.
func (e *TrustEngine) GetTrust(subject string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if s, ok := e.scores[subject]; ok {
		return s
	}
	return trustDefault
}

// UpdateTrust applies an exponential moving average of the behavior score
// onto the stored trust, clamped to [0,1].
func (e *TrustEngine) UpdateTrust(subject string, behaviorScore float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, ok := e.scores[subject]
	if !ok {
		old = trustDefault
	}

	next := trustDecayOld*old + trustDecayNew*behaviorScore
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}
	e.scores[subject] = next
}

// Multiplier maps trust linearly onto [0.5x, 2.0x]. Subjects with no
// recorded score get a neutral 1.0x so configured limits apply exactly
// until behavior data says otherwise.
func (e *TrustEngine) Multiplier(subject string) float64 {
	e.mu.RLock()
	t, ok := e.scores[subject]
	e.mu.RUnlock()

	if !ok {
		return 1.0
	}
	return trustMinMultiple + t*(trustMaxMultiple-trustMinMultiple)
}

// Feed enqueues an asynchronous trust update. If the queue is full the
// update is dropped; trust is advisory and must never apply backpressure.
func (e *TrustEngine) Feed(subject string, behaviorScore float64) {
	select {
	case <-e.done:
	case e.updates <- trustUpdate{subject: subject, score: behaviorScore}:
	default:
	}
}

// Reset drops all scores. Intended for tests.
func (e *TrustEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scores = make(map[string]float64)
}
