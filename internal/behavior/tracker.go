// Package behavior maintains per-user rolling message history and derives
// escalation signals from it. This is the pipeline's only long-lived
// mutable state; access is serialized per user so concurrent messages from
// one session cannot lose updates while different users proceed in parallel.
package behavior

import (
	"math"
	"sync"
	"time"

	"github.com/Damatnic/astral-safety/internal/pipeline"
	"go.uber.org/zap"
)

// Pattern tags emitted in BehaviorFinding.Patterns.
const (
	PatternEscalatingSeverity = "ESCALATING_SEVERITY"
	PatternPersistentRisk     = "PERSISTENT_RISK"
)

// escalationRun is how many consecutive rising severities trigger
// ESCALATING_SEVERITY. Four messages of monotonically rising despair is
// the point where the trend is signal, not noise.
const escalationRun = 4

// Config tunes the tracker's window, eviction, and decay.
type Config struct {
	WindowSize int           // messages kept per user (default 10)
	TTL        time.Duration // profile eviction after inactivity (default 30m)
	HalfLife   time.Duration // risk decay half-life (default 10m)
}

func (c *Config) applyDefaults() {
	if c.WindowSize <= 0 {
		c.WindowSize = 10
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.HalfLife <= 0 {
		c.HalfLife = 10 * time.Minute
	}
}

type observation struct {
	at       time.Time
	severity int
	risk     float32
}

// profile is one user's bounded history. Guarded by its own mutex; the
// outer sync.Map only ever stores and loads pointers.
type profile struct {
	mu       sync.Mutex
	window   []observation // oldest first, bounded by cfg.WindowSize
	risk     float32       // decaying accumulated risk
	lastSeen time.Time
}

// Tracker owns all per-user profiles. Create with NewTracker and stop the
// eviction janitor with Close.
type Tracker struct {
	profiles sync.Map // map[string]*profile
	cfg      Config
	logger   *zap.Logger
	done     chan struct{}
	closeOne sync.Once
	now      func() time.Time // test hook
}

func NewTracker(cfg Config, logger *zap.Logger) *Tracker {
	cfg.applyDefaults()
	t := &Tracker{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go t.evictLoop()
	return t
}

// Observe records one message for userID and returns the trend finding.
// severity and risk are the crisis classifier's scores for the same
// message. Anonymous senders (empty userID) are not tracked.
func (t *Tracker) Observe(userID, text string, severity int, risk float32) pipeline.BehaviorFinding {
	if userID == "" {
		return pipeline.BehaviorFinding{}
	}

	now := t.now()
	val, _ := t.profiles.LoadOrStore(userID, &profile{})
	p := val.(*profile)

	p.mu.Lock()
	defer p.mu.Unlock()

	// Decay the accumulated risk for the time since the last message.
	if !p.lastSeen.IsZero() {
		elapsed := now.Sub(p.lastSeen)
		p.risk *= float32(math.Pow(0.5, elapsed.Seconds()/t.cfg.HalfLife.Seconds()))
	}
	p.lastSeen = now

	p.window = append(p.window, observation{at: now, severity: severity, risk: risk})
	if len(p.window) > t.cfg.WindowSize {
		p.window = p.window[len(p.window)-t.cfg.WindowSize:]
	}

	var patterns []string
	if t.escalating(p.window) {
		patterns = append(patterns, PatternEscalatingSeverity)
	}
	if p.risk >= 0.5 {
		patterns = append(patterns, PatternPersistentRisk)
	}

	// The finding's risk is the larger of the fresh signal and the decayed
	// history, bumped when the trend itself is alarming.
	current := risk
	if p.risk > current {
		current = p.risk
	}
	for range patterns {
		current += 0.1
	}
	current = clamp(current)

	// Persist: history absorbs the stronger of accumulated and fresh risk.
	if risk > p.risk {
		p.risk = risk
	}

	return pipeline.BehaviorFinding{
		Patterns:     patterns,
		RiskScore:    current,
		MessageCount: len(p.window),
	}
}

// escalating reports whether the last escalationRun observations show
// strictly rising severity.
func (t *Tracker) escalating(window []observation) bool {
	if len(window) < escalationRun {
		return false
	}
	tail := window[len(window)-escalationRun:]
	for i := 1; i < len(tail); i++ {
		if tail[i].severity <= tail[i-1].severity {
			return false
		}
	}
	return true
}

// Size returns the number of tracked profiles.
func (t *Tracker) Size() int {
	n := 0
	t.profiles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops the eviction janitor. Safe to call more than once.
func (t *Tracker) Close() {
	t.closeOne.Do(func() { close(t.done) })
}

func (t *Tracker) evictLoop() {
	interval := t.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.evictStale()
		case <-t.done:
			return
		}
	}
}

func (t *Tracker) evictStale() {
	cutoff := t.now().Add(-t.cfg.TTL)
	evicted := 0
	t.profiles.Range(func(key, val any) bool {
		p := val.(*profile)
		p.mu.Lock()
		stale := p.lastSeen.Before(cutoff)
		p.mu.Unlock()
		if stale {
			t.profiles.Delete(key)
			evicted++
		}
		return true
	})
	if evicted > 0 && t.logger != nil {
		t.logger.Debug("evicted stale behavior profiles", zap.Int("count", evicted))
	}
}

func clamp(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
