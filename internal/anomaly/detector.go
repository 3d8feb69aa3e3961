// Package anomaly runs session-level statistical checks: message cadence
// and near-duplicate repetition. Findings raise aggregate risk but are
// never strong enough on their own to force a block.
package anomaly

import (
	"strings"
	"sync"
	"time"

	"github.com/Damatnic/astral-safety/internal/pipeline"
	"github.com/Damatnic/astral-safety/internal/pipeline/classifiers"
	"go.uber.org/zap"
)

// Anomaly tags emitted in AnomalyFinding.Anomalies.
const (
	TagRapidMessaging = "RAPID_MESSAGING"
	TagPotentialBot   = "POTENTIAL_BOT"
)

// maxAnomalyRisk caps the detector's contribution below any block
// threshold: cadence and repetition are probabilistic signals, not proof.
const maxAnomalyRisk = 0.7

// Config tunes the per-session sliding window.
type Config struct {
	RateWindow  time.Duration // rolling window for cadence (default 10s)
	MaxMessages int           // messages allowed per RateWindow (default 8)
	TTL         time.Duration // session eviction after inactivity (default 15m)
}

func (c *Config) applyDefaults() {
	if c.RateWindow <= 0 {
		c.RateWindow = 10 * time.Second
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 8
	}
	if c.TTL <= 0 {
		c.TTL = 15 * time.Minute
	}
}

type message struct {
	at     time.Time
	tokens map[string]struct{}
}

type session struct {
	mu       sync.Mutex
	recent   []message // oldest first, bounded
	lastSeen time.Time
}

// sessionKeep bounds per-session memory regardless of cadence.
const sessionKeep = 20

// Detector owns all per-session windows. Stop the janitor with Close.
type Detector struct {
	sessions sync.Map // map[string]*session
	cfg      Config
	logger   *zap.Logger
	done     chan struct{}
	closeOne sync.Once
	now      func() time.Time // test hook
}

func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	cfg.applyDefaults()
	d := &Detector{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go d.evictLoop()
	return d
}

// Check records one message for sessionID and returns cadence/repetition
// findings for it.
func (d *Detector) Check(sessionID, text string) pipeline.AnomalyFinding {
	if sessionID == "" {
		return pipeline.AnomalyFinding{Severity: pipeline.UrgencyLow}
	}

	now := d.now()
	val, _ := d.sessions.LoadOrStore(sessionID, &session{})
	s := val.(*session)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now

	tokens := tokenize(text)

	// Near-duplicate check against the previous two messages: templated
	// content repeated back-to-back reads like a bot, not a person.
	duplicates := 0
	for i := len(s.recent) - 1; i >= 0 && i >= len(s.recent)-2; i-- {
		if jaccard(tokens, s.recent[i].tokens) >= 0.9 {
			duplicates++
		}
	}

	s.recent = append(s.recent, message{at: now, tokens: tokens})
	if len(s.recent) > sessionKeep {
		s.recent = s.recent[len(s.recent)-sessionKeep:]
	}

	// Cadence check over the rolling window.
	windowStart := now.Add(-d.cfg.RateWindow)
	inWindow := 0
	for _, m := range s.recent {
		if m.at.After(windowStart) {
			inWindow++
		}
	}

	var tags []string
	var risk float32
	if inWindow > d.cfg.MaxMessages {
		tags = append(tags, TagRapidMessaging)
		risk = 0.5
	}
	if duplicates >= 2 && len(tokens) > 0 {
		tags = append(tags, TagPotentialBot)
		if r := float32(0.6); r > risk {
			risk = r
		}
	}
	if len(tags) == 2 {
		risk = maxAnomalyRisk
	}

	severity := pipeline.UrgencyLow
	switch len(tags) {
	case 1:
		severity = pipeline.UrgencyModerate
	case 2:
		severity = pipeline.UrgencyHigh
	}

	return pipeline.AnomalyFinding{
		Anomalies: tags,
		RiskScore: risk,
		Severity:  severity,
	}
}

// Size returns the number of tracked sessions.
func (d *Detector) Size() int {
	n := 0
	d.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops the eviction janitor. Safe to call more than once.
func (d *Detector) Close() {
	d.closeOne.Do(func() { close(d.done) })
}

func (d *Detector) evictLoop() {
	interval := d.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.evictStale()
		case <-d.done:
			return
		}
	}
}

func (d *Detector) evictStale() {
	cutoff := d.now().Add(-d.cfg.TTL)
	evicted := 0
	d.sessions.Range(func(key, val any) bool {
		s := val.(*session)
		s.mu.Lock()
		stale := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if stale {
			d.sessions.Delete(key)
			evicted++
		}
		return true
	})
	if evicted > 0 && d.logger != nil {
		d.logger.Debug("evicted stale anomaly sessions", zap.Int("count", evicted))
	}
}

func tokenize(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(classifiers.Sanitize(text)))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,!?;:'\"")] = struct{}{}
	}
	delete(set, "")
	return set
}

// jaccard computes token-set similarity in [0,1].
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
