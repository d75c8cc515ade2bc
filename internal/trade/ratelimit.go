package trade

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// maxTiers caps how many unknown tiers header reconciliation may append, so a
// misbehaving upstream cannot grow the tier list unbounded.
const maxTiers = 8

// Tier is one sliding-window rate-limit rule. A tier can also carry an
// explicit server-issued restriction that outlives normal window exhaustion.
type Tier struct {
	Hits            int
	Max             int
	Window          time.Duration
	WindowStartedAt time.Time
	RestrictedUntil time.Time
}

// TierState is the externally visible view of one tier.
type TierState struct {
	Hits              int     `json:"hits"`
	Max               int     `json:"max"`
	WindowSeconds     int     `json:"window_seconds"`
	RestrictedSeconds float64 `json:"restricted_seconds,omitempty"`
}

// Decision is the outcome of a reservation attempt. Denial is an expected
// value, not an error: callers surface the wait instead of failing.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter tracks the client-side view of the upstream's tiered limits and
// reconciles it against the authoritative response headers after each call.
type Limiter struct {
	mu    sync.Mutex
	tiers []Tier
	now   func() time.Time
}

// DefaultTiers mirror the upstream search endpoint's published policy and
// serve until the first response headers overwrite them.
func DefaultTiers() []Tier {
	return []Tier{
		{Max: 5, Window: 10 * time.Second},
		{Max: 15, Window: 60 * time.Second},
		{Max: 30, Window: 300 * time.Second},
	}
}

// NewLimiter constructs a limiter over the supplied tiers, or the defaults.
func NewLimiter(tiers []Tier) *Limiter {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	return &Limiter{tiers: tiers, now: time.Now}
}

// CheckAndReserve either reserves one hit on every tier or reports the
// minimum wait after which a retry can succeed. Check and increment form one
// critical section so concurrent callers cannot double-spend a slot.
func (l *Limiter) CheckAndReserve() Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tick(now)

	var wait time.Duration
	blocked := false
	for i := range l.tiers {
		tier := &l.tiers[i]
		var tierWait time.Duration
		if !tier.RestrictedUntil.IsZero() {
			tierWait = tier.RestrictedUntil.Sub(now)
		} else if tier.Max > 0 && tier.Hits >= tier.Max {
			tierWait = tier.WindowStartedAt.Add(tier.Window).Sub(now)
		} else {
			continue
		}
		if tierWait < time.Second {
			tierWait = time.Second
		}
		// The least restrictive blocker decides the retry hint: a tight tier
		// may free up while a longer one is still closed, and re-checking is
		// cheap.
		if !blocked || tierWait < wait {
			wait = tierWait
		}
		blocked = true
	}
	if blocked {
		return Decision{Allowed: false, RetryAfter: wait}
	}

	for i := range l.tiers {
		if l.tiers[i].WindowStartedAt.IsZero() {
			l.tiers[i].WindowStartedAt = now
		}
		l.tiers[i].Hits++
	}
	return Decision{Allowed: true}
}

// tick lazily resets elapsed windows and expired restrictions.
func (l *Limiter) tick(now time.Time) {
	for i := range l.tiers {
		tier := &l.tiers[i]
		if !tier.RestrictedUntil.IsZero() && !now.Before(tier.RestrictedUntil) {
			tier.RestrictedUntil = time.Time{}
		}
		if tier.Window > 0 && !tier.WindowStartedAt.IsZero() && now.Sub(tier.WindowStartedAt) >= tier.Window {
			tier.Hits = 0
			tier.WindowStartedAt = now
		}
	}
}

// ReconcileFromHeaders overwrites local tier bookkeeping with the upstream's
// own state. The upstream may be shared with other consumers, so local-only
// tracking would drift from ground truth indefinitely. Malformed tuples are
// skipped; one bad tier must not abort reconciliation of the rest.
func (l *Limiter) ReconcileFromHeaders(headers http.Header) {
	rules := splitList(headers.Get("X-Rate-Limit-Rules"))
	if len(rules) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	position := 0
	for _, rule := range rules {
		limits := splitList(headers.Get("X-Rate-Limit-" + rule))
		states := splitList(headers.Get("X-Rate-Limit-" + rule + "-State"))
		if len(limits) != len(states) {
			logrus.WithFields(logrus.Fields{
				"rule":   rule,
				"limits": len(limits),
				"states": len(states),
			}).Warn("rate limit header count mismatch, skipping rule")
			continue
		}
		for i := range limits {
			max, window, ok := parseRuleTuple(limits[i])
			if !ok {
				position++
				continue
			}
			hits, restricted, ok := parseStateTuple(states[i])
			if !ok {
				position++
				continue
			}
			l.applyServerTier(position, now, hits, max, window, restricted)
			position++
		}
	}
}

func (l *Limiter) applyServerTier(position int, now time.Time, hits, max int, window time.Duration, restricted time.Duration) {
	if position >= len(l.tiers) {
		if len(l.tiers) >= maxTiers {
			return
		}
		l.tiers = append(l.tiers, Tier{WindowStartedAt: now})
	}
	tier := &l.tiers[position]
	if hits > tier.Hits || tier.WindowStartedAt.IsZero() {
		// Unseen external usage: restart the window conservatively from now.
		tier.WindowStartedAt = now
	}
	tier.Hits = hits
	tier.Max = max
	tier.Window = window
	if restricted > 0 {
		tier.RestrictedUntil = now.Add(restricted)
	}
}

// ApplyRestriction forcibly restricts every tier for at least the supplied
// number of seconds. Conservative fallback for a 429 whose headers could not
// be parsed.
func (l *Limiter) ApplyRestriction(seconds int) {
	if seconds <= 0 {
		seconds = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(time.Duration(seconds) * time.Second)
	for i := range l.tiers {
		if l.tiers[i].RestrictedUntil.Before(until) {
			l.tiers[i].RestrictedUntil = until
		}
	}
}

// State returns a copy of the current tier states for status reporting.
func (l *Limiter) State() []TierState {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tick(now)

	states := make([]TierState, 0, len(l.tiers))
	for _, tier := range l.tiers {
		state := TierState{
			Hits:          tier.Hits,
			Max:           tier.Max,
			WindowSeconds: int(tier.Window / time.Second),
		}
		if !tier.RestrictedUntil.IsZero() {
			state.RestrictedSeconds = tier.RestrictedUntil.Sub(now).Seconds()
		}
		states = append(states, state)
	}
	return states
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseRuleTuple reads "max:periodSeconds:restrictedPenaltySeconds".
func parseRuleTuple(tuple string) (int, time.Duration, bool) {
	fields := strings.Split(tuple, ":")
	if len(fields) != 3 {
		return 0, 0, false
	}
	max, err := strconv.Atoi(fields[0])
	if err != nil || max <= 0 {
		return 0, 0, false
	}
	period, err := strconv.Atoi(fields[1])
	if err != nil || period <= 0 {
		return 0, 0, false
	}
	return max, time.Duration(period) * time.Second, true
}

// parseStateTuple reads "hits:periodSeconds:restrictedSeconds".
func parseStateTuple(tuple string) (int, time.Duration, bool) {
	fields := strings.Split(tuple, ":")
	if len(fields) != 3 {
		return 0, 0, false
	}
	hits, err := strconv.Atoi(fields[0])
	if err != nil || hits < 0 {
		return 0, 0, false
	}
	restricted, err := strconv.Atoi(fields[2])
	if err != nil || restricted < 0 {
		return 0, 0, false
	}
	return hits, time.Duration(restricted) * time.Second, true
}
