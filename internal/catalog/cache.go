package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trade-companion/backend/internal/match"
)

// ImplicitCategory is the group label whose entries form the implicit-only
// candidate pool.
const ImplicitCategory = "Implicit"

// DefaultRetryInterval is the minimum spacing between remote fetch attempts
// after a failure.
const DefaultRetryInterval = 60 * time.Second

// ErrCacheUnavailable reports that the catalog is not loaded and the failure
// throttle has not elapsed yet. It is a local condition, not an upstream
// fault.
var ErrCacheUnavailable = errors.New("stat catalog unavailable, retry later")

// StatOption is one searchable stat from the reference dataset.
type StatOption struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Category string          `json:"category"`
	Option   json.RawMessage `json:"option,omitempty"`
}

// Snapshot is one immutable fetch cycle of the catalog: the flattened option
// lists and the fuzzy indexes built over them are always produced together.
type Snapshot struct {
	All           []StatOption
	Implicit      []StatOption
	AllIndex      *match.Index
	ImplicitIndex *match.Index
	Raw           json.RawMessage
	FetchedAt     time.Time
	Stale         bool
}

// Cache lazily fetches and holds the current catalog snapshot. Concurrent
// callers during an in-flight fetch share one pending operation instead of
// issuing duplicate network calls.
type Cache struct {
	client        *Client
	fileCache     *FileCache
	retryInterval time.Duration

	mu          sync.Mutex
	snapshot    *Snapshot
	lastAttempt time.Time
	inflight    *pendingFetch
}

type pendingFetch struct {
	done     chan struct{}
	snapshot *Snapshot
	err      error
}

// NewCache wires the cache with its client and optional disk write-through.
func NewCache(client *Client, fileCache *FileCache, retryInterval time.Duration) *Cache {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Cache{
		client:        client,
		fileCache:     fileCache,
		retryInterval: retryInterval,
	}
}

// Snapshot returns the current snapshot without triggering a fetch. Nil means
// the catalog has not been loaded yet.
func (c *Cache) Snapshot() *Snapshot {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Fetch returns the current snapshot, loading it from the network if needed.
// A fresh in-memory snapshot short-circuits; a stale one (served from disk
// after an upstream failure) is refreshed once the retry interval elapses.
func (c *Cache) Fetch(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()

	if snap := c.snapshot; snap != nil {
		if !snap.Stale || time.Since(c.lastAttempt) < c.retryInterval {
			c.mu.Unlock()
			return snap, nil
		}
	}

	if pending := c.inflight; pending != nil {
		c.mu.Unlock()
		select {
		case <-pending.done:
			return pending.snapshot, pending.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.snapshot == nil && !c.lastAttempt.IsZero() && time.Since(c.lastAttempt) < c.retryInterval {
		c.mu.Unlock()
		return nil, ErrCacheUnavailable
	}

	pending := &pendingFetch{done: make(chan struct{})}
	c.inflight = pending
	c.lastAttempt = time.Now()
	c.mu.Unlock()

	snapshot, err := c.refresh(ctx)

	c.mu.Lock()
	pending.snapshot = snapshot
	pending.err = err
	c.snapshot = snapshot
	c.inflight = nil
	c.mu.Unlock()
	close(pending.done)

	return snapshot, err
}

// refresh performs one remote fetch, falling back to the disk cache when the
// upstream is unavailable. A nil snapshot with an error clears any prior
// state so the next attempt retries instead of serving broken data.
func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	raw, groups, err := c.client.FetchStats(ctx)
	if err == nil {
		snapshot, buildErr := buildSnapshot(raw, groups, time.Now(), false)
		if buildErr != nil {
			return nil, buildErr
		}
		if c.fileCache != nil {
			if writeErr := c.fileCache.Write(raw, snapshot.FetchedAt); writeErr != nil {
				logrus.WithError(writeErr).Warn("write stats disk cache")
			}
		}
		logrus.WithFields(logrus.Fields{
			"stats":    len(snapshot.All),
			"implicit": len(snapshot.Implicit),
		}).Info("stat catalog refreshed")
		return snapshot, nil
	}

	if c.fileCache != nil {
		if data, lastUpdated, readErr := c.fileCache.Read(); readErr == nil {
			if snapshot, buildErr := snapshotFromRaw(data, lastUpdated); buildErr == nil {
				logrus.WithError(err).WithField("cached_at", lastUpdated).
					Warn("stats endpoint unavailable, serving disk cache")
				return snapshot, nil
			}
		}
	}

	return nil, err
}

func snapshotFromRaw(raw json.RawMessage, fetchedAt time.Time) (*Snapshot, error) {
	var payload statsResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}
	return buildSnapshot(raw, payload.Result, fetchedAt, true)
}

func buildSnapshot(raw json.RawMessage, groups []statGroup, fetchedAt time.Time, stale bool) (*Snapshot, error) {
	var all []StatOption
	var implicit []StatOption
	for _, group := range groups {
		label := strings.TrimSpace(group.Label)
		for _, entry := range group.Entries {
			if entry.ID == "" || entry.Text == "" {
				continue
			}
			option := StatOption{ID: entry.ID, Text: entry.Text, Category: label, Option: entry.Option}
			all = append(all, option)
			if strings.EqualFold(label, ImplicitCategory) {
				implicit = append(implicit, option)
			}
		}
	}
	if len(all) == 0 {
		return nil, errors.New("stats dataset is empty after flattening")
	}

	return &Snapshot{
		All:           all,
		Implicit:      implicit,
		AllIndex:      match.NewIndex(indexEntries(all)),
		ImplicitIndex: match.NewIndex(indexEntries(implicit)),
		Raw:           raw,
		FetchedAt:     fetchedAt,
		Stale:         stale,
	}, nil
}

func indexEntries(options []StatOption) []match.Entry {
	entries := make([]match.Entry, 0, len(options))
	for _, option := range options {
		entries = append(entries, match.Entry{ID: option.ID, Text: option.Text})
	}
	return entries
}
