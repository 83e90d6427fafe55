// Package state owns the in-memory copy of the entry log used by clients.
package state

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"example.com/fitlog/internal/aggregate"
	"example.com/fitlog/internal/domain"
)

// Gateway is the entry store as seen by a client. *domain.Service and
// *client.Client both satisfy it.
type Gateway interface {
	ListEntries(ctx context.Context) ([]domain.Entry, error)
	CreateEntry(ctx context.Context, input domain.NewEntry) (*domain.Entry, error)
}

// Log caches the entries of a Gateway. A failed call leaves the cache as it
// was.
type Log struct {
	gateway Gateway

	mu      sync.RWMutex
	entries []domain.Entry
	// submits counts successful submits; Refresh uses it to detect entries
	// created while its list call was in flight.
	submits uint64
}

// NewLog constructs an empty Log. Call Refresh to load entries.
func NewLog(gateway Gateway) *Log {
	return &Log{gateway: gateway}
}

// Refresh replaces the cache with the gateway's entries, newest first.
// Entries submitted while the list call was running are kept.
func (l *Log) Refresh(ctx context.Context) error {
	l.mu.RLock()
	seen := l.submits
	l.mu.RUnlock()

	entries, err := l.gateway.ListEntries(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.submits != seen {
		entries = mergeUnseen(entries, l.entries)
	}
	domain.SortNewestFirst(entries)
	l.entries = entries
	l.mu.Unlock()

	log.Debugf("state refreshed with %d entries", len(entries))
	return nil
}

// SubmitActivity validates and stores activity text. Empty text and text
// without a "name - reps" shape never reach the gateway.
func (l *Log) SubmitActivity(ctx context.Context, text string) (*domain.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyActivity
	}
	if _, ok := domain.ParseActivity(text); !ok {
		return nil, domain.ErrParseFailure
	}
	return l.submit(ctx, domain.NewActivityEntry(text))
}

// SubmitWeight validates and stores a weight typed as text.
func (l *Log) SubmitWeight(ctx context.Context, text string) (*domain.Entry, error) {
	amount, err := domain.ParseWeight(text)
	if err != nil {
		return nil, err
	}
	return l.submit(ctx, domain.NewWeightEntry(amount))
}

func (l *Log) submit(ctx context.Context, input domain.NewEntry) (*domain.Entry, error) {
	entry, err := l.gateway.CreateEntry(ctx, input)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.entries = append([]domain.Entry{*entry}, l.entries...)
	l.submits++
	l.mu.Unlock()
	return entry, nil
}

// mergeUnseen appends the cached entries whose IDs are missing from fetched.
// Entries are append-only, so a missing ID is one the fetch raced past.
func mergeUnseen(fetched, cached []domain.Entry) []domain.Entry {
	ids := make(map[string]struct{}, len(fetched))
	for _, e := range fetched {
		ids[e.ID] = struct{}{}
	}
	for _, e := range cached {
		if _, ok := ids[e.ID]; !ok {
			fetched = append(fetched, e)
		}
	}
	return fetched
}

// Snapshot returns a copy of the cached entries, newest first.
func (l *Log) Snapshot() []domain.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Dashboard aggregates the cached entries for month as seen at now in loc.
func (l *Log) Dashboard(now time.Time, loc *time.Location, month aggregate.Month) aggregate.Dashboard {
	return aggregate.BuildDashboard(l.Snapshot(), now, loc, month)
}

// Months lists the month selector options for the cached entries.
func (l *Log) Months(now time.Time, loc *time.Location) []aggregate.MonthOption {
	return aggregate.MonthRoster(l.Snapshot(), now, loc)
}
