// Package domain defines the fitness log entry model and its business rules.
package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidKind is returned for entry types other than activity and weight.
	ErrInvalidKind = fmt.Errorf("%w: invalid entry type", ErrValidation)
	// ErrEmptyActivity is returned for activity entries without text.
	ErrEmptyActivity = fmt.Errorf("%w: activity text is empty", ErrValidation)
	// ErrInvalidNumber is returned when a weight is not a finite decimal number.
	ErrInvalidNumber = fmt.Errorf("%w: weight must be a valid number", ErrValidation)
	// ErrParseFailure indicates activity text without a "name - reps" shape.
	ErrParseFailure = errors.New("activity must look like 'Name - Reps'")
	// ErrStorage wraps failures of the entry store.
	ErrStorage = errors.New("storage failure")
)

// TimestampPrecision is the resolution of server-assigned timestamps. Every
// store keeps at least millisecond precision.
const TimestampPrecision = time.Millisecond

// EntryRepository captures persistence operations. Entries are append-only.
type EntryRepository interface {
	List(ctx context.Context) ([]Entry, error)
	Create(ctx context.Context, entry Entry) error
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides how entry identifiers are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// Service orchestrates entry workflows.
type Service struct {
	repo  EntryRepository
	now   func() time.Time
	newID func() string
}

// NewService constructs a Service.
func NewService(repo EntryRepository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEntries returns every entry, newest first.
func (s *Service) ListEntries(ctx context.Context) ([]Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", ErrStorage, err)
	}
	SortNewestFirst(entries)
	return entries, nil
}

// CreateEntry validates the input, assigns identity and time, and persists it.
func (s *Service) CreateEntry(ctx context.Context, input NewEntry) (*Entry, error) {
	value, err := normalizeValue(input.Value)
	if err != nil {
		return nil, err
	}

	entry := Entry{
		ID:        s.newID(),
		Timestamp: s.now().UTC().Truncate(TimestampPrecision),
		Value:     value,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: create entry: %w", ErrStorage, err)
	}
	return &entry, nil
}

// normalizeValue enforces the entry invariants and derives the parsed detail
// for activities from their text.
func normalizeValue(value Value) (Value, error) {
	switch v := value.(type) {
	case Activity:
		if strings.TrimSpace(v.Text) == "" {
			return nil, ErrEmptyActivity
		}
		out := Activity{Text: v.Text}
		if detail, ok := ParseActivity(v.Text); ok {
			out.Detail = &detail
		}
		return out, nil
	case Weight:
		if !isFinite(v.Amount) {
			return nil, ErrInvalidNumber
		}
		return v, nil
	default:
		return nil, ErrInvalidKind
	}
}

// SortNewestFirst orders entries by timestamp descending. Equal timestamps keep their order.
func SortNewestFirst(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// SortOldestFirst orders entries by timestamp ascending. Equal timestamps keep their order.
func SortOldestFirst(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
