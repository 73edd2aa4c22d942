package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service manages batches and serves the cached schedule.
type Service struct {
	repo   Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService wires the schedule service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// loadTimeout bounds a shared load, which outlives any single caller.
const loadTimeout = 5 * time.Second

// Load returns the current schedule. Concurrent callers share one load; a
// caller that gives up returns its own context error without cancelling the
// load for the others.
func (s *Service) Load(ctx context.Context) (*Schedule, error) {
	flight := s.group.DoChan("schedule", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.load(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Schedule), nil
	}
}

func (s *Service) load(ctx context.Context) (*Schedule, error) {
	if s.cache == nil {
		return s.loadFromStore(ctx)
	}
	sched, err := s.cache.Fetch(ctx, s.loadFromStore)
	if err == nil {
		return sched, nil
	}
	s.logger.Warn("schedule cache unavailable, reading store", slog.Any("error", err))
	return s.loadFromStore(ctx)
}

func (s *Service) loadFromStore(ctx context.Context) (*Schedule, error) {
	batches, err := s.repo.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	return &Schedule{Batches: batches}, nil
}

// List returns every batch, inactive ones included.
func (s *Service) List(ctx context.Context) ([]Batch, error) {
	sched, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return sched.Batches, nil
}

// BatchInput describes a new batch.
type BatchInput struct {
	Name     string
	Start    TimeOfDay
	End      TimeOfDay
	Capacity int
	Active   bool
}

// BatchPatch carries a partial batch update.
type BatchPatch struct {
	Name     *string
	Start    *TimeOfDay
	End      *TimeOfDay
	Capacity *int
	Active   *bool
}

// Create stores a new batch and invalidates the cached schedule.
func (s *Service) Create(ctx context.Context, in BatchInput) (*Batch, error) {
	b := &Batch{
		Name:     strings.TrimSpace(in.Name),
		Start:    in.Start,
		End:      in.End,
		Capacity: in.Capacity,
		Active:   in.Active,
	}
	if err := validateBatch(b); err != nil {
		return nil, err
	}
	if err := s.repo.InsertBatch(ctx, b); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return b, nil
}

// Update applies a patch to a batch and invalidates the cached schedule.
func (s *Service) Update(ctx context.Context, id int64, patch BatchPatch) (*Batch, error) {
	b, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		b.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Start != nil {
		b.Start = *patch.Start
	}
	if patch.End != nil {
		b.End = *patch.End
	}
	if patch.Capacity != nil {
		b.Capacity = *patch.Capacity
	}
	if patch.Active != nil {
		b.Active = *patch.Active
	}
	if err := validateBatch(b); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBatch(ctx, b); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return b, nil
}

// invalidate is best effort; entries also expire with the cache TTL.
func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump schedule cache", slog.Any("error", err))
	}
}

func validateBatch(b *Batch) error {
	switch {
	case b.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidBatch)
	case b.Start < 0 || b.Start >= MinutesPerDay || b.End < 0 || b.End >= MinutesPerDay:
		return fmt.Errorf("%w: times must be within the day", ErrInvalidBatch)
	case b.Start == b.End:
		return fmt.Errorf("%w: start and end must differ", ErrInvalidBatch)
	case b.Capacity < 0:
		return fmt.Errorf("%w: capacity cannot be negative", ErrInvalidBatch)
	}
	return nil
}
