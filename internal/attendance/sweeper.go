package attendance

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"

	"github.com/gymdesk/gymdesk/internal/clock"
)

const defaultSweepChunk = 500

// SweepResult summarises one sweep. Err is set when the sweep stopped early;
// the counts then reflect the work done before the failure.
type SweepResult struct {
	Date          civil.Date `json:"date"`
	Eligible      int        `json:"eligible"`
	AlreadyMarked int        `json:"already_marked"`
	Marked        int        `json:"marked"`
	Err           error      `json:"-"`
}

// Sweeper back-fills absent records for eligible members with no record.
type Sweeper struct {
	repo   Repository
	clock  clock.Clock
	chunk  int
	logger *slog.Logger
}

// NewSweeper wires a Sweeper.
func NewSweeper(repo Repository, clk clock.Clock, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{repo: repo, clock: clk, chunk: defaultSweepChunk, logger: logger}
}

// Run sweeps date, or today when date is nil. Running it again for the same
// day writes nothing new.
func (s *Sweeper) Run(ctx context.Context, date *civil.Date) SweepResult {
	res := SweepResult{Date: s.clock.Today()}
	if date != nil {
		res.Date = *date
	}

	eligible, err := s.repo.ListEligible(ctx, res.Date)
	if err != nil {
		res.Err = fmt.Errorf("list eligible members: %w", err)
		return s.done(res)
	}
	res.Eligible = len(eligible)

	markedIDs, err := s.repo.MarkedMemberIDs(ctx, res.Date)
	if err != nil {
		res.Err = fmt.Errorf("list marked members: %w", err)
		return s.done(res)
	}
	marked := make(map[int64]struct{}, len(markedIDs))
	for _, id := range markedIDs {
		marked[id] = struct{}{}
	}

	unmarked := make([]EligibleMember, 0, len(eligible))
	for _, m := range eligible {
		if _, ok := marked[m.MemberID]; ok {
			res.AlreadyMarked++
			continue
		}
		unmarked = append(unmarked, m)
	}

	for start := 0; start < len(unmarked); start += s.chunk {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		end := min(start+s.chunk, len(unmarked))
		n, err := s.repo.InsertAbsent(ctx, res.Date, unmarked[start:end])
		if err != nil {
			res.Err = fmt.Errorf("insert absent records: %w", err)
			break
		}
		res.Marked += n
	}
	return s.done(res)
}

func (s *Sweeper) done(res SweepResult) SweepResult {
	attrs := []any{
		slog.String("date", res.Date.String()),
		slog.Int("eligible", res.Eligible),
		slog.Int("already_marked", res.AlreadyMarked),
		slog.Int("marked", res.Marked),
	}
	if res.Err != nil {
		s.logger.Error("absence sweep incomplete", append(attrs, slog.Any("error", res.Err))...)
	} else {
		s.logger.Info("absence sweep complete", attrs...)
	}
	return res
}
