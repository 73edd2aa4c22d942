package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gymdesk/gymdesk/internal/clock"
	"github.com/gymdesk/gymdesk/internal/shared"
)

// AuditRecorder persists staff actions. shared.AuditLogger satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates member lifecycle operations.
type Service struct {
	repo   Repository
	clock  clock.Clock
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds a Service. audit may be nil.
func NewService(repo Repository, clk clock.Clock, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clk, audit: audit, logger: logger}
}

// Register creates a pending member. The registration day counts as trial day one.
func (s *Service) Register(ctx context.Context, in NewMemberInput) (*Member, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Phone == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: name, phone and email are required", ErrInvalidInput)
	}
	today := s.clock.Today()
	m := &Member{
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		DateOfBirth:  in.DateOfBirth,
		BatchID:      in.BatchID,
		Status:       StatusPending,
		PaymentState: PaymentPending,
		RegisteredOn: today,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertMember(ctx, m); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &Event{
			MemberID:    m.ID,
			Kind:        EventRegistration,
			OccurredOn:  today,
			PriorStatus: StatusPending,
			ActorID:     in.ActorID,
		})
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.ActorID, "member.registered", m.ID, nil)
	return m, nil
}

// Get loads a member and brings its derived status up to date.
func (s *Service) Get(ctx context.Context, id int64) (*Member, error) {
	m, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, m), nil
}

// FindForCheckIn resolves the (phone, email) identity among active members and
// reclassifies it before any admission decision reads the status.
func (s *Service) FindForCheckIn(ctx context.Context, phone, email string) (*Member, error) {
	m, err := s.repo.FindActiveByContact(ctx, strings.TrimSpace(phone), strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, m), nil
}

// List returns members, optionally filtered by status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Member, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	return s.repo.ListMembers(ctx, filter)
}

// Stats counts members per status.
func (s *Service) Stats(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

// History returns the member's lifecycle events.
func (s *Service) History(ctx context.Context, memberID int64) ([]Event, error) {
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, memberID)
}

// AssignBatch sets or clears the member's batch.
func (s *Service) AssignBatch(ctx context.Context, memberID int64, batchID *int64, actorID int64) (*Member, error) {
	var out *Member
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.LockMember(ctx, memberID)
		if err != nil {
			return err
		}
		m.BatchID = batchID
		if err := tx.SaveLifecycle(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "member.batch_assigned", memberID, map[string]any{"batch_id": batchID})
	return out, nil
}

// RefreshStatuses reclassifies every member with a derived status and persists
// the ones that changed. Members modified concurrently are skipped.
func (s *Service) RefreshStatuses(ctx context.Context) (int, error) {
	members, err := s.repo.ListClassifiable(ctx)
	if err != nil {
		return 0, err
	}
	today := s.clock.Today()
	changed := 0
	for i := range members {
		m := &members[i]
		prev := m.Status
		if !Classify(m, today) {
			continue
		}
		if err := s.repo.SaveClassification(ctx, m, prev); err != nil {
			if errors.Is(err, ErrStaleMember) {
				continue
			}
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (s *Service) refresh(ctx context.Context, m *Member) *Member {
	prev := m.Status
	if !Classify(m, s.clock.Today()) {
		return m
	}
	// The classified value is returned either way; persisting is best effort
	// because the next read will derive the same result.
	if err := s.repo.SaveClassification(ctx, m, prev); err != nil {
		s.logger.Warn("persist classification",
			slog.Int64("member_id", m.ID),
			slog.String("status", string(m.Status)),
			slog.Any("error", err))
	}
	return m
}

func (s *Service) record(ctx context.Context, actorID int64, action string, memberID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "member",
		EntityID: strconv.FormatInt(memberID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
