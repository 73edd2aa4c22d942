package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gymdesk/gymdesk/internal/attendance"
	"github.com/gymdesk/gymdesk/internal/billing"
	"github.com/gymdesk/gymdesk/internal/clock"
	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/observability"
	"github.com/gymdesk/gymdesk/internal/schedule"
	"github.com/gymdesk/gymdesk/internal/shared"
)

// Services holds the domain services shared by the server, the worker and gymctl.
type Services struct {
	Clock       *clock.Facility
	Audit       *shared.AuditLogger
	Idempotency *shared.IdempotencyStore
	Members     *membership.Service
	Ledger      *billing.Ledger
	Schedule    *schedule.Service
	Gate        *attendance.CheckInGate
	Attendance  *attendance.Service
	Sweeper     *attendance.Sweeper
}

// NewServices wires every domain service. redisClient and metrics may be nil;
// the schedule is then read straight from Postgres and check-in outcomes are
// not counted.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) (*Services, error) {
	clk, err := clock.NewFacility(cfg.FacilityTimezone)
	if err != nil {
		return nil, fmt.Errorf("app: facility clock: %w", err)
	}
	audit := shared.NewAuditLogger(pool)
	idem := shared.NewIdempotencyStore(pool)

	members := membership.NewService(membership.NewRepository(pool), clk, audit, logger)
	ledger := billing.NewLedger(billing.NewRepository(pool), clk, audit, idem, logger)

	var scheduleCache *schedule.Cache
	if redisClient != nil {
		scheduleCache = schedule.NewCache(redisClient, cfg.ScheduleCacheTTL)
	}
	batches := schedule.NewService(schedule.NewRepository(pool), scheduleCache, logger)

	attendanceRepo := attendance.NewRepository(pool)
	gate := attendance.NewCheckInGate(members, batches, attendanceRepo, clk, attendance.GateConfig{
		Geofence: attendance.Geofence{
			Center:       attendance.Point{Latitude: cfg.FacilityLatitude, Longitude: cfg.FacilityLongitude},
			RadiusMeters: cfg.GeofenceRadiusMeters,
		},
		TrialDays:         cfg.TrialDays,
		EscalationContact: cfg.EscalationContact,
	}, metrics, logger)

	return &Services{
		Clock:       clk,
		Audit:       audit,
		Idempotency: idem,
		Members:     members,
		Ledger:      ledger,
		Schedule:    batches,
		Gate:        gate,
		Attendance:  attendance.NewService(attendanceRepo, members, clk, audit, logger),
		Sweeper:     attendance.NewSweeper(attendanceRepo, clk, logger),
	}, nil
}
