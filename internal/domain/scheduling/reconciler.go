package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/platform/clock"
)

// Reconciler moves appointments through time-driven transitions that
// nobody requests explicitly: auto-start at the scheduled instant,
// auto-complete once the consultation window has passed, and expiry of
// unpaid payment holds. Every write is a compare-and-set, so a manual
// transition racing a tick makes one of them a harmless no-op.
type Reconciler struct {
	appointments AppointmentRepository
	clock        clock.Clock
	interval     time.Duration
	log          zerolog.Logger
}

// DefaultReconcileInterval is how often the reconciler scans when the
// configuration does not override it.
const DefaultReconcileInterval = 60 * time.Second

func NewReconciler(appts AppointmentRepository, clk clock.Clock, interval time.Duration, log zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{
		appointments: appts,
		clock:        clk,
		interval:     interval,
		log:          log.With().Str("component", "reconciler").Logger(),
	}
}

// Run ticks until ctx is cancelled. An immediate first tick picks up
// work that accumulated while the process was down.
func (r *Reconciler) Run(ctx context.Context) {
	r.Tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs the three passes once. Each pass filters on a single
// status, and completion runs before start so an appointment moves at
// most one step per tick. A failing pass or appointment never stops
// the others.
func (r *Reconciler) Tick(ctx context.Context) {
	now := r.clock.Now()
	completed := r.autoComplete(ctx, now)
	started := r.autoStart(ctx, now)
	expired := r.expirePaymentHolds(ctx, now)
	if completed+started+expired > 0 {
		r.log.Info().
			Int("auto_completed", completed).
			Int("auto_started", started).
			Int("holds_expired", expired).
			Msg("reconcile pass")
	}
}

func (r *Reconciler) autoStart(ctx context.Context, now time.Time) int {
	due, err := r.appointments.DueForStart(ctx, now)
	if err != nil {
		r.log.Error().Err(err).Msg("scan for due starts failed")
		return 0
	}
	n := 0
	for _, apt := range due {
		ok, err := r.appointments.UpdateStatusIf(ctx, apt.ID, StatusConfirmed, StatusInProgress, nil)
		if err != nil {
			r.log.Error().Err(err).Str("appointment_id", apt.ID.String()).Msg("auto-start failed")
			continue
		}
		if ok {
			n++
			r.log.Info().Str("appointment_id", apt.ID.String()).Time("scheduled_at", apt.ScheduledAt).Msg("appointment auto-started")
		}
	}
	return n
}

func (r *Reconciler) autoComplete(ctx context.Context, now time.Time) int {
	due, err := r.appointments.DueForCompletion(ctx, now)
	if err != nil {
		r.log.Error().Err(err).Msg("scan for due completions failed")
		return 0
	}
	n := 0
	for _, apt := range due {
		ok, err := r.appointments.UpdateStatusIf(ctx, apt.ID, StatusInProgress, StatusCompleted, nil)
		if err != nil {
			r.log.Error().Err(err).Str("appointment_id", apt.ID.String()).Msg("auto-complete failed")
			continue
		}
		if ok {
			n++
			r.log.Info().Str("appointment_id", apt.ID.String()).Msg("appointment auto-completed")
		}
	}
	return n
}

func (r *Reconciler) expirePaymentHolds(ctx context.Context, now time.Time) int {
	expired, err := r.appointments.ExpiredPaymentHolds(ctx, now.Add(-PaymentHoldTimeout))
	if err != nil {
		r.log.Error().Err(err).Msg("scan for expired payment holds failed")
		return 0
	}
	note := "Cancelled by system: payment was not completed in time"
	n := 0
	for _, apt := range expired {
		ok, err := r.appointments.UpdateStatusIf(ctx, apt.ID, StatusPaymentPending, StatusCancelled, &note)
		if err != nil {
			r.log.Error().Err(err).Str("appointment_id", apt.ID.String()).Msg("payment hold expiry failed")
			continue
		}
		if ok {
			n++
			r.log.Info().Str("appointment_id", apt.ID.String()).Time("created_at", apt.CreatedAt).Msg("payment hold expired, appointment cancelled")
		}
	}
	return n
}
