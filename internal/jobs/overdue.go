package jobs

import (
	"context"
	"time"

	"freight-erp/internal/service"

	"github.com/rs/zerolog"
)

type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (service.OverdueSweepResult, error)
}

// RunOverdueSweep marks overdue invoices once at start and then on every tick until ctx is
// cancelled. A non-positive interval disables the job.
func RunOverdueSweep(ctx context.Context, marker OverdueMarker, interval time.Duration, log zerolog.Logger) {
	log = log.With().Str("job", "overdue_sweep").Logger()
	if interval <= 0 {
		log.Info().Msg("overdue sweep disabled")
		return
	}

	log.Info().Dur("interval", interval).Msg("overdue sweep started")
	defer log.Info().Msg("overdue sweep stopped")

	sweep := func() {
		result, err := marker.MarkOverdue(ctx, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("overdue sweep failed")
			return
		}
		if result.Marked > 0 {
			log.Info().Int("marked", result.Marked).Strs("invoice_nos", result.InvoiceNos).Msg("invoices marked overdue")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
