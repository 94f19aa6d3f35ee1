package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// AlertScanner periodically generates alert reports for a fixed set of shops
// and hands them to the notifier.
type AlertScanner struct {
	cron     *cron.Cron
	alerts   *AlertService
	notifier *AlertNotifier
	shops    []string
	logger   *slog.Logger
}

func NewAlertScanner(
	schedule string,
	shops []string,
	alerts *AlertService,
	notifier *AlertNotifier,
	logger *slog.Logger,
) (*AlertScanner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &AlertScanner{
		cron:     cron.New(),
		alerts:   alerts,
		notifier: notifier,
		shops:    append([]string(nil), shops...),
		logger:   logger,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.ScanOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid scanner schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *AlertScanner) Start() {
	s.logger.Info("Starting alert scanner", slog.Int("shops", len(s.shops)))
	s.cron.Start()
}

// ScanOnce runs one pass over every configured shop. Shops with no alerts
// are not published.
func (s *AlertScanner) ScanOnce(ctx context.Context) {
	for _, shopID := range s.shops {
		report := s.alerts.Generate(ctx, shopID)
		if report.Count == 0 {
			continue
		}
		if err := s.notifier.Notify(ctx, report); err != nil {
			s.logger.ErrorContext(ctx, "Failed to queue alert report",
				slog.String("shop_id", shopID),
				slog.String("error", err.Error()))
		}
	}
}

// Stop waits for a running scan to finish or ctx to expire.
func (s *AlertScanner) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("Alert scanner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
