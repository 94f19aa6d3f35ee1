package service

import (
	"context"
	"log/slog"

	"khata/internal/domain"
	"khata/internal/processor"
	"khata/pkg/metrics"
)

type AlertService struct {
	generator *processor.AlertGenerator
	metrics   *metrics.MetricsCollector
	logger    *slog.Logger
}

func NewAlertService(
	inventory processor.InventorySource,
	ledger processor.LedgerSource,
	clock processor.Clock,
	metricsCollector *metrics.MetricsCollector,
	logger *slog.Logger,
) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NewMetricsCollector(logger)
	}

	return &AlertService{
		generator: processor.NewAlertGenerator(inventory, ledger, clock, logger),
		metrics:   metricsCollector,
		logger:    logger,
	}
}

func (s *AlertService) Generate(ctx context.Context, shopID string) *domain.AlertReport {
	report := s.generator.Generate(ctx, shopID)

	for _, alert := range report.Alerts {
		s.metrics.RecordAlert(string(alert.Type), string(alert.Priority))
	}
	for _, check := range report.FailedChecks {
		s.metrics.RecordSubCheckFailure(check)
	}

	s.logger.InfoContext(ctx, "Alerts generated",
		slog.String("shop_id", shopID),
		slog.Int("count", report.Count),
		slog.Int("failed_checks", len(report.FailedChecks)))

	return report
}
