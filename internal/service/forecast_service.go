package service

import (
	"context"
	"log/slog"

	"khata/internal/domain"
	"khata/internal/processor"
	"khata/internal/repository"
	"khata/pkg/metrics"
)

const DefaultLookbackDays = 30

type ForecastService struct {
	sales        repository.SalesRepository
	forecaster   *processor.DemandForecaster
	lookbackDays int
	metrics      *metrics.MetricsCollector
	logger       *slog.Logger
}

func NewForecastService(
	sales repository.SalesRepository,
	forecaster *processor.DemandForecaster,
	lookbackDays int,
	metricsCollector *metrics.MetricsCollector,
	logger *slog.Logger,
) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NewMetricsCollector(logger)
	}
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	return &ForecastService{
		sales:        sales,
		forecaster:   forecaster,
		lookbackDays: lookbackDays,
		metrics:      metricsCollector,
		logger:       logger,
	}
}

// ForecastItems returns one forecast per item id, in request order. An item
// whose history cannot be loaded carries an error string instead of points.
func (s *ForecastService) ForecastItems(ctx context.Context, shopID string, itemIDs []string, days int) []domain.Forecast {
	days = processor.NormalizeForecastDays(days)
	forecasts := make([]domain.Forecast, 0, len(itemIDs))

	for _, itemID := range itemIDs {
		history, err := s.sales.History(ctx, shopID, itemID, s.lookbackDays)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to load sales history",
				slog.String("shop_id", shopID),
				slog.String("item_id", itemID),
				slog.String("error", err.Error()))
			forecasts = append(forecasts, domain.Forecast{
				ItemID: itemID,
				Points: []domain.ForecastPoint{},
				Error:  err.Error(),
			})
			continue
		}

		forecast := s.forecaster.Forecast(itemID, history, days)
		s.metrics.RecordForecastConfidence(forecast.Confidence)
		forecasts = append(forecasts, forecast)
	}

	return forecasts
}
