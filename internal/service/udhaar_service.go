package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
	"khata/internal/lock"
	"khata/internal/processor"
	"khata/internal/repository"
	"khata/pkg/metrics"
	"khata/pkg/validator"
)

const defaultMaxRetries = 3

type CreditRequest struct {
	ShopID       string            `json:"-" validate:"required"`
	CustomerID   string            `json:"customerId" validate:"required"`
	CustomerName string            `json:"customerName"`
	Amount       decimal.Decimal   `json:"amount"`
	Items        []domain.LineItem `json:"items" validate:"dive"`
	DueInDays    int               `json:"dueInDays" validate:"gte=0"`
}

type PaymentRequest struct {
	ShopID     string          `json:"-" validate:"required"`
	CustomerID string          `json:"customerId" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type CustomerDetail struct {
	Record      *domain.LedgerRecord `json:"record"`
	RiskScore   float64              `json:"riskScore"`
	RiskFactors []string             `json:"riskFactors"`
	IsOverdue   bool                 `json:"isOverdue"`
}

type LedgerListing struct {
	Records []*domain.LedgerRecord  `json:"records"`
	Summary processor.LedgerSummary `json:"summary"`
}

type UdhaarOptions struct {
	DefaultDueDays int
	MaxRetries     int
}

// UdhaarService runs ledger mutations as lock, load, apply, compare-and-swap
// save. A version conflict restarts the cycle from a fresh read.
type UdhaarService struct {
	repo      repository.LedgerRepository
	ledger    *processor.Ledger
	scorer    *processor.RiskScorer
	locker    lock.Locker
	clock     processor.Clock
	validator *validator.Validator
	metrics   *metrics.MetricsCollector
	opts      UdhaarOptions
	logger    *slog.Logger
}

func NewUdhaarService(
	repo repository.LedgerRepository,
	locker lock.Locker,
	clock processor.Clock,
	metricsCollector *metrics.MetricsCollector,
	opts UdhaarOptions,
	logger *slog.Logger,
) *UdhaarService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = processor.SystemClock{}
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NewMetricsCollector(logger)
	}
	if opts.DefaultDueDays <= 0 {
		opts.DefaultDueDays = processor.DefaultDueInDays
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}

	return &UdhaarService{
		repo:      repo,
		ledger:    processor.NewLedger(clock),
		scorer:    processor.NewRiskScorer(),
		locker:    locker,
		clock:     clock,
		validator: validator.Default(),
		metrics:   metricsCollector,
		opts:      opts,
		logger:    logger,
	}
}

func (s *UdhaarService) AddCredit(ctx context.Context, req CreditRequest) (*domain.LedgerRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	dueInDays := req.DueInDays
	if dueInDays == 0 {
		dueInDays = s.opts.DefaultDueDays
	}

	create := func() *domain.LedgerRecord {
		return domain.NewLedgerRecord(req.ShopID, req.CustomerID, req.CustomerName)
	}
	apply := func(record *domain.LedgerRecord) (*domain.LedgerRecord, error) {
		return s.ledger.ApplyCredit(record, req.Amount, req.Items, dueInDays)
	}

	return s.mutate(ctx, req.ShopID, req.CustomerID, domain.KindCredit, create, apply)
}

func (s *UdhaarService) RecordPayment(ctx context.Context, req PaymentRequest) (*domain.LedgerRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	apply := func(record *domain.LedgerRecord) (*domain.LedgerRecord, error) {
		return s.ledger.ApplyPayment(record, req.Amount)
	}

	return s.mutate(ctx, req.ShopID, req.CustomerID, domain.KindPayment, nil, apply)
}

func (s *UdhaarService) mutate(
	ctx context.Context,
	shopID, customerID string,
	kind domain.TransactionKind,
	create func() *domain.LedgerRecord,
	apply func(*domain.LedgerRecord) (*domain.LedgerRecord, error),
) (*domain.LedgerRecord, error) {
	startTime := time.Now()
	updated, err := s.mutateLocked(ctx, shopID, customerID, create, apply)
	s.metrics.RecordLedgerMutation(string(kind), time.Since(startTime), err == nil)

	if err != nil {
		s.logger.WarnContext(ctx, "Ledger mutation rejected",
			slog.String("shop_id", shopID),
			slog.String("customer_id", customerID),
			slog.String("type", string(kind)),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "Ledger mutation applied",
		slog.String("shop_id", shopID),
		slog.String("customer_id", customerID),
		slog.String("type", string(kind)),
		slog.String("outstanding", updated.OutstandingAmount.StringFixed(2)),
		slog.String("status", string(updated.Status)))
	return updated, nil
}

func (s *UdhaarService) mutateLocked(
	ctx context.Context,
	shopID, customerID string,
	create func() *domain.LedgerRecord,
	apply func(*domain.LedgerRecord) (*domain.LedgerRecord, error),
) (*domain.LedgerRecord, error) {
	release, err := s.locker.Obtain(ctx, shopID+":"+customerID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to release ledger lock",
				slog.String("shop_id", shopID),
				slog.String("customer_id", customerID),
				slog.String("error", err.Error()))
		}
	}()

	for attempt := 1; ; attempt++ {
		record, err := s.repo.Get(ctx, shopID, customerID)
		if errors.Is(err, repository.ErrNotFound) && create != nil {
			record = create()
		} else if err != nil {
			return nil, err
		}

		updated, err := apply(record)
		if err != nil {
			return nil, err
		}

		err = s.repo.Save(ctx, updated)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= s.opts.MaxRetries {
			return nil, err
		}

		s.metrics.RecordVersionConflict()
		s.logger.WarnContext(ctx, "Ledger version conflict, retrying",
			slog.String("shop_id", shopID),
			slog.String("customer_id", customerID),
			slog.Int("attempt", attempt))
	}
}

func (s *UdhaarService) GetCustomer(ctx context.Context, shopID, customerID string) (*CustomerDetail, error) {
	record, err := s.repo.Get(ctx, shopID, customerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	score, factors := s.scorer.Score(record, now)
	s.metrics.RecordRiskScore(score)
	if factors == nil {
		factors = []string{}
	}

	return &CustomerDetail{
		Record:      record,
		RiskScore:   score,
		RiskFactors: factors,
		IsOverdue:   processor.IsOverdue(record, now),
	}, nil
}

func (s *UdhaarService) ListRecords(ctx context.Context, shopID string, status domain.LedgerStatus) (*LedgerListing, error) {
	switch status {
	case "", domain.StatusPending, domain.StatusPaid:
	default:
		return nil, fmt.Errorf("%w: status must be PENDING or PAID, got %q", validator.ErrValidation, status)
	}

	records, err := s.repo.ListRecords(ctx, shopID)
	if err != nil {
		return nil, err
	}

	filtered, summary := processor.Summarize(records, s.clock.Now(), status)
	total, _ := summary.TotalOutstanding.Float64()
	s.metrics.UpdateShopOutstanding(shopID, total)

	return &LedgerListing{Records: filtered, Summary: summary}, nil
}
