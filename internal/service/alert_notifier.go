package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"khata/internal/domain"
	"khata/pkg/crypto"
	"khata/pkg/metrics"
)

const notifierQueueSize = 100

var ErrNotifierClosed = errors.New("alert notifier is shut down")

// Publisher delivers an encoded alert report to subscribers on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// SignedReport is the message body published for every alert report.
type SignedReport struct {
	Report    *domain.AlertReport `json:"report"`
	Signature string              `json:"signature,omitempty"`
}

// AlertNotifier publishes alert reports from a bounded queue drained by a
// fixed pool of workers.
type AlertNotifier struct {
	publisher    Publisher
	signer       *crypto.Signer
	channel      string
	queue        chan *domain.AlertReport
	workers      int
	shutdownChan chan struct{}
	closed       bool
	mu           sync.RWMutex
	wg           sync.WaitGroup
	metrics      *metrics.MetricsCollector
	logger       *slog.Logger
}

func NewAlertNotifier(
	publisher Publisher,
	signer *crypto.Signer,
	channel string,
	workers int,
	metricsCollector *metrics.MetricsCollector,
	logger *slog.Logger,
) *AlertNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NewMetricsCollector(logger)
	}
	if workers < 1 {
		workers = 1
	}

	n := &AlertNotifier{
		publisher:    publisher,
		signer:       signer,
		channel:      channel,
		queue:        make(chan *domain.AlertReport, notifierQueueSize),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		metrics:      metricsCollector,
		logger:       logger,
	}

	n.startWorkers()

	return n
}

// Notify queues a report for publishing. Once Shutdown has started every
// call fails with ErrNotifierClosed, so an accepted report is always drained.
func (n *AlertNotifier) Notify(ctx context.Context, report *domain.AlertReport) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}

	select {
	case n.queue <- report:
		n.logger.InfoContext(ctx, "Alert report queued",
			slog.String("shop_id", report.ShopID),
			slog.Int("count", report.Count))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AlertNotifier) startWorkers() {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}
}

func (n *AlertNotifier) worker(id int) {
	defer n.wg.Done()

	for {
		select {
		case report := <-n.queue:
			n.publish(report, id)
		case <-n.shutdownChan:
			// Drain what is already queued before stopping.
			for {
				select {
				case report := <-n.queue:
					n.publish(report, id)
				default:
					return
				}
			}
		}
	}
}

func (n *AlertNotifier) publish(report *domain.AlertReport, workerID int) {
	startTime := time.Now()
	err := n.send(report)
	duration := time.Since(startTime)

	if err != nil {
		n.metrics.RecordNotificationFailure()
		n.logger.Error("Failed to publish alert report",
			slog.String("shop_id", report.ShopID),
			slog.String("channel", n.channel),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
		return
	}

	n.logger.Info("Alert report published",
		slog.String("shop_id", report.ShopID),
		slog.String("channel", n.channel),
		slog.Int("worker_id", workerID),
		slog.Duration("duration", duration))
}

func (n *AlertNotifier) send(report *domain.AlertReport) error {
	message := SignedReport{Report: report}
	if n.signer != nil {
		body, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		message.Signature = n.signer.SignReport(report.ShopID, report.GeneratedAt, body)
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return n.publisher.Publish(ctx, n.channel, payload)
}

// Shutdown stops accepting reports and waits for the queue to drain. It is
// safe to call more than once.
func (n *AlertNotifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.shutdownChan)
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("Alert notifier shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
