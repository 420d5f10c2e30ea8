package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/allisson/eventbus/internal/broker"
	"github.com/allisson/eventbus/internal/metrics"
	subscriptionDomain "github.com/allisson/eventbus/internal/subscription/domain"
)

const (
	// maxFailureReasonLength bounds the failure reason stored on a subscription.
	maxFailureReasonLength = 1024
	// maxDrainBytes bounds how much of a failed response body is read before closing.
	maxDrainBytes = 4096
)

// DeliveryConfig holds webhook delivery configuration.
type DeliveryConfig struct {
	// RetryWaitMin and RetryWaitMax bound the wait between attempts. A zero
	// RetryWaitMax retries immediately.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// deliveryUseCase implements DeliveryUseCase.
type deliveryUseCase struct {
	config    DeliveryConfig
	subRepo   SubscriptionRepository
	transport http.RoundTripper
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewDeliveryUseCase creates a new DeliveryUseCase. Every delivery shares one
// pooled transport.
func NewDeliveryUseCase(
	config DeliveryConfig,
	subRepo SubscriptionRepository,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) DeliveryUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &deliveryUseCase{
		config:    config,
		subRepo:   subRepo,
		transport: http.DefaultTransport.(*http.Transport).Clone(),
		metrics:   businessMetrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Deliver posts env to sub.WebhookURL and records the outcome on the subscription.
func (d *deliveryUseCase) Deliver(
	ctx context.Context,
	sub *subscriptionDomain.EventSubscription,
	env broker.Envelope,
) error {
	start := time.Now()

	err := d.post(ctx, sub, env)

	// Bookkeeping must survive a shutdown that canceled the delivery itself.
	recordCtx := context.WithoutCancel(ctx)
	if err != nil {
		d.logger.Warn("webhook delivery failed",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("service_name", sub.ServiceName),
			slog.String("event_type", env.EventType),
			slog.String("event_id", env.EventID),
			slog.Any("error", err),
		)
		if recErr := d.subRepo.RecordDeliveryFailure(
			recordCtx, sub.ID, d.now(), truncate(err.Error(), maxFailureReasonLength),
		); recErr != nil {
			d.logger.Error("failed to record webhook failure",
				slog.String("subscription_id", sub.ID.String()),
				slog.Any("error", recErr),
			)
		}
	} else if recErr := d.subRepo.RecordDeliverySuccess(recordCtx, sub.ID, d.now()); recErr != nil {
		d.logger.Error("failed to record webhook success",
			slog.String("subscription_id", sub.ID.String()),
			slog.Any("error", recErr),
		)
	}

	status := metrics.StatusOf(err)
	d.metrics.RecordOperation(recordCtx, metrics.DomainSubscription, "webhook_deliver", status)
	d.metrics.RecordDuration(recordCtx, metrics.DomainSubscription, "webhook_deliver", time.Since(start), status)

	return err
}

func (d *deliveryUseCase) post(
	ctx context.Context,
	sub *subscriptionDomain.EventSubscription,
	env broker.Envelope,
) error {
	body, err := broker.Encode(env)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, sub.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", subscriptionDomain.ErrWebhookDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", env.EventType)
	req.Header.Set("X-Event-Id", env.EventID)
	if env.CorrelationID != "" {
		req.Header.Set("X-Correlation-Id", env.CorrelationID)
	}

	resp, err := d.client(sub).Do(req)
	if err != nil {
		return err
	}
	drain(resp.Body)
	return nil
}

// client builds a retrying client for one subscription. Attempts and the
// per-attempt timeout come from the subscription; the transport is shared.
func (d *deliveryUseCase) client(sub *subscriptionDomain.EventSubscription) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: d.transport,
		Timeout:   sub.Timeout(),
	}
	client.Logger = d.logger
	client.RetryMax = sub.Attempts() - 1
	client.RetryWaitMin = d.config.RetryWaitMin
	client.RetryWaitMax = d.config.RetryWaitMax
	client.CheckRetry = checkRetry
	client.Backoff = backoff
	client.ErrorHandler = errorHandler
	return client
}

// checkRetry retries on any transport error or non-2xx status.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode < 200 || resp.StatusCode > 299, nil
}

// backoff is the exponential default, including a Retry-After hint on 429 and
// 503 responses, capped at maxWait.
func backoff(minWait, maxWait time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if maxWait <= 0 {
		return 0
	}
	return min(retryablehttp.DefaultBackoff(minWait, maxWait, attemptNum, resp), maxWait)
}

func errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	if resp != nil {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: status %d after %d attempt(s)",
			subscriptionDomain.ErrWebhookDelivery, resp.StatusCode, numTries)
	}
	return nil, fmt.Errorf("%w: after %d attempt(s): %v", subscriptionDomain.ErrWebhookDelivery, numTries, err)
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
