package jobqueue

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/ahlev/Parlaybot/internal/platform/resilience"
	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerRetries       = "Upstash-Retries"
	headerDelay         = "Upstash-Delay"
	headerDedupID       = "Upstash-Deduplication-Id"
	headerMethod        = "Upstash-Method"
	headerForwardToken  = "Upstash-Forward-X-Internal-Job-Token"
	maxLoggedBodyLength = 1024
)

var errQStashTransient = crerr.New("qstash transient failure")

type QStashPublisherConfig struct {
	BaseURL          string
	Token            string
	TargetBaseURL    string
	Retries          int
	InternalJobToken string
	Timeout          time.Duration
	CircuitBreaker   resilience.CircuitBreakerConfig
}

// QStashPublisher schedules delayed calls back into this service's internal
// job endpoints through Upstash QStash.
type QStashPublisher struct {
	client           *http.Client
	baseURL          string
	token            string
	targetBaseURL    string
	retries          int
	internalJobToken string
	logger           *logging.Logger
	breaker          *resilience.CircuitBreaker
}

func NewQStashPublisher(cfg QStashPublisherConfig, logger *logging.Logger) *QStashPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	var breaker *resilience.CircuitBreaker
	if cfg.CircuitBreaker.Enabled {
		breaker = resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker)
	}

	return &QStashPublisher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:          strings.TrimSpace(cfg.BaseURL),
		token:            strings.TrimSpace(cfg.Token),
		targetBaseURL:    strings.TrimSpace(cfg.TargetBaseURL),
		retries:          cfg.Retries,
		internalJobToken: strings.TrimSpace(cfg.InternalJobToken),
		logger:           logger,
		breaker:          breaker,
	}
}

func (p *QStashPublisher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "/" {
		return crerr.New("job path is required")
	}

	baseURL, err := validateHTTPBaseURL(p.baseURL)
	if err != nil {
		return crerr.Wrap(err, "invalid QSTASH_BASE_URL")
	}
	targetBaseURL, err := validateHTTPBaseURL(p.targetBaseURL)
	if err != nil {
		return crerr.Wrap(err, "invalid QSTASH_TARGET_BASE_URL")
	}

	if payload == nil {
		payload = map[string]any{}
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return crerr.Wrap(err, "marshal job payload")
	}

	targetURL := targetBaseURL + path
	publishURL := baseURL + "/v2/publish/" + targetURL
	deduplicationID = strings.TrimSpace(deduplicationID)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.target_url", targetURL),
			attribute.String("qstash.deduplication_id", deduplicationID),
			attribute.String("qstash.delay", formatDelay(delay)),
		)
	}

	return p.breaker.Do(func() error {
		return p.publish(ctx, publishURL, targetURL, body, delay, deduplicationID)
	}, isCircuitFailure)
}

func (p *QStashPublisher) publish(ctx context.Context, publishURL, targetURL string, body []byte, delay time.Duration, deduplicationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL, bytes.NewReader(body))
	if err != nil {
		return crerr.Wrap(err, "create qstash request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerMethod, http.MethodPost)
	if p.retries > 0 {
		req.Header.Set(headerRetries, strconv.Itoa(p.retries))
	}
	if delay > 0 {
		req.Header.Set(headerDelay, formatDelay(delay))
	}
	if deduplicationID != "" {
		req.Header.Set(headerDedupID, deduplicationID)
	}
	if p.internalJobToken != "" {
		req.Header.Set(headerForwardToken, p.internalJobToken)
	}

	p.logger.DebugContext(ctx, "qstash publish request", "target_url", targetURL, "body", describeRequest(body, delay, deduplicationID))

	resp, err := p.client.Do(req)
	if err != nil {
		return crerr.Mark(crerr.Wrapf(err, "publish qstash job target_url=%s", targetURL), errQStashTransient)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		callErr := crerr.Newf("publish qstash job status=%d target_url=%s body=%s", resp.StatusCode, targetURL, strings.TrimSpace(string(raw)))
		if isRetryableStatus(resp.StatusCode) {
			return crerr.Mark(callErr, errQStashTransient)
		}
		return callErr
	}

	p.logger.InfoContext(ctx, "qstash job published",
		"target_url", targetURL,
		"delay", formatDelay(delay),
		"deduplication_id", deduplicationID,
	)
	return nil
}

// formatDelay renders whole seconds, the unit QStash accepts in Upstash-Delay.
func formatDelay(delay time.Duration) string {
	if delay <= 0 {
		return "0s"
	}
	// Rounded up so the job never lands before its target time.
	return strconv.FormatInt(int64((delay+time.Second-1)/time.Second), 10) + "s"
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}

// describeRequest builds a compact log line of the publish without the
// bearer or forwarded job token.
func describeRequest(body []byte, delay time.Duration, deduplicationID string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("delay=")
	_, _ = buf.WriteString(formatDelay(delay))
	if deduplicationID != "" {
		_, _ = buf.WriteString(" dedup=")
		_, _ = buf.WriteString(deduplicationID)
	}
	_, _ = buf.WriteString(" payload=")
	if len(body) > maxLoggedBodyLength {
		_, _ = buf.Write(body[:maxLoggedBodyLength])
		_, _ = buf.WriteString("...(truncated)")
	} else {
		_, _ = buf.Write(body)
	}
	return buf.String()
}

func isCircuitFailure(err error) bool {
	return crerr.Is(err, errQStashTransient)
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
