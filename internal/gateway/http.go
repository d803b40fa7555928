package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// HTTPEffector calls the backend's settlement endpoints over HTTP. Outbound
// calls share one rate limiter.
type HTTPEffector struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	token   string
}

// HTTPOption configures an HTTPEffector.
type HTTPOption func(*HTTPEffector)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPEffector) {
		if c != nil {
			e.client = c
		}
	}
}

// WithRateLimit caps outbound calls per second. Zero or less disables limiting.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(e *HTTPEffector) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBearerToken sets the Authorization header sent on every call.
func WithBearerToken(token string) HTTPOption {
	return func(e *HTTPEffector) {
		e.token = token
	}
}

// NewHTTPEffector builds an effector rooted at baseURL.
func NewHTTPEffector(baseURL string, timeout time.Duration, opts ...HTTPOption) (*HTTPEffector, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid effector base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	e := &HTTPEffector{
		base:    base,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type settlePayoutBody struct {
	DestinationAccountID string `json:"destination_account_id"`
}

// SettleTopup posts to /topups/{method}/{id}/settle.
func (e *HTTPEffector) SettleTopup(ctx context.Context, method domain.Method, id string) error {
	return e.postJSON(ctx, e.endpoint("topups", string(method), id, "settle"), nil)
}

// SettlePayout posts the destination to /payouts/{id}/settle.
func (e *HTTPEffector) SettlePayout(ctx context.Context, id, destinationAccountID string) error {
	return e.postJSON(ctx, e.endpoint("payouts", id, "settle"), settlePayoutBody{DestinationAccountID: destinationAccountID})
}

// RejectTopup posts a multipart form to /topups/{method}/{id}/reject.
func (e *HTTPEffector) RejectTopup(ctx context.Context, method domain.Method, id, reason string, evidence *models.Evidence) error {
	return e.postReject(ctx, e.endpoint("topups", string(method), id, "reject"), reason, evidence)
}

// RejectPayout posts a multipart form to /payouts/{id}/reject.
func (e *HTTPEffector) RejectPayout(ctx context.Context, id, reason string, evidence *models.Evidence) error {
	return e.postReject(ctx, e.endpoint("payouts", id, "reject"), reason, evidence)
}

func (e *HTTPEffector) endpoint(segments ...string) string {
	return e.base.JoinPath(segments...).String()
}

func (e *HTTPEffector) postJSON(ctx context.Context, endpoint string, body any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrEffectorFailure, err)
		}
		payload = bytes.NewReader(raw)
	}
	return e.do(ctx, endpoint, "application/json", payload)
}

func (e *HTTPEffector) postReject(ctx context.Context, endpoint, reason string, evidence *models.Evidence) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("reason", reason); err != nil {
		return fmt.Errorf("%w: encode reason: %v", ErrEffectorFailure, err)
	}
	if evidence != nil {
		if evidence.Ref != "" {
			if err := w.WriteField("evidence_ref", evidence.Ref); err != nil {
				return fmt.Errorf("%w: encode evidence ref: %v", ErrEffectorFailure, err)
			}
		}
		if len(evidence.Content) > 0 {
			name := evidence.FileName
			if name == "" {
				name = "evidence"
			}
			part, err := w.CreateFormFile("evidence", name)
			if err != nil {
				return fmt.Errorf("%w: encode evidence: %v", ErrEffectorFailure, err)
			}
			if _, err := part.Write(evidence.Content); err != nil {
				return fmt.Errorf("%w: encode evidence: %v", ErrEffectorFailure, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: encode form: %v", ErrEffectorFailure, err)
	}
	return e.do(ctx, endpoint, w.FormDataContentType(), &buf)
}

// remoteResult is the optional envelope the backend answers with. A 2xx
// response that explicitly reports success=false is still a failure.
type remoteResult struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e *HTTPEffector) do(ctx context.Context, endpoint, contentType string, body io.Reader) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", ErrEffectorFailure, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrEffectorFailure, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEffectorFailure, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Warn("effector call rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s returned %d: %s", ErrEffectorFailure, req.URL.Path, resp.StatusCode, snippet(raw))
	}

	var result remoteResult
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &result) == nil && result.Success != nil && !*result.Success {
		msg := result.Message
		if msg == "" {
			msg = result.Error
		}
		return fmt.Errorf("%w: %s refused: %s", ErrEffectorFailure, req.URL.Path, msg)
	}
	return nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
