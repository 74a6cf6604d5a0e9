package loanserv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/finverge/fieldops/internal/core/domain"
	"github.com/finverge/fieldops/internal/infrastructure/resilience"
)

// Sink delivers finished submission records to the loan-servicing backend.
// It is a write-once target: the backend deduplicates on submission id.
type Sink struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey string, executor *resilience.Executor) *Sink {
	return &Sink{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (s *Sink) DeliverSubmission(ctx context.Context, rec *domain.SubmissionRecord) error {
	call := func(callCtx context.Context) error {
		return s.postJSON(callCtx, "/v1/field-submissions", rec)
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "loanserv.deliver", call, classifyDeliveryError)
	} else {
		err = call(ctx)
	}
	if err != nil && classifyDeliveryError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "deliver submission", err)
	}
	return err
}

func (s *Sink) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("loanserv request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError(resp)
	}
	return nil
}

type statusError struct {
	status int
	body   string
}

func newStatusError(resp *http.Response) *statusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("loanserv status %d", e.status)
	}
	return fmt.Sprintf("loanserv status %d: %s", e.status, e.body)
}

func classifyDeliveryError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var se *statusError
	if errors.As(err, &se) {
		retryable := se.status == http.StatusTooManyRequests || se.status >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	// Connection-level failures from the transport arrive as url.Error values
	// that do not always implement net.Error.
	if strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "EOF") {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
