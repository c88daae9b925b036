package custodyhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"

	"github.com/sony/gobreaker"
)

const transferPath = "/internal/custody/v1/transfers"

// ErrGatewayUnavailable is returned while the breaker is open or when the
// gateway answers with an unexpected status.
var ErrGatewayUnavailable = errors.New("custody gateway unavailable")

type Config struct {
	BaseURL          string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
	ServiceToken     string
}

// Client is a FundsTransfer backed by a remote custody gateway. Rejections
// mapped to domain errors are business outcomes and never trip the breaker.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

type transferRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "custody-gateway",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domainerrors.KindOf(err) != ""
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("custody gateway breaker state changed",
				"event", "insurance_custody_breaker_state_changed",
				"module", "finance-core/mutual-insurance",
				"layer", "adapter",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.ServiceToken),
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

func (c *Client) Transfer(ctx context.Context, req ports.TransferRequest) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return err
}

// State exposes the breaker state for health reporting.
func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) post(ctx context.Context, req ports.TransferRequest) error {
	body, err := json.Marshal(transferRequest{
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transferPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("custody gateway request failed",
			"event", "insurance_custody_request_failed",
			"module", "finance-core/mutual-insurance",
			"layer", "adapter",
			"reference", req.Reference,
			"error", err.Error(),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var payload errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity && payload.Code == "insufficient_funds":
		return domainerrors.ErrInsufficientFunds
	case resp.StatusCode == http.StatusUnprocessableEntity && payload.Code == "balance_overflow":
		return domainerrors.ErrAmountOverflow
	case resp.StatusCode == http.StatusConflict && payload.Code == "reference_conflict":
		return domainerrors.ErrTransferConflict
	case resp.StatusCode == http.StatusBadRequest:
		return domainerrors.ErrInvalidInput
	}
	return fmt.Errorf("%w: status %d code %q", ErrGatewayUnavailable, resp.StatusCode, payload.Code)
}

var _ ports.FundsTransfer = (*Client)(nil)
