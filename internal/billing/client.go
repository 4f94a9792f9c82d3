// Package billing talks to the hospital billing service on behalf of the
// discharge gate. Calls go through a circuit breaker so a struggling billing
// service fails discharges fast instead of tying up request handlers.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"inpatient-capacity-backend/internal/config"
	"inpatient-capacity-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker is open or half-open and saturated
var ErrUnavailable = errors.New("billing service unavailable")

// StateListener is notified on breaker transitions
type StateListener func(name string, from, to gobreaker.State)

// Client fetches pending-charge previews from the billing service
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a billing client guarded by a circuit breaker
func NewClient(cfg config.BillingConfig, listeners ...StateListener) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        "billing",
		MaxRequests: cfg.BreakerHalfOpen,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			for _, l := range listeners {
				l(name, from, to)
			}
		},
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

type previewEnvelope struct {
	Success bool                  `json:"success"`
	Data    models.ChargesPreview `json:"data"`
	Message string                `json:"message"`
}

// GetChargesPreview returns the unpaid charges recorded against an admission
func (c *Client) GetChargesPreview(ctx context.Context, admissionID uint) (*models.ChargesPreview, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchPreview(ctx, admissionID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return result.(*models.ChargesPreview), nil
}

// State exposes the breaker state for health reporting
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) fetchPreview(ctx context.Context, admissionID uint) (*models.ChargesPreview, error) {
	url := fmt.Sprintf("%s/admissions/%d/charges/preview", c.baseURL, admissionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build billing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().
		Uint("admission_id", admissionID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("billing charges preview")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("billing service returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope previewEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode billing response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("billing service rejected preview: %s", envelope.Message)
	}

	preview := envelope.Data
	preview.AdmissionID = admissionID
	if preview.Breakdown == nil {
		preview.Breakdown = []models.ChargeLine{}
	}
	return &preview, nil
}
