// Package crm talks to the downstream CRM that holds the authoritative copy
// of the tender pipeline board.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tenderlens/tenderlens/pkg/models"
)

// Sentinel errors for CRM client failures.
var (
	ErrCRMUnreachable = errors.New("crm unreachable")
	ErrCRMRejected    = errors.New("crm rejected move")
	ErrCRMTimeout     = errors.New("crm request timeout")
)

// Authority confirms pipeline moves with the system of record. A non-nil
// error means the move did not take effect remotely and the caller must
// revert its local copy.
type Authority interface {
	ConfirmMove(ctx context.Context, tenderID uuid.UUID, from, to models.Stage) error
	Ready(ctx context.Context) error
}

// HTTPClient implements Authority against the CRM's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new CRM HTTP client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type moveRequest struct {
	TenderID string `json:"tender_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type moveResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

func (c *HTTPClient) ConfirmMove(ctx context.Context, tenderID uuid.UUID, from, to models.Stage) error {
	body, err := json.Marshal(moveRequest{
		TenderID: tenderID.String(),
		From:     string(from),
		To:       string(to),
	})
	if err != nil {
		return fmt.Errorf("encoding move request: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/pipeline/moves", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status %d", ErrCRMRejected, resp.StatusCode)
	}

	var moveResp moveResponse
	if err := json.NewDecoder(resp.Body).Decode(&moveResp); err != nil {
		return fmt.Errorf("decoding crm response: %w", err)
	}
	if !moveResp.Accepted {
		return fmt.Errorf("%w: %s", ErrCRMRejected, moveResp.Message)
	}

	return nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/health", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCRMUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: crm not ready (status %d)", ErrCRMUnreachable, resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCRMTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrCRMTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrCRMUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrCRMUnreachable, err)
}
