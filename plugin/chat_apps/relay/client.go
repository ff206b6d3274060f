package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// NoResult is shown when the service answers without a result field.
const NoResult = "No result"

// DefaultAnalyzeTimeout bounds one analysis call; a team run takes tens of seconds.
const DefaultAnalyzeTimeout = 120 * time.Second

// maxResponseBody caps how much of a service response is read.
const maxResponseBody = 4 << 20

// Analyzer submits a task to the Analysis Service.
type Analyzer interface {
	Analyze(ctx context.Context, task string) (string, error)
}

// ErrorKind classifies relay-to-service failures.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindUnavailable
	KindBadStatus
	KindBadResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindBadStatus:
		return "bad_status"
	case KindBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// AnalysisError is returned by AnalysisClient for every failed call.
type AnalysisError struct {
	Kind       ErrorKind
	StatusCode int    // set for KindBadStatus
	Detail     string // service-provided message for 4xx answers
	Err        error
}

func (e *AnalysisError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("analysis %s: %v", e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("analysis %s: HTTP %d %s", e.Kind, e.StatusCode, e.Detail)
	default:
		return "analysis " + e.Kind.String()
	}
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in chat. It never includes transport error text.
func (e *AnalysisError) UserMessage() string {
	switch e.Kind {
	case KindTimeout:
		return "the analysis took too long, please try again later"
	case KindUnavailable:
		return "the analysis service is unavailable"
	case KindBadStatus:
		if e.StatusCode >= 400 && e.StatusCode < 500 && e.Detail != "" {
			return fmt.Sprintf("request rejected (%s)", e.Detail)
		}
		return fmt.Sprintf("the analysis service failed (HTTP %d)", e.StatusCode)
	case KindBadResponse:
		return "the analysis service sent an unreadable response"
	default:
		return "unexpected error"
	}
}

// AnalysisClient calls POST /analyze on the Analysis Service.
type AnalysisClient struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewAnalysisClient creates a client for the analyze URL. Each call is
// bounded by timeout.
func NewAnalysisClient(url string, timeout time.Duration) *AnalysisClient {
	if timeout <= 0 {
		timeout = DefaultAnalyzeTimeout
	}
	return &AnalysisClient{
		url:     url,
		timeout: timeout,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type analyzeRequest struct {
	Task string `json:"task"`
}

type analyzeResponse struct {
	Result *string `json:"result"`
	Error  string  `json:"error"`
}

// Analyze posts the task and returns the result text.
func (c *AnalysisClient) Analyze(ctx context.Context, task string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{Task: task})
	if err != nil {
		return "", &AnalysisError{Kind: KindBadResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &AnalysisError{Kind: KindUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", classifyTransportError(err)
	}

	var decoded analyzeResponse
	decodeErr := json.Unmarshal(data, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AnalysisError{Kind: KindBadStatus, StatusCode: resp.StatusCode, Detail: decoded.Error}
	}
	if decodeErr != nil {
		return "", &AnalysisError{Kind: KindBadResponse, Err: decodeErr}
	}

	slog.Debug("relay: analysis received",
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if decoded.Result == nil {
		return NoResult, nil
	}
	return *decoded.Result, nil
}

func classifyTransportError(err error) *AnalysisError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &AnalysisError{Kind: KindTimeout, Err: err}
	}
	return &AnalysisError{Kind: KindUnavailable, Err: err}
}
