package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Messages shown to the user for failures that carry no service detail
const (
	MsgConnectivity    = "Could not reach the transcription service. Check your connection and try again."
	MsgInvalidResponse = "The transcription service returned a response that could not be read."
)

// Client posts recorded audio to the MoM service
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	activeRequests  int
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	BaseURL   string
	APIKey    string // Optional bearer token
	Timeout   time.Duration
	UserAgent string
}

// Part is one file field of a multipart upload
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Upload is a single multipart request against one endpoint
type Upload struct {
	Path  string
	Query url.Values
	Parts []Part
}

// Size returns the total payload size of all parts
func (u Upload) Size() int {
	n := 0
	for _, p := range u.Parts {
		n += len(p.Data)
	}
	return n
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}

	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	if config.UserAgent == "" {
		config.UserAgent = "momrec"
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Transcribe uploads a recording and decodes the meeting record. There is
// no retry: every failure is returned to the caller as it happened.
func (c *Client) Transcribe(ctx context.Context, upload Upload) (*Result, error) {
	body, err := c.post(ctx, upload)
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		c.recordOutcome(false)
		return nil, &DecodeError{Err: err, Body: body}
	}

	c.recordOutcome(true)
	return &result, nil
}

// Diagnose uploads a single chunk to the diagnostic endpoint
func (c *Client) Diagnose(ctx context.Context, upload Upload) (*DiagnosticResult, error) {
	body, err := c.post(ctx, upload)
	if err != nil {
		return nil, err
	}

	var result DiagnosticResult
	if err := json.Unmarshal(body, &result); err != nil {
		c.recordOutcome(false)
		return nil, &DecodeError{Err: err, Body: body}
	}

	c.recordOutcome(true)
	return &result, nil
}

// post performs one request and returns the body of a 2xx response
func (c *Client) post(ctx context.Context, upload Upload) ([]byte, error) {
	startTime := time.Now()
	c.beginRequest()
	defer c.endRequest(startTime)

	endpoint, err := c.endpoint(upload)
	if err != nil {
		c.recordOutcome(false)
		return nil, err
	}

	body, contentType, err := createMultipartRequest(upload.Parts)
	if err != nil {
		c.recordOutcome(false)
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		c.recordOutcome(false)
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	requestID := uuid.New().String()
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.logger.Debug("Sending transcription request",
		slog.String("request_id", requestID),
		slog.String("endpoint", endpoint),
		slog.Int("parts", len(upload.Parts)),
		slog.Int("bytes", upload.Size()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordOutcome(false)
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordOutcome(false)
		return nil, &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordOutcome(false)
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    detailMessage(resp.StatusCode, respBody),
			Body:       respBody,
		}
		c.logger.Warn("Transcription service returned an error",
			slog.String("request_id", requestID),
			slog.Int("status", resp.StatusCode),
			slog.String("detail", httpErr.Message))
		return nil, httpErr
	}

	c.logger.Debug("Transcription response received",
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(startTime)))

	return respBody, nil
}

func (c *Client) endpoint(upload Upload) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(upload.Path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", upload.Path, err)
	}
	if len(upload.Query) > 0 {
		base.RawQuery = upload.Query.Encode()
	}
	return base.String(), nil
}

// createMultipartRequest creates a multipart/form-data request body
func createMultipartRequest(parts []Part) (io.Reader, string, error) {
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("upload has no parts")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(p.Field), escapeQuotes(p.Filename)))
		contentType := p.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		fileWriter, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", p.Filename, err)
		}

		if _, err := fileWriter.Write(p.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write audio data: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// ErrorMessage returns the text shown to the user for a client error
func ErrorMessage(err error) string {
	var httpErr *HTTPError
	var netErr *NetworkError
	var decodeErr *DecodeError

	switch {
	case errors.As(err, &httpErr):
		return httpErr.Message
	case errors.As(err, &netErr):
		return MsgConnectivity
	case errors.As(err, &decodeErr):
		return MsgInvalidResponse
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// Statistics methods
func (c *Client) beginRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.activeRequests++
}

func (c *Client) endRequest(startTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeRequests--

	// Simple moving average
	responseTime := time.Since(startTime)
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

func (c *Client) recordOutcome(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.successRequests++
	} else {
		c.failedRequests++
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  c.activeRequests,
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
