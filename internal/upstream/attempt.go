package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidJSON marks a 2xx response whose body is not JSON.
	ErrInvalidJSON = errors.New("response body is not valid JSON")
	// ErrUnexpectedStatus marks a response outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// AttemptError describes why a single transport attempt failed.
type AttemptError struct {
	Transport  string
	StatusCode int
	Err        error
}

func (e *AttemptError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Transport, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Transport, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the attempt ran out of time.
func (e *AttemptError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func (d *Dispatcher) try(parent context.Context, s step) (any, Attempt) {
	start := time.Now()
	raw, status, err := d.post(parent, s)
	a := Attempt{
		Transport: s.transport,
		Status:    status,
		Duration:  time.Since(start),
	}
	if err != nil {
		a.Err = &AttemptError{Transport: s.transport, StatusCode: status, Err: err}
		return nil, a
	}
	a.OK = true
	return raw, a
}

func (d *Dispatcher) post(parent context.Context, s step) (any, int, error) {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	body, err := json.Marshal(s.body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	d.dumpRequest(s.transport, req, body)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	d.dumpResponse(s.transport, resp, data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, ErrUnexpectedStatus
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return raw, resp.StatusCode, nil
}
