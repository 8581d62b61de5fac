// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Input validation constants
const (
	// MaxValueSize is the maximum size for a request body in bytes (10MB)
	MaxValueSize = 10 * 1024 * 1024

	// MaxResponseSize is the maximum size of a response body read into memory (64MB)
	MaxResponseSize = 64 * 1024 * 1024

	// MaxPathLength is the maximum length for an API path (1024 characters)
	MaxPathLength = 1024

	// maxDrain bounds how much of an unread body is discarded before closing
	maxDrain = 4 * 1024 * 1024
)

// validatePath validates an API path
//
// Checks:
//   - Path starts with "/"
//   - Path length does not exceed MaxPathLength
//   - Path does not contain malicious patterns (null bytes, path traversal)
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("path exceeds maximum length of %d characters: %s", MaxPathLength, truncatePath(path))
	}
	if path[0] != '/' {
		return fmt.Errorf("path must start with '/': %s", truncatePath(path))
	}
	return checkPathSecurity(path)
}

// checkPathSecurity checks a path for null bytes and "/../" traversal
func checkPathSecurity(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] == 0 {
			return fmt.Errorf("path contains null byte at position %d", i)
		}
	}

	if idx := strings.Index(path, "/../"); idx >= 0 {
		return fmt.Errorf("path contains suspicious traversal pattern '/../' at position %d", idx)
	}
	if strings.HasSuffix(path, "/..") {
		return fmt.Errorf("path ends with traversal pattern '/..'")
	}

	return nil
}

// validateBody checks body size and basic JSON syntax
func validateBody(body string) error {
	if len(body) > MaxValueSize {
		return fmt.Errorf("body size exceeds maximum of %d bytes (got %d bytes)", MaxValueSize, len(body))
	}
	if err := validateJSONSyntax(body); err != nil {
		return fmt.Errorf("invalid JSON syntax: %w", err)
	}
	return nil
}

// validateJSONSyntax rejects a non-empty body that is not valid JSON
func validateJSONSyntax(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if !gjson.Valid(value) {
		return fmt.Errorf("body is not valid JSON")
	}
	return nil
}

// isIdempotent reports whether a request with method may be re-sent after a
// transport failure without risking a duplicate write.
func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// truncatePath returns the first 100 characters of the path followed by "..." if longer.
func truncatePath(path string) string {
	if len(path) <= 100 {
		return path
	}
	return path[:100] + "..."
}

// Get performs a GET request
//
// Example:
//
//	res, err := client.Get(ctx, "/api/devices/views/saved",
//	    axonius.Query("page[limit]", "2000"))
func (c *Client) Get(ctx context.Context, path string, mods ...func(*Req)) (Res, error) {
	return c.Do(ctx, http.MethodGet, path, "", mods...)
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path, body string, mods ...func(*Req)) (Res, error) {
	return c.Do(ctx, http.MethodPost, path, body, mods...)
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path, body string, mods ...func(*Req)) (Res, error) {
	return c.Do(ctx, http.MethodPut, path, body, mods...)
}

// Patch performs a PATCH request with a JSON body
func (c *Client) Patch(ctx context.Context, path, body string, mods ...func(*Req)) (Res, error) {
	return c.Do(ctx, http.MethodPatch, path, body, mods...)
}

// Delete performs a DELETE request. The body may be empty.
func (c *Client) Delete(ctx context.Context, path, body string, mods ...func(*Req)) (Res, error) {
	return c.Do(ctx, http.MethodDelete, path, body, mods...)
}

// Do performs a REST request against the instance.
//
// TransientErrors are retried with exponential backoff up to MaxRetries.
// Transport errors are retried only for idempotent methods. Per-attempt timeouts follow the
// priority:
//  1. Request-specific timeout (via Timeout modifier)
//  2. Context deadline (if already set)
//  3. Client.OperationTimeout (fallback default)
//
// A non-2xx final response returns the Res together with an *APIError.
func (c *Client) Do(ctx context.Context, method, path, body string, mods ...func(*Req)) (Res, error) {
	op := strings.ToLower(method)

	if err := validatePath(path); err != nil {
		return Res{Errors: []ErrorModel{{Detail: err.Error()}}}, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateBody(body); err != nil {
		return Res{Errors: []ErrorModel{{Detail: err.Error()}}}, fmt.Errorf("%s: %w", op, err)
	}

	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}

	if err := checkContextCancellation(ctx); err != nil {
		return Res{Errors: []ErrorModel{{Detail: err.Error()}}}, err
	}

	c.mu.RLock()
	apiKey, apiSecret := c.apiKey, c.apiSecret
	c.mu.RUnlock()

	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + path
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}
	requestID := uuid.NewString()

	totalTimeout := c.calculateTotalTimeout()
	ctx, parentCancel := context.WithTimeout(ctx, totalTimeout)
	defer parentCancel()

	c.logger.Debug(ctx, "Axonius request",
		"method", method,
		"path", path,
		"request_id", requestID,
		"body", c.prepareJSONForLogging(body))

	start := time.Now()
	var (
		res     Res
		lastErr error
		retries int
	)

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := checkContextCancellation(ctx); err != nil {
			c.metrics.observe(method, 0, start)
			return Res{Errors: []ErrorModel{{Detail: err.Error()}}}, fmt.Errorf("%s: %w", op, err)
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				c.metrics.observe(method, 0, start)
				return Res{Errors: []ErrorModel{{Detail: err.Error()}}}, fmt.Errorf("%s: rate limiter: %w", op, err)
			}
		}

		attemptCtx, attemptCancel := c.createAttemptContext(ctx, req)
		res, lastErr = c.roundTrip(attemptCtx, method, target.String(), body, req, apiKey, apiSecret, requestID)
		attemptCancel()

		transient := false
		switch {
		case lastErr != nil:
			// Transport errors and attempt timeouts are retried for
			// idempotent methods unless the caller's context is done; a
			// timed out POST may already have been committed.
			transient = ctx.Err() == nil && isIdempotent(method)
		case !res.OK:
			transient = isTransientStatus(res.StatusCode)
		default:
			c.metrics.observe(method, res.StatusCode, start)
			c.logger.Debug(ctx, "Axonius response",
				"method", method,
				"path", path,
				"status", res.StatusCode,
				"request_id", requestID,
				"body", c.prepareJSONForLogging(res.Body))
			return res, nil
		}

		if !transient || attempt >= c.MaxRetries {
			break
		}

		retries++
		c.metrics.retry(method)
		backoff := c.Backoff(attempt)
		logErr := fmt.Sprintf("status %d", res.StatusCode)
		if lastErr != nil {
			logErr = lastErr.Error()
		}
		c.logger.Warn(ctx, "transient error, retrying",
			"method", method,
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.MaxRetries,
			"backoff", backoff,
			"error", logErr)

		select {
		case <-time.After(backoff):
			continue
		case <-ctx.Done():
			c.metrics.observe(method, 0, start)
			return Res{Errors: []ErrorModel{{Detail: ctx.Err().Error()}}},
				fmt.Errorf("%s: context canceled during backoff: %w", op, ctx.Err())
		}
	}

	if lastErr != nil {
		c.metrics.observe(method, 0, start)
		c.logger.Error(ctx, "Axonius request failed",
			"method", method,
			"path", path,
			"request_id", requestID,
			"error", lastErr.Error())
		return Res{Errors: []ErrorModel{{Detail: lastErr.Error()}}}, &APIError{
			Operation:   op + " " + path,
			Message:     "request failed",
			InternalMsg: lastErr.Error(),
			Retries:     retries,
			IsTransient: retries > 0,
		}
	}

	c.metrics.observe(method, res.StatusCode, start)
	apiErr := &APIError{
		Operation:   op + " " + path,
		StatusCode:  res.StatusCode,
		Errors:      res.Errors,
		Message:     statusMessage(res),
		InternalMsg: c.prepareJSONForLogging(res.Body),
		Retries:     retries,
		IsTransient: isTransientStatus(res.StatusCode),
	}
	c.logger.Error(ctx, "Axonius request failed",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"request_id", requestID,
		"error", apiErr.Message)
	return res, apiErr
}

// roundTrip performs a single HTTP exchange
func (c *Client) roundTrip(ctx context.Context, method, target, body string, req *Req, apiKey, apiSecret, requestID string) (Res, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Res{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", requestID)
	if apiKey != "" {
		httpReq.Header.Set("api-key", apiKey)
	}
	if apiSecret != "" {
		httpReq.Header.Set("api-secret", apiSecret)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return Res{}, err
	}
	defer drainResponse(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return Res{}, fmt.Errorf("reading response: %w", err)
	}

	res := Res{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		Header:     resp.Header,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if !res.OK {
		res.Errors = parseErrorModels(resp.StatusCode, res.Body)
	}
	return res, nil
}

// drainResponse discards a bounded amount of unread body so the connection
// can be reused, then closes it.
func drainResponse(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}

func statusMessage(res Res) string {
	msg := fmt.Sprintf("HTTP %d %s", res.StatusCode, http.StatusText(res.StatusCode))
	for _, e := range res.Errors {
		if e.Detail != "" {
			return msg + ": " + e.Detail
		}
		if e.Title != "" && e.Title != http.StatusText(res.StatusCode) {
			return msg + ": " + e.Title
		}
	}
	return msg
}

// calculateTotalTimeout calculates the total timeout budget for an operation
// including all retry attempts:
//
//	Total timeout = OperationTimeout + sum of backoff delays
func (c *Client) calculateTotalTimeout() time.Duration {
	totalBackoff := time.Duration(0)
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		totalBackoff += c.Backoff(attempt)
	}
	return c.OperationTimeout*time.Duration(c.MaxRetries+1) + totalBackoff
}

// checkContextCancellation is a non-blocking check of ctx.
func checkContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// createAttemptContext creates a new context for a single retry attempt with timeout
//
// Timeout priority model:
//  1. Request-specific timeout (req.Timeout > 0) - highest priority
//  2. Existing context deadline (ctx.Deadline() set) - medium priority
//  3. Client default timeout (c.OperationTimeout) - fallback
//
// Caller MUST call the returned cancel function after the attempt completes.
func (c *Client) createAttemptContext(ctx context.Context, req *Req) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		if req.Timeout < time.Second {
			c.logger.Warn(ctx, "request timeout is very short (may not complete)",
				"timeout", req.Timeout.String())
		} else if req.Timeout > 5*time.Minute {
			c.logger.Warn(ctx, "request timeout is very long (may delay error detection)",
				"timeout", req.Timeout.String())
		}
		return context.WithTimeout(ctx, req.Timeout)
	}

	if deadline, hasDeadline := ctx.Deadline(); hasDeadline && time.Until(deadline) < c.OperationTimeout {
		c.logger.Debug(ctx, "using existing context deadline",
			"remaining", time.Until(deadline).String(),
			"source", "context")
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.OperationTimeout)
}

// IsNotFound reports whether err is an APIError for HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
