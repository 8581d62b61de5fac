// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default client configuration values
const (
	DefaultMaxRetries         = 3
	DefaultBackoffMinDelay    = 1 * time.Second
	DefaultBackoffMaxDelay    = 60 * time.Second
	DefaultBackoffDelayFactor = 2
	DefaultOperationTimeout   = 30 * time.Second
	DefaultVerifyCertificate  = true
	DefaultPrettyPrintLogs    = false
	DefaultUserAgent          = "go-axonius"
)

// Security limits for JSON processing and logging
const (
	MaxJSONSizeForLogging = 1 * 1024 * 1024 // 1MB limit to prevent ReDoS attacks
	MaxSensitiveFields    = 1000            // Max redaction operations to prevent DoS
)

// Logging message constants
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// aboutPath is the lightweight endpoint used by Ping.
const aboutPath = "/api/settings/meta/about"

type redactionRule struct {
	field   string
	pattern *regexp.Regexp
}

func newRedactionRule(field string) redactionRule {
	return redactionRule{
		field:   field,
		pattern: regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"[^"]*"`),
	}
}

// defaultRedactionRules lists the JSON fields whose string values are redacted in logs
var defaultRedactionRules = []redactionRule{
	newRedactionRule("api_key"),
	newRedactionRule("api_secret"),
	newRedactionRule("password"),
	newRedactionRule("secret"),
	newRedactionRule("token"),
	newRedactionRule("key"),
}

// Client is a REST client for the Axonius API. It is safe for concurrent use.
type Client struct {
	// RWMutex to synchronize access to mutable state
	mu sync.RWMutex

	// BaseURL is the scheme://host[:port] of the instance
	BaseURL string
	baseURL *url.URL

	apiKey    string // unexported for security
	apiSecret string // unexported for security

	// HTTPClient performs the requests
	HTTPClient       *http.Client
	customHTTPClient bool

	VerifyCertificate bool

	// Timeout configuration
	OperationTimeout time.Duration

	// Retry configuration
	MaxRetries         int
	BackoffMinDelay    time.Duration
	BackoffMaxDelay    time.Duration
	BackoffDelayFactor float64

	limiter   *rate.Limiter
	userAgent string

	// version is the product version reported by Ping
	version string

	// Logging configuration
	logger          Logger
	prettyPrintLogs bool
	redactionRules  []redactionRule

	metrics    *clientMetrics
	metricsErr error
}

// NewClient creates a new client for the instance at baseURL.
//
// No request is made. Use Ping() to verify connectivity and credentials.
//
// Example:
//
//	client, err := axonius.NewClient(
//	    "https://axonius.example.com",
//	    axonius.APIKey(os.Getenv("AX_KEY")),
//	    axonius.APISecret(os.Getenv("AX_SECRET")),
//	    axonius.MaxRetries(5),
//	)
//	if err != nil {
//	    log.Fatal(err) // Configuration error
//	}
//	if err := client.Ping(ctx); err != nil {
//	    log.Fatal(err) // Connection or credential error
//	}
func NewClient(baseURL string, opts ...func(*Client)) (*Client, error) {
	client := &Client{
		BaseURL:            strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		VerifyCertificate:  DefaultVerifyCertificate,
		OperationTimeout:   DefaultOperationTimeout,
		MaxRetries:         DefaultMaxRetries,
		BackoffMinDelay:    DefaultBackoffMinDelay,
		BackoffMaxDelay:    DefaultBackoffMaxDelay,
		BackoffDelayFactor: DefaultBackoffDelayFactor,
		userAgent:          DefaultUserAgent,
		logger:             &NoOpLogger{},
		prettyPrintLogs:    DefaultPrettyPrintLogs,
		redactionRules:     defaultRedactionRules,
	}

	for _, opt := range opts {
		opt(client)
	}

	if err := client.validateConfig(); err != nil {
		return nil, err
	}

	if client.HTTPClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: !client.VerifyCertificate, //nolint:gosec // opt-in via VerifyCertificate(false)
			MinVersion:         tls.VersionTLS12,
		}
		client.HTTPClient = &http.Client{Transport: transport}
	}

	client.logger.Info(context.Background(), "Axonius client created",
		"url", client.BaseURL,
		"max_retries", client.MaxRetries)

	return client, nil
}

// Close releases idle connections. The client stays usable.
func (c *Client) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}

// HasCredentials returns true if both API key and secret are configured
func (c *Client) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != "" && c.apiSecret != ""
}

// Version returns the product version recorded by the last successful Ping,
// or an empty string.
func (c *Client) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Ping verifies connectivity and credentials by fetching the instance's
// about page and records the reported product version.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.Get(ctx, aboutPath)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	version := res.GetValue("data.attributes.Version").String()
	if version == "" {
		version = res.GetValue("Version").String()
	}

	c.mu.Lock()
	c.version = version
	c.mu.Unlock()

	c.logger.Debug(ctx, "Axonius instance reachable",
		"url", c.BaseURL,
		"version", version)
	return nil
}

// Backoff calculates the backoff delay for retry attempt using exponential backoff with jitter
//
// The formula is: delay = min(minDelay * (factor ^ attempt) + jitter, maxDelay)
// where jitter is a cryptographically secure random value in [0, delay * 0.1].
// If crypto/rand fails, timestamp-based jitter is used instead.
func (c *Client) Backoff(attempt int) time.Duration {
	delay := float64(c.BackoffMinDelay) * math.Pow(c.BackoffDelayFactor, float64(attempt))

	if math.IsInf(delay, 1) || delay > float64(c.BackoffMaxDelay) {
		delay = float64(c.BackoffMaxDelay)
	}

	baseDelay := delay

	jitterMax := int64(delay * 0.1)
	var jitterVal int64
	if jitterMax > 0 {
		var jitterBytes [8]byte
		if _, err := rand.Read(jitterBytes[:]); err == nil {
			//nolint:gosec // G115: masked to a positive int64
			jitterVal = int64(binary.BigEndian.Uint64(jitterBytes[:]) & 0x7FFFFFFFFFFFFFFF)
			jitterVal = jitterVal % jitterMax
			delay += float64(jitterVal)
		} else {
			timestamp := time.Now().UnixNano()
			jitterVal = (timestamp%jitterMax + jitterMax) % jitterMax
			delay += float64(jitterVal)

			c.logger.Warn(context.Background(), "crypto/rand failed, using timestamp-based jitter",
				"error", err.Error(),
				"attempt", attempt,
				"jitter_ms", time.Duration(jitterVal).Milliseconds())
		}
	}

	finalDelay := time.Duration(delay)

	c.logger.Debug(context.Background(), "Backoff calculated",
		"attempt", attempt,
		"base_delay_ms", time.Duration(baseDelay).Milliseconds(),
		"jitter_ms", time.Duration(jitterVal).Milliseconds(),
		"final_delay_ms", finalDelay.Milliseconds())

	return finalDelay
}

// prepareJSONForLogging redacts sensitive data and formats JSON for logging
//
//  1. Rejects documents larger than MaxJSONSizeForLogging
//  2. Rejects documents with more than MaxSensitiveFields sensitive keys
//  3. Redacts sensitive values
//  4. Pretty-prints if prettyPrintLogs is enabled
func (c *Client) prepareJSONForLogging(jsonStr string) string {
	if len(jsonStr) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}

	sensitiveCount := 0
	for _, rule := range c.redactionRules {
		sensitiveCount += strings.Count(jsonStr, `"`+rule.field+`"`)
	}

	if sensitiveCount > MaxSensitiveFields {
		c.logger.Warn(context.Background(), "Too many sensitive fields detected",
			"count", sensitiveCount,
			"max", MaxSensitiveFields)
		return JSONTooManySensitiveMsg
	}

	redacted := c.redactSensitiveData(jsonStr)

	if c.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			return buf.String()
		} else {
			c.logger.Debug(context.Background(), "JSON pretty-print failed, using raw redacted output",
				"error", err.Error())
		}
	}

	return redacted
}

// redactSensitiveData replaces the string values of sensitive JSON fields
// with [REDACTED]. Whitespace around the colon is tolerated.
func (c *Client) redactSensitiveData(jsonStr string) string {
	result := jsonStr
	for _, rule := range c.redactionRules {
		result = rule.pattern.ReplaceAllString(result, `"`+rule.field+`":"[REDACTED]"`)
	}
	return result
}

// isTransientStatus reports whether an HTTP status matches TransientErrors
func isTransientStatus(status int) bool {
	for _, pattern := range TransientErrors {
		if pattern.StatusCode == status {
			return true
		}
	}
	return false
}

// validateConfig validates client configuration
//
// Validates:
//   - Base URL is an absolute http(s) URL
//   - Positive OperationTimeout
//   - MaxRetries >= 0, BackoffMinDelay > 0, BackoffMaxDelay > BackoffMinDelay
//   - BackoffDelayFactor >= 1.0
//   - Metrics registered without conflict
func (c *Client) validateConfig() error {
	if c.metricsErr != nil {
		return c.metricsErr
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL: missing host")
	}
	c.baseURL = u

	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got: %v", c.OperationTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got: %d", c.MaxRetries)
	}
	if c.BackoffMinDelay <= 0 {
		return fmt.Errorf("backoff min delay must be positive, got: %v", c.BackoffMinDelay)
	}
	if c.BackoffMaxDelay <= c.BackoffMinDelay {
		return fmt.Errorf("backoff max delay (%v) must be greater than min delay (%v)",
			c.BackoffMaxDelay, c.BackoffMinDelay)
	}
	if c.BackoffDelayFactor < 1.0 {
		return fmt.Errorf("backoff delay factor must be >= 1.0, got: %f", c.BackoffDelayFactor)
	}

	if !c.VerifyCertificate && !c.customHTTPClient {
		c.logger.Warn(context.Background(), "TLS certificate verification disabled",
			"url", c.BaseURL,
			"security_risk", "Man-in-the-Middle attacks possible",
			"recommendation", "Use only against lab instances")
	}

	if u.Scheme == "http" {
		c.logger.Warn(context.Background(), "Plain HTTP configured - connection is not encrypted",
			"url", c.BaseURL,
			"security_risk", "API credentials transmitted in clear text")
	}

	if c.apiKey == "" || c.apiSecret == "" {
		c.logger.Warn(context.Background(), "No API credentials configured",
			"url", c.BaseURL,
			"message", "instance will reject requests")
	}

	return nil
}
