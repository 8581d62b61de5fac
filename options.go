// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Client configuration options using the functional options pattern

// APIKey sets the API key sent in the api-key header
func APIKey(key string) func(*Client) {
	return func(c *Client) {
		c.apiKey = key
	}
}

// APISecret sets the API secret sent in the api-secret header
func APISecret(secret string) func(*Client) {
	return func(c *Client) {
		c.apiSecret = secret
	}
}

// VerifyCertificate enables or disables TLS certificate verification (default: true)
//
// WARNING: Disabling certificate verification makes the connection vulnerable
// to Man-in-the-Middle attacks. Only use this against lab instances.
//
// Example:
//
//	client, _ := axonius.NewClient("https://10.0.0.5",
//	    axonius.APIKey(key),
//	    axonius.APISecret(secret),
//	    axonius.VerifyCertificate(false))
func VerifyCertificate(verify bool) func(*Client) {
	return func(c *Client) {
		c.VerifyCertificate = verify
	}
}

// OperationTimeout sets the per-attempt timeout (default: 30s)
func OperationTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.OperationTimeout = duration
	}
}

// MaxRetries sets the maximum number of retry attempts for transient errors (default: 3)
func MaxRetries(retries int) func(*Client) {
	return func(c *Client) {
		c.MaxRetries = retries
	}
}

// BackoffMinDelay sets the minimum backoff delay (default: 1s)
func BackoffMinDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMinDelay = duration
	}
}

// BackoffMaxDelay sets the maximum backoff delay (default: 60s)
func BackoffMaxDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMaxDelay = duration
	}
}

// BackoffDelayFactor sets the backoff multiplication factor (default: 2.0)
func BackoffDelayFactor(factor float64) func(*Client) {
	return func(c *Client) {
		c.BackoffDelayFactor = factor
	}
}

// RateLimit caps outgoing requests at rps requests per second with the given
// burst. A zero rps disables limiting (default).
func RateLimit(rps float64, burst int) func(*Client) {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient replaces the underlying *http.Client. VerifyCertificate has
// no effect on a caller supplied client.
func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
			c.customHTTPClient = true
		}
	}
}

// UserAgent overrides the User-Agent header
func UserAgent(ua string) func(*Client) {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger configures a custom logger for the client
//
// By default, the client uses NoOpLogger which discards all log messages.
// Request and response bodies logged at Debug level are redacted
// (api_key, api_secret, password, secret, token, key).
//
// Example:
//
//	client, _ := axonius.NewClient("https://axonius.example.com",
//	    axonius.APIKey(key),
//	    axonius.APISecret(secret),
//	    axonius.WithLogger(axonius.NewSlogLogger(slog.Default())))
func WithLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrettyPrintLogs enables/disables JSON pretty printing in debug logs (default: false)
func WithPrettyPrintLogs(enabled bool) func(*Client) {
	return func(c *Client) {
		c.prettyPrintLogs = enabled
	}
}

// WithMetrics registers request counters and latency histograms on reg.
// Clients sharing a registry share the collectors. A registration conflict
// with foreign collectors of the same name makes NewClient fail.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	client, _ := axonius.NewClient(url, axonius.WithMetrics(reg))
func WithMetrics(reg prometheus.Registerer) func(*Client) {
	return func(c *Client) {
		if reg == nil {
			return
		}
		c.metrics, c.metricsErr = newClientMetrics(reg)
	}
}

// Request modifiers for individual operations

// Timeout returns a request modifier that sets a custom timeout for the operation.
//
// The timeout priority model is:
//  1. Request-specific timeout (this modifier) - highest priority
//  2. Context deadline (if already set) - medium priority
//  3. Client.OperationTimeout - fallback default
func Timeout(duration time.Duration) func(*Req) {
	return func(req *Req) {
		req.Timeout = duration
	}
}

// Query returns a request modifier that adds a URL query parameter.
func Query(key, value string) func(*Req) {
	return func(req *Req) {
		if req.Query == nil {
			req.Query = url.Values{}
		}
		req.Query.Add(key, value)
	}
}

// Header returns a request modifier that sets an additional request header.
func Header(key, value string) func(*Req) {
	return func(req *Req) {
		if req.Header == nil {
			req.Header = map[string]string{}
		}
		req.Header[key] = value
	}
}
