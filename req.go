// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"net/url"
	"time"
)

// Req represents a request modifier target
//
// Operation parameters (method, path, body) are passed directly to methods;
// this struct only carries per-request options set via functional modifiers.
//
// Example:
//
//	res, err := client.Get(ctx, "/api/devices/views/saved",
//	    axonius.Query("page[limit]", "100"),
//	    axonius.Timeout(30*time.Second))
type Req struct {
	// Timeout is the request-specific timeout
	// Overrides client default timeout if set
	Timeout time.Duration

	// Query contains URL query parameters
	Query url.Values

	// Header contains additional request headers
	Header map[string]string
}
