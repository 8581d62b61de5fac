// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"net/http"

	"github.com/tidwall/gjson"
)

// Res represents a REST response
type Res struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Body is the raw response body
	Body string

	// Header contains the response headers
	Header http.Header

	// OK indicates if the operation succeeded (2xx status)
	OK bool

	// Errors contains any error information parsed from the body
	Errors []ErrorModel
}

// GetValue retrieves a value from the response body using a gjson path.
//
// Example paths:
//   - "data.#" - number of resources in a JSON:API list
//   - "data.0.attributes.name" - name of the first resource
//   - "meta.page.totalResources" - server side count
//
// Example:
//
//	res, err := client.Get(ctx, "/api/devices/views/saved")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, sq := range res.GetValue("data").Array() {
//	    fmt.Println(sq.Get("attributes.name").String())
//	}
func (r Res) GetValue(path string) gjson.Result {
	if r.Body == "" {
		return gjson.Result{}
	}
	return gjson.Get(r.Body, path)
}

// JSON returns the response body, or an empty string if it is not valid JSON.
func (r Res) JSON() string {
	if !gjson.Valid(r.Body) {
		return ""
	}
	return r.Body
}

// parseErrorModels extracts JSON:API errors. The vendor API uses either an
// "errors" array or a "meta.detail"/"message" pair depending on the endpoint.
func parseErrorModels(status int, body string) []ErrorModel {
	if !gjson.Valid(body) {
		if body == "" {
			return []ErrorModel{{Code: status, Title: http.StatusText(status)}}
		}
		return []ErrorModel{{Code: status, Title: http.StatusText(status), Detail: truncateDetail(body)}}
	}

	var models []ErrorModel
	for _, e := range gjson.Get(body, "errors").Array() {
		code := int(e.Get("status").Int())
		if code == 0 {
			code = status
		}
		models = append(models, ErrorModel{
			Code:   code,
			Title:  e.Get("title").String(),
			Detail: e.Get("detail").String(),
		})
	}
	if len(models) > 0 {
		return models
	}

	detail := gjson.Get(body, "meta.detail").String()
	if detail == "" {
		detail = gjson.Get(body, "message").String()
	}
	return []ErrorModel{{Code: status, Title: http.StatusText(status), Detail: detail}}
}

func truncateDetail(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
