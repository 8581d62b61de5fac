// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinels for errors.Is matching against the typed domain errors below.
var (
	ErrSavedQueryNotFound = errors.New("saved query not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidAttribute   = errors.New("invalid attribute")
	ErrUnknownField       = errors.New("unknown field")
	ErrInvalidExpression  = errors.New("invalid expression")
	ErrAttributeType      = errors.New("invalid attribute type")
)

// APIError represents a failed REST operation or a malformed combination of
// arguments passed to a saved query operation.
type APIError struct {
	// Operation name that failed
	Operation string

	// StatusCode is the HTTP status code, 0 if no response was received
	StatusCode int

	// Errors parsed from the response body
	Errors []ErrorModel

	// Human-readable error message
	Message string

	// InternalMsg contains detailed error information for internal logging
	InternalMsg string

	// Number of retry attempts made
	Retries int

	// IsTransient indicates if the error is transient and was retried
	IsTransient bool
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Retries > 0 {
		return fmt.Sprintf("axonius: %s failed: %s (retries: %d)", e.Operation, e.Message, e.Retries)
	}
	return fmt.Sprintf("axonius: %s failed: %s", e.Operation, e.Message)
}

// DetailedError returns the full error message including internal details.
//
// Use it only where disclosing server responses is acceptable, such as debug
// logs.
func (e *APIError) DetailedError() string {
	if e.InternalMsg == "" {
		return e.Error()
	}
	if e.Retries > 0 {
		return fmt.Sprintf("axonius: %s failed: %s (internal: %s, retries: %d)",
			e.Operation, e.Message, e.InternalMsg, e.Retries)
	}
	return fmt.Sprintf("axonius: %s failed: %s (internal: %s)",
		e.Operation, e.Message, e.InternalMsg)
}

// newAPIError builds an argument-level APIError that never touched the wire.
func newAPIError(op, format string, args ...any) *APIError {
	return &APIError{Operation: op, Message: fmt.Sprintf(format, args...)}
}

// ErrorModel is one entry of a JSON:API errors array
type ErrorModel struct {
	// Code is the HTTP status (or vendor error code) of this entry
	Code int

	// Title is the short summary
	Title string

	// Detail contains additional error information
	Detail string
}

// TransientError defines patterns for detecting transient errors that should be retried
type TransientError struct {
	// StatusCode is the HTTP status code to match
	StatusCode int
}

// TransientErrors lists the HTTP status codes that trigger an automatic retry.
//
// 500 is not retried: the vendor API returns it for validation failures in
// saved query payloads, which never succeed on a second attempt.
var TransientErrors = []TransientError{
	{StatusCode: http.StatusTooManyRequests},
	{StatusCode: http.StatusBadGateway},
	{StatusCode: http.StatusServiceUnavailable},
	{StatusCode: http.StatusGatewayTimeout},
}

// InvalidAttributeError reports a wrongly typed or empty value passed to a
// setter (field names, tags, sort field, page size).
type InvalidAttributeError struct {
	Attribute string
	Value     any
	Reason    string
	Valid     []string
}

func (e *InvalidAttributeError) Error() string {
	msg := fmt.Sprintf("invalid %s %v: %s", e.Attribute, e.Value, e.Reason)
	if len(e.Valid) > 0 {
		msg += fmt.Sprintf(" (valid values: %s)", strings.Join(e.Valid, ", "))
	}
	return msg
}

func (e *InvalidAttributeError) Is(target error) bool { return target == ErrInvalidAttribute }

// UnknownFieldError reports a field name that the schema cannot resolve.
type UnknownFieldError struct {
	Field       string
	AssetType   string
	Suggestions []string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q", e.Field)
	if e.AssetType != "" {
		msg = fmt.Sprintf("unknown %s field %q", e.AssetType, e.Field)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(", did you mean: %s", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// GuiQueryWizardWarning is a non-fatal advisory. Operations that produce one
// still complete and return it next to their result.
type GuiQueryWizardWarning struct {
	Message string
}

func (w *GuiQueryWizardWarning) Error() string { return "query wizard warning: " + w.Message }

// Warning is the non-fatal advisory type returned by query operations.
type Warning = *GuiQueryWizardWarning

// SavedQueryNotFoundError reports a lookup by name, uuid or tag with zero matches.
type SavedQueryNotFoundError struct {
	Selector string
	Known    []string
}

func (e *SavedQueryNotFoundError) Error() string {
	msg := fmt.Sprintf("saved query not found: %s", e.Selector)
	if len(e.Known) > 0 {
		msg += fmt.Sprintf(" (%d saved queries checked)", len(e.Known))
	}
	return msg
}

func (e *SavedQueryNotFoundError) Is(target error) bool { return target == ErrSavedQueryNotFound }

// SavedQueryTagsNotFoundError reports tag patterns that matched no saved query.
type SavedQueryTagsNotFoundError struct {
	Tags      []string
	ValidTags []string
}

func (e *SavedQueryTagsNotFoundError) Error() string {
	return fmt.Sprintf("no saved queries with tags %s (valid tags: %s)",
		strings.Join(e.Tags, ", "), strings.Join(e.ValidTags, ", "))
}

func (e *SavedQueryTagsNotFoundError) Is(target error) bool { return target == ErrSavedQueryNotFound }

// AlreadyExistsError reports a create, copy or rename that collides with an
// existing saved query name.
type AlreadyExistsError struct {
	Name string
	UUID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("saved query with name %q already exists (uuid: %s)", e.Name, e.UUID)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// ApiAttributeTypeError reports a value of an unsupported type.
type ApiAttributeTypeError struct { //nolint:revive // vendor taxonomy name
	Attribute string
	Value     any
	Expected  string
}

func (e *ApiAttributeTypeError) Error() string {
	return fmt.Sprintf("%s must be %s, got %T (%v)", e.Attribute, e.Expected, e.Value, e.Value)
}

func (e *ApiAttributeTypeError) Is(target error) bool { return target == ErrAttributeType }

// InvalidExpressionError reports a malformed query expression entry.
type InvalidExpressionError struct {
	Path   string
	Reason string
}

func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid expression at %s: %s", e.Path, e.Reason)
}

func (e *InvalidExpressionError) Is(target error) bool { return target == ErrInvalidExpression }
