// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package axonius provides a client for the Axonius asset management REST
// API, centered on saved queries and the GUI query wizard.
//
// The library handles the REST plumbing (authentication headers, retries
// with exponential backoff, rate limiting, log redaction) and implements the
// saved query model: wizard parsing into query expressions and AQL filters,
// view merging (fields, sort, page size, query append/replace) and saved
// query lookup by name, uuid or tag.
//
// # Quick Start
//
//	client, err := axonius.NewClient(
//	    "https://axonius.example.com",
//	    axonius.APIKey(os.Getenv("AX_KEY")),
//	    axonius.APISecret(os.Getenv("AX_SECRET")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	schema, err := axonius.FetchFieldSchema(ctx, client, axonius.AssetDevices)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sqs, err := client.SavedQueries(axonius.AssetDevices, schema)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sq, err := sqs.Add(ctx, axonius.AddRequest{
//	    Name:       "Stale Windows hosts",
//	    WizardText: []string{"simple os.type equals Windows", "simple !last_seen last_days 30"},
//	})
//
// # Query Wizard
//
// Wizard lines have the form
//
//	[and|or] simple [!]<field> <operator> <value...>
//
// and compile to expressions plus an AQL filter:
//
//	res, err := axonius.NewWizard(schema).ParseText(axonius.WizardOptions{},
//	    "simple !last_seen last_days 1")
//	// res.Filter == `not ("specific_data.data.last_seen" >= date("NOW - 1d"))`
//
// # Updating Saved Queries
//
// Every update fetches the current record, applies the change and writes back
// only the updatable attributes:
//
//	sq, err = sqs.UpdateQuery(ctx, "Stale Windows hosts", axonius.QueryUpdate{
//	    WizardText: []string{"simple hostname contains dc"},
//	    Append:     true,
//	    AppendAnd:  true,
//	    AppendNot:  true,
//	})
//
// # Error Handling
//
// Transport failures are *APIError values. Domain failures have their own
// types (UnknownFieldError, SavedQueryNotFoundError, AlreadyExistsError, ...)
// that also match sentinels with errors.Is:
//
//	if errors.Is(err, axonius.ErrSavedQueryNotFound) {
//	    // ...
//	}
//
// # Thread Safety
//
// Client is safe for concurrent use. QueryView, SavedQuery and Expression
// values are not; callers serialize access to a shared instance.
//
// # References
//
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
package axonius
