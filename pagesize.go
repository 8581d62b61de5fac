// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"strconv"
)

// Page size constants for saved query views
const (
	// PageSize20 is the GUI default
	PageSize20 = 20

	PageSize50 = 50

	PageSize100 = 100

	// MaxPageSize is the largest page the REST API returns in one request
	MaxPageSize = 2000
)

// ValidPageSizes contains the page sizes the GUI accepts for a saved query view
var ValidPageSizes = []int{
	PageSize20,
	PageSize50,
	PageSize100,
}

// ValidatePageSize checks if size is one of ValidPageSizes
//
// Example:
//
//	if err := axonius.ValidatePageSize(50); err != nil {
//	    log.Fatal(err)
//	}
func ValidatePageSize(size int) error {
	for _, valid := range ValidPageSizes {
		if size == valid {
			return nil
		}
	}
	return &InvalidAttributeError{
		Attribute: "page size",
		Value:     size,
		Reason:    "not an allowed page size",
		Valid:     validPageSizeStrings(),
	}
}

func validPageSizeStrings() []string {
	out := make([]string, len(ValidPageSizes))
	for i, v := range ValidPageSizes {
		out[i] = strconv.Itoa(v)
	}
	return out
}
