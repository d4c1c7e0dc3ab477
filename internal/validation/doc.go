// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
Package validation provides declarative struct validation for API requests
and configuration, built on go-playground/validator v10.

# Overview

A single validator instance is shared process-wide. The instance caches
struct reflection data, so validating the same request type repeatedly is
cheap. Validation failures translate into the API's VALIDATION_ERROR
response shape with per-field details.

# Usage

Tag request structs with validate rules and call ValidateStruct before
acting on the request:

	type RetryRequest struct {
	    Client string `validate:"required,max=128"`
	    ID     string `validate:"required,uuid4"`
	}

	if err := validation.ValidateStruct(&req); err != nil {
	    apiErr := err.ToAPIError()
	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	    return
	}

Configuration loading reuses the same entry point; see internal/config.

# Error Translation

Validator tags translate to human-readable messages:

  - required: "Field is required"
  - oneof=json console: "Field must be one of: json console"
  - min=1 on int: "Field must be at least 1"
  - max=64 on string: "Field must be at most 64 characters"
  - url: "Field must be a valid URL"

Multiple failures on one struct are joined into a single message and
itemized under Details.fields.

# Thread Safety

GetValidator and ValidateStruct are safe for concurrent use; the singleton
is initialized exactly once.
*/
package validation
