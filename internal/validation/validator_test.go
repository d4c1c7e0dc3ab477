// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	first := GetValidator()
	second := GetValidator()

	if first == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if first != second {
		t.Error("GetValidator() returned different instances")
	}
}

type historyRequest struct {
	Limit  int    `validate:"min=1,max=500"`
	Offset int    `validate:"min=0"`
	Source string `validate:"omitempty,max=128"`
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name string
		req  historyRequest
	}{
		{
			name: "typical page",
			req:  historyRequest{Limit: 50, Offset: 0},
		},
		{
			name: "max limit",
			req:  historyRequest{Limit: 500, Offset: 1000},
		},
		{
			name: "with source filter",
			req:  historyRequest{Limit: 1, Offset: 0, Source: "spotify-main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.req); err != nil {
				t.Errorf("ValidateStruct() = %v, want nil", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		req       historyRequest
		wantField string
		wantTag   string
	}{
		{
			name:      "limit too small",
			req:       historyRequest{Limit: 0},
			wantField: "Limit",
			wantTag:   "min",
		},
		{
			name:      "limit too large",
			req:       historyRequest{Limit: 501},
			wantField: "Limit",
			wantTag:   "max",
		},
		{
			name:      "negative offset",
			req:       historyRequest{Limit: 10, Offset: -1},
			wantField: "Offset",
			wantTag:   "min",
		},
		{
			name:      "source name too long",
			req:       historyRequest{Limit: 10, Source: strings.Repeat("x", 129)},
			wantField: "Source",
			wantTag:   "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}

			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("Errors() returned %d errors, want 1: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	req := historyRequest{Limit: 0}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Limit") {
		t.Errorf("Message = %q, want mention of Limit", apiErr.Message)
	}
	if apiErr.Details["field"] != "Limit" {
		t.Errorf("Details.field = %v, want Limit", apiErr.Details["field"])
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	req := historyRequest{Limit: 0, Offset: -5}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}

	errs := err.Errors()
	if len(errs) != 2 {
		t.Fatalf("Errors() returned %d errors, want 2", len(errs))
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details.fields has type %T, want []map[string]interface{}", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("Details.fields has %d entries, want 2", len(fields))
	}
}

type notifierTarget struct {
	URL    string `validate:"required,url"`
	Format string `validate:"oneof=json console"`
}

func TestURLValidation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https url", url: "https://hooks.example.com/notify", wantErr: false},
		{name: "http url", url: "http://localhost:9078/hook", wantErr: false},
		{name: "empty", url: "", wantErr: true},
		{name: "not a url", url: "not a url at all", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := notifierTarget{URL: tt.url, Format: "json"}
			err := ValidateStruct(&req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOneofValidation(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{name: "json", format: "json", wantErr: false},
		{name: "console", format: "console", wantErr: false},
		{name: "unknown", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := notifierTarget{URL: "https://example.com", Format: tt.format}
			err := ValidateStruct(&req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.wantErr {
				msg := err.Error()
				if !strings.Contains(msg, "must be one of") {
					t.Errorf("error message = %q, want oneof translation", msg)
				}
			}
		})
	}
}

type timeframeRequest struct {
	After string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func TestDatetimeValidation(t *testing.T) {
	tests := []struct {
		name    string
		after   string
		wantErr bool
	}{
		{name: "empty skipped", after: "", wantErr: false},
		{name: "rfc3339", after: "2026-08-25T10:30:00Z", wantErr: false},
		{name: "with offset", after: "2026-08-25T10:30:00+02:00", wantErr: false},
		{name: "date only", after: "2026-08-25", wantErr: true},
		{name: "garbage", after: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := timeframeRequest{After: tt.after}
			err := ValidateStruct(&req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type outerRequest struct {
	Name  string       `validate:"required"`
	Inner innerRequest `validate:"required"`
}

type innerRequest struct {
	Count int `validate:"min=1"`
}

func TestNestedStructValidation(t *testing.T) {
	valid := outerRequest{Name: "x", Inner: innerRequest{Count: 2}}
	if err := ValidateStruct(&valid); err != nil {
		t.Errorf("ValidateStruct() on valid nested = %v", err)
	}

	invalid := outerRequest{Name: "x", Inner: innerRequest{Count: 0}}
	err := ValidateStruct(&invalid)
	if err == nil {
		t.Fatal("ValidateStruct() did not descend into nested struct")
	}
	if errs := err.Errors(); len(errs) != 1 || errs[0].Field() != "Count" {
		t.Errorf("nested validation errors = %+v, want single Count error", errs)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		wantSub string
	}{
		{
			name: "required",
			input: &struct {
				Name string `validate:"required"`
			}{},
			wantSub: "is required",
		},
		{
			name: "min on int",
			input: &struct {
				Limit int `validate:"min=5"`
			}{Limit: 1},
			wantSub: "must be at least 5",
		},
		{
			name: "max on string",
			input: &struct {
				Name string `validate:"max=3"`
			}{Name: "toolong"},
			wantSub: "must be at most 3 characters",
		},
		{
			name: "gte",
			input: &struct {
				Score float64 `validate:"gte=0"`
			}{Score: -1},
			wantSub: "greater than or equal to 0",
		},
		{
			name: "url",
			input: &struct {
				Target string `validate:"url"`
			}{Target: "nope"},
			wantSub: "must be a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}
