// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid identifiers
		{"simple", "pii-scan", false},
		{"single char", "a", false},
		{"with digits", "rule42", false},
		{"dotted", "warehouse.orders", false},
		{"underscored", "gdpr_article_17", false},
		{"uuid style", "550e8400-e29b-41d4-a716-446655440000", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid identifiers - injection attempts
		{"empty", "", true},
		{"flux injection", `r1") |> drop()`, true},
		{"sql injection", "r1'; DROP TABLE--", true},
		{"newline injection", "r1\n|> drop()", true},
		{"too long", strings.Repeat("a", 65), true},
		{"special chars", "rule@#$", true},
		{"spaces", "rule 1", true},
		{"starts with dot", ".rule", true},
		{"starts with hyphen", "-rule", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr bool
	}{
		{"all valid", []string{"pii-scan", "warehouse.orders", "rule42"}, false},
		{"one invalid", []string{"pii-scan", "bad!", "rule42"}, true},
		{"all invalid", []string{"bad!", " rule"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIDs(tt.ids)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIDs(%v) error = %v, wantErr %v", tt.ids, err, tt.wantErr)
			}
		})
	}
}
