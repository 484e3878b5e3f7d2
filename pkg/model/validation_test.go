package model

import (
	"strings"
	"testing"
)

func TestDomainWhitelistAllows(t *testing.T) {
	tests := []struct {
		domain    string
		whitelist DomainWhitelist
		expected  bool
	}{
		{"example.com", DomainWhitelist{"example.com"}, true},
		{"forbidden.com", DomainWhitelist{"example.com"}, false},
		{"Example.COM", DomainWhitelist{"example.com"}, true},
		{"sub.example.com", DomainWhitelist{"*.example.com"}, true},
		{"dev.sub.example.com", DomainWhitelist{"*.example.com"}, true},
		{"example.com", DomainWhitelist{"*.example.com"}, true},
		{"notexample.com", DomainWhitelist{"*.example.com"}, false},
		{"anything.com", DomainWhitelist{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			if got := tt.whitelist.Allows(tt.domain); got != tt.expected {
				t.Errorf("Allows(%q) with %v = %v, want %v", tt.domain, tt.whitelist, got, tt.expected)
			}
		})
	}
}

func TestValidateRecipients(t *testing.T) {
	tests := []struct {
		name          string
		recipients    Recipients
		whitelist     DomainWhitelist
		expectError   bool
		errorContains string
	}{
		{
			name:       "empty whitelist allows all",
			recipients: Recipients{To: []string{"a@example.com", "b@other.org"}},
			whitelist:  DomainWhitelist{},
		},
		{
			name:       "all fields checked and allowed",
			recipients: Recipients{To: []string{"a@example.com"}, CC: []string{"c@example.com"}, BCC: []string{"d@example.com"}},
			whitelist:  DomainWhitelist{"example.com"},
		},
		{
			name:          "cc recipient rejected",
			recipients:    Recipients{To: []string{"a@example.com"}, CC: []string{"c@forbidden.com"}},
			whitelist:     DomainWhitelist{"example.com"},
			expectError:   true,
			errorContains: "forbidden.com",
		},
		{
			name:          "malformed address rejected",
			recipients:    Recipients{To: []string{"not-an-email"}},
			whitelist:     DomainWhitelist{"example.com"},
			expectError:   true,
			errorContains: "invalid email",
		},
		{
			name:       "blank addresses ignored",
			recipients: Recipients{To: []string{"", "a@example.com"}},
			whitelist:  DomainWhitelist{"example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecipients(tt.recipients, tt.whitelist)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error but got none")
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateCronExpression(t *testing.T) {
	tests := []struct {
		name        string
		expr        string
		expectError bool
	}{
		{"daily midnight", "0 0 * * *", false},
		{"weekly monday", "0 0 * * 1", false},
		{"every 15 minutes", "*/15 * * * *", false},
		{"empty", "", true},
		{"too few fields", "0 0 *", true},
		{"garbage", "not a cron", true},
		{"minute out of range", "60 0 * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronExpression(tt.expr)
			if tt.expectError && err == nil {
				t.Errorf("expected error for %q", tt.expr)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.expr, err)
			}
		})
	}
}

func TestValidateEntityIDs(t *testing.T) {
	if err := ValidateEntityIDs([]string{"a", "b"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateEntityIDs(nil); err != nil {
		t.Errorf("nil slice should be valid: %v", err)
	}
	if err := ValidateEntityIDs([]string{"a", "  "}); err == nil {
		t.Error("expected error for blank id")
	}
}

func TestBatchManifestCounts(t *testing.T) {
	m := &BatchManifest{Items: []ExportItem{
		SuccessItem("a", []byte{1}),
		FailedItem("b", ErrorKindCapture, nil),
		SuccessItem("c", []byte{2, 3}),
	}}
	if m.Succeeded() != 2 {
		t.Errorf("Succeeded() = %d, want 2", m.Succeeded())
	}
	if m.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", m.Failed())
	}
	ids := m.FailedIDs()
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("FailedIDs() = %v, want [b]", ids)
	}
}
