package model

import (
	"fmt"
	"strings"

	"github.com/gorhill/cronexpr"
)

// DomainWhitelist restricts which email domains may receive archives.
// Entries may be exact domains or wildcard patterns ("*.example.com").
// An empty whitelist allows all domains.
type DomainWhitelist []string

// Allows reports whether the given domain matches the whitelist.
func (w DomainWhitelist) Allows(domain string) bool {
	if len(w) == 0 {
		return true
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, entry := range w {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if domain == entry {
			return true
		}
		if base, ok := strings.CutPrefix(entry, "*."); ok {
			if domain == base || strings.HasSuffix(domain, "."+base) {
				return true
			}
		}
	}
	return false
}

// ValidateRecipients checks every recipient address against the whitelist.
func ValidateRecipients(r Recipients, whitelist DomainWhitelist) error {
	if len(whitelist) == 0 {
		return nil
	}
	for _, email := range r.All() {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		at := strings.Split(email, "@")
		if len(at) != 2 || at[1] == "" {
			return fmt.Errorf("invalid email address format: %s", email)
		}
		if !whitelist.Allows(at[1]) {
			return fmt.Errorf("email domain '%s' is not allowed (email: %s)", strings.ToLower(at[1]), email)
		}
	}
	return nil
}

// ValidateCronExpression validates a cron expression format.
func ValidateCronExpression(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := cronexpr.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression '%s': %v", expr, err)
	}
	return nil
}

// ValidateEntityIDs checks that the batch input contains no blank ids.
// Domain-level validation (e.g. required identifying fields on the entity
// itself) is the caller's responsibility.
func ValidateEntityIDs(ids []string) error {
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("entity id at index %d is empty", i)
		}
	}
	return nil
}
