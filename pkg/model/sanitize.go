package model

import "strings"

// forbidden covers path separators plus the characters Windows rejects in
// file names. Archive entries must stay flat and portable.
const forbidden = `/\:*?"<>|`

// SanitizeEntityName converts an entity display name into a filesystem-safe
// archive entry stem. Forbidden path characters and control characters are
// replaced with '_'; leading/trailing dots and spaces are trimmed. An empty
// result falls back to "entity".
func SanitizeEntityName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(forbidden, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "entity"
	}
	return out
}
