package service

import (
	"strings"
	"unicode"
)

const sessionKeyFieldMax = 60

// SessionKey derives the canonical record id for one logical unit of
// behavior-plan work. The same tuple always yields the same id, so repeated
// saves, reloads and retried requests collide onto one record instead of
// duplicating it. Collisions between tuples that only differ beyond the
// per-field truncation point are accepted; do not add disambiguation here
// without revisiting the repeat-save idempotence teachers rely on.
func SessionKey(recordType, schoolID, teacherID, childName, targetBehavior string) string {
	parts := []string{
		normalizeKeyField(recordType, "session"),
		normalizeKeyField(schoolID, "noschool"),
		normalizeKeyField(teacherID, "noteacher"),
		normalizeKeyField(childName, "nochild"),
		normalizeKeyField(targetBehavior, "notarget"),
	}
	return strings.Join(parts, "_")
}

// normalizeKeyField lowercases, trims, folds internal whitespace runs into a
// single underscore and strips everything outside [a-z0-9-_]. Truncation is
// the last step so a field can never end in a dangling partial substitution.
func normalizeKeyField(raw, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte('_')
			inSpace = false
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" {
		return fallback
	}
	if len(out) > sessionKeyFieldMax {
		out = out[:sessionKeyFieldMax]
	}
	return out
}
