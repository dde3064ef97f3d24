package engine

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/switchyard/internal/domain"
)

// Matches reports whether ev satisfies the condition.
//
// The resolved field is compared as text for eq, neq and contains, and as
// a number for gt, lt, gte and lte. A field that does not resolve counts
// as "" for text and NaN for numbers, so every numeric comparison against
// it is false. Unknown operators never match.
//
// Matches is pure and total: it has no side effects and never panics.
func Matches(cond domain.ConditionSpec, ev domain.DomainEvent) bool {
	actual, ok := resolveField(ev, cond.Field)

	switch cond.Operator {
	case domain.OpEq:
		return textOf(actual, ok) == textOf(cond.Value.String(), true)
	case domain.OpNeq:
		return textOf(actual, ok) != textOf(cond.Value.String(), true)
	case domain.OpContains:
		return strings.Contains(textOf(actual, ok), textOf(cond.Value.String(), true))
	case domain.OpGt:
		return numberOf(actual, ok) > cond.Value.Number()
	case domain.OpLt:
		return numberOf(actual, ok) < cond.Value.Number()
	case domain.OpGte:
		return numberOf(actual, ok) >= cond.Value.Number()
	case domain.OpLte:
		return numberOf(actual, ok) <= cond.Value.Number()
	}
	return false
}

// resolveField walks a dot path over the closed set of event fields.
// A leading "payload" segment is dropped. Events have no nested fields,
// so any path longer than one segment after that does not resolve.
func resolveField(ev domain.DomainEvent, path string) (string, bool) {
	parts := strings.Split(path, ".")
	if parts[0] == "payload" {
		parts = parts[1:]
	}
	if len(parts) != 1 {
		return "", false
	}

	switch parts[0] {
	case "id":
		return ev.ID, true
	case "subject_id", "subjectId", "user_id", "userId":
		return ev.SubjectID, true
	case "type":
		return string(ev.Type), true
	case "title":
		return ev.Title, true
	case "description":
		return ev.Description, true
	case "action_url", "actionUrl":
		// No deep link is stored as NULL.
		return ev.ActionURL, ev.ActionURL != ""
	case "created_at", "createdAt":
		return ev.CreatedAt.UTC().Format(domain.TimeLayout), true
	}
	return "", false
}

// textOf normalises to NFC so visually identical strings compare equal.
func textOf(s string, ok bool) string {
	if !ok {
		return ""
	}
	return norm.NFC.String(s)
}

func numberOf(s string, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	return domain.ParseNumber(s)
}
