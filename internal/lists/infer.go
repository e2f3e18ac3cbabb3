// Package lists decides which smart list an item belongs to and creates
// lists from per-type templates when none exists.
package lists

import (
	"regexp"
	"strings"

	"github.com/gabai/gabai/internal/categorize"
)

// TypeAppointment is returned by InferType when the text reads like an
// appointment. It is not a list type: callers create a reminder instead.
const TypeAppointment = "appointment"

var (
	appointmentKeywords = []string{
		"appointment", "meeting with", "dentist", "doctor", "remind me",
		"schedule", "reservation", "tomorrow at", "tonight at",
	}
	clockTime = regexp.MustCompile(`\b\d{1,2}(:\d{2})?\s*(am|pm)\b`)

	shoppingKeywords = []string{
		"grocer", "food", "milk", "egg", "bread", "cheese", "butter", "yogurt",
		"fruit", "vegetable", "apple", "banana", "chicken", "beef", "salmon",
		"coffee", "juice", "snack", "chocolate", "almond", "nuts", "cereal",
		"pasta", "flour", "sugar", "detergent", "toilet paper",
	}
	punchListKeywords = []string{
		"fix", "repair", "paint", "plumb", "leak", "install", "replace",
		"broken", "drywall", "outlet", "faucet", "caulk", "patch",
	}
	waitingListKeywords = []string{
		"waiting for", "waiting on", "wait for", "expecting", "hear back",
		"refund", "delivery", "package", "shipment",
	}
	purchaseVerbs = regexp.MustCompile(`\b(buy|get|purchase)\b`)
)

// InferType classifies free text into a list type. Precedence: appointment,
// shopping keywords, punch-list keywords, waiting-list keywords, purchase
// verbs (shopping), then todo.
func InferType(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case containsAny(t, appointmentKeywords) || clockTime.MatchString(t):
		return TypeAppointment
	case containsAny(t, shoppingKeywords):
		return categorize.TypeShopping
	case containsAny(t, punchListKeywords):
		return categorize.TypePunchList
	case containsAny(t, waitingListKeywords):
		return categorize.TypeWaitingList
	case purchaseVerbs.MatchString(t):
		return categorize.TypeShopping
	default:
		return categorize.TypeTodo
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

var typeAliases = map[string]string{
	"grocery":   categorize.TypeShopping,
	"groceries": categorize.TypeShopping,
	"shopping":  categorize.TypeShopping,
	"todo":      categorize.TypeTodo,
	"to_do":     categorize.TypeTodo,
	"tasks":     categorize.TypeTodo,
	"punch":     categorize.TypePunchList,
	"punchlist": categorize.TypePunchList,
	"waiting":   categorize.TypeWaitingList,
}

// NormalizeType lowercases a requested list type, maps spaces and dashes to
// underscores and resolves common aliases ("groceries" -> "shopping").
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	if canon, ok := typeAliases[t]; ok {
		return canon
	}
	return t
}
