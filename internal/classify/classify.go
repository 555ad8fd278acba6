// Package classify maps raw inbound message text to one of a closed set of
// intents. Classification is a pure function over a small fixed vocabulary:
// no state, no configuration, no NLP. The same input always yields the same
// intent, which keeps the webhook pipeline deterministic and trivially
// testable.
//
// Matching rules mirror how users actually type: greetings match on prefix
// or exact form ("hey there"), farewells and list requests match on
// substring, and the "no" family matches exact-or-prefix so "no" does not
// swallow "no more receipts" (checked first, it would).
package classify

import "strings"

// Intent is the classified meaning of an inbound event.
type Intent string

// The closed intent set. Ignored must produce zero side effects; Unknown
// gets the fallback help reply.
const (
	IntentGreeting       Intent = "greeting"
	IntentFarewell       Intent = "farewell"
	IntentRotation       Intent = "rotation_request"
	IntentListRequest    Intent = "list_request"
	IntentGrocery        Intent = "grocery_request"
	IntentNoResponse     Intent = "no_response"
	IntentNoMoreReceipts Intent = "no_more_receipts"
	IntentImageReceipt   Intent = "image_receipt"
	IntentUnknown        Intent = "unknown"
	IntentIgnored        Intent = "ignored"
)

// rotationPhrase is the literal opt-out phrase that requests an alternative
// suggestion.
const rotationPhrase = "not today"

var greetings = []string{
	"hi", "hello", "hey", "hey there", "hi there",
	"good morning", "good afternoon", "good evening",
	"gm", "morning", "afternoon", "evening",
	"what's up", "whats up", "sup", "yo",
}

var farewells = []string{
	"bye", "goodbye", "see you", "see ya", "cya",
	"take care", "talk later", "later", "bye bye",
	"good night", "gn", "night", "ttyl",
}

var listKeywords = []string{
	"full list",
	"all recipes",
	"all recipe",
	"show all",
	"list all",
	"all please",
	"show recipes",
	"recipe list",
}

var groceryKeywords = []string{
	"grocery",
	"groceries",
	"next shop",
	"shop list",
	"predict",
	"shopping list",
	"what should i buy",
	"what to buy",
}

var noResponses = []string{
	"no",
	"nope",
	"nah",
	"not yet",
	"haven't",
	"haven't yet",
	"not shopping",
	"not going",
	"didnt shop",
	"didn't shop",
}

var noMoreKeywords = []string{
	"done",
	"no more",
	"that's all",
	"that's it",
	"finished",
	"all done",
	"no more receipts",
	"no other receipts",
	"don't have",
	"don't have any",
	"none",
	"no others",
}

// Classify returns the intent for the given message text. hasAttachment
// overrides to IntentImageReceipt regardless of text; empty trimmed text
// (status updates, reactions, stickers) is IntentIgnored.
//
// Order matters: the rotation phrase and "no more receipts" vocabulary are
// checked before the bare "no" family, and list requests before greetings so
// "hi, show all recipes" asks for the list rather than a hello.
func Classify(text string, hasAttachment bool) Intent {
	if hasAttachment {
		return IntentImageReceipt
	}
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return IntentIgnored
	}

	switch {
	case strings.Contains(msg, rotationPhrase):
		return IntentRotation
	case containsAny(msg, listKeywords):
		return IntentListRequest
	case isGreeting(msg):
		return IntentGreeting
	case containsAny(msg, farewells):
		return IntentFarewell
	case containsAny(msg, groceryKeywords):
		return IntentGrocery
	case containsAny(msg, noMoreKeywords):
		return IntentNoMoreReceipts
	case isNoResponse(msg):
		return IntentNoResponse
	default:
		return IntentUnknown
	}
}

// isGreeting matches exact or prefix forms, so "hello!" and "hey there"
// greet but "hill climbing" does not.
func isGreeting(msg string) bool {
	for _, g := range greetings {
		if msg == g || strings.HasPrefix(msg, g) {
			return true
		}
	}
	return false
}

// isNoResponse matches exactly or as a leading word ("no thanks"), never as
// a substring — "nothing" must not count as "no".
func isNoResponse(msg string) bool {
	for _, n := range noResponses {
		if msg == n || strings.HasPrefix(msg, n+" ") {
			return true
		}
	}
	return false
}

func containsAny(msg string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}
