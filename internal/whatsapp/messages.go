// Package whatsapp – message bodies
//
// This file holds the canned message formatters. They are plain functions
// returning strings so services and tests can assert on content without a
// network in sight.
package whatsapp

import (
	"fmt"
	"strings"
)

// DailyRecipeMessage formats the scheduled daily suggestion.
func DailyRecipeMessage(recipeName string) string {
	var b strings.Builder
	b.WriteString("🍽️ *Daily Recipe Suggestion*\n\n")
	fmt.Fprintf(&b, "Tomorrow's dinner idea: *%s*\n\n", recipeName)
	b.WriteString("Reply 'not today' if you'd like a different suggestion!")
	return b.String()
}

// AlternativeRecipeMessage formats the reply to a "not today" rotation
// request.
func AlternativeRecipeMessage(recipeName string) string {
	var b strings.Builder
	b.WriteString("🔄 *Alternative Suggestion*\n\n")
	fmt.Fprintf(&b, "How about *%s* instead?\n\n", recipeName)
	b.WriteString("Reply 'not today' again for another, or 'full list' to see everything.")
	return b.String()
}

// AllRecipesMessage formats the complete recipe list, sent when the user
// asks for it or when today's pool is exhausted.
func AllRecipesMessage(names []string) string {
	var b strings.Builder
	b.WriteString("📋 *All Recipes*\n\n")
	if len(names) == 0 {
		b.WriteString("The recipe list is empty right now. Check back soon!")
		return b.String()
	}
	b.WriteString("You've seen every suggestion for today — here's the full list:\n\n")
	for i, n := range names {
		fmt.Fprintf(&b, "%d. %s\n", i+1, n)
	}
	return b.String()
}

// GreetingMessage is the onboarding help text sent for greetings.
func GreetingMessage(sendTimeLocal string) string {
	var b strings.Builder
	b.WriteString("Hey there! 👋\n\n")
	fmt.Fprintf(&b, "I'm your *Daily Recipe Bot*! I'll send you a dinner idea every day at %s.\n\n", sendTimeLocal)
	b.WriteString("*Here's what you can do:*\n\n")
	b.WriteString("🔄 *\"not today\"* — get an alternative suggestion\n")
	b.WriteString("📋 *\"full list\"* — see all available recipes\n")
	b.WriteString("🛒 *\"grocery\"* — predict your next shopping list\n")
	b.WriteString("📸 Send a photo of your receipt after shopping\n")
	return b.String()
}

// FarewellMessages are the goodbye variants; the service picks one.
var FarewellMessages = []string{
	"Take care! 👋 See you tomorrow for another recipe!",
	"Goodbye! 😊 Have a great day!",
	"Bye! 👋 Don't forget to check tomorrow's recipe suggestion!",
	"See you later! 🍽️ Enjoy your cooking!",
}

// UnknownMessage is the fallback reply for unmatched text.
const UnknownMessage = "Sorry, I didn't understand that. Please reply with 'not today', 'full list', a greeting, or a farewell."

// ReceiptAckMessage acknowledges an inbound receipt image.
const ReceiptAckMessage = "📸 Got your receipt! I've saved it and will use it to improve your grocery predictions. Send more, or say 'done' when that's all."

// SessionCancelledMessage acknowledges a "no" during a feedback window.
const SessionCancelledMessage = "👍 Got it! I've cancelled the feedback session. Feel free to send your receipt later if you change your mind."

// NoSessionMessage acknowledges a "no" with nothing pending.
const NoSessionMessage = "👍 No problem! Let me know when you're ready."

// SessionClosedMessage confirms a feedback session closed by "done".
const SessionClosedMessage = "✅ Got it! I've closed the feedback session. Thanks for your feedback! I'll use it to improve my predictions. 📊"

// NothingPendingMessage acknowledges "done" with nothing pending.
const NothingPendingMessage = "👍 No problem! Let me know if you need anything else."

// ReceiptProgressMessage tells the user how many receipts are still needed
// before predictions unlock.
func ReceiptProgressMessage(have, need int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 You have %d receipt(s) saved.\n\n", have)
	fmt.Fprintf(&b, "I need at least %d receipts to make accurate predictions for your next purchase list.\n\n", need)
	fmt.Fprintf(&b, "So, once you have %d more receipts, I'll be able to generate a prediction for you with better accuracy.", need-have)
	return b.String()
}

// AnalyzingMessage is sent before the (potentially slow) prediction runs.
func AnalyzingMessage(have int64) string {
	return fmt.Sprintf("✅ Great! You have %d receipt(s).\n\n🔄 Analyzing your shopping patterns... This may take a moment.", have)
}

// PredictionMessage formats a generated shopping list.
func PredictionMessage(items []string, dateStart, dateEnd, reasoning string) string {
	var b strings.Builder
	b.WriteString("🛒 *Shopping List*\n\n")
	if dateStart == "" {
		dateStart = "soon"
	}
	if dateEnd == "" {
		dateEnd = "soon"
	}
	fmt.Fprintf(&b, "*When:* %s - %s\n\n", dateStart, dateEnd)
	b.WriteString("*Items:*\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	if reasoning != "" {
		if len(reasoning) > 150 {
			reasoning = reasoning[:150] + "..."
		}
		fmt.Fprintf(&b, "\n💡 %s", reasoning)
	}
	b.WriteString("\n\n📸 Send your receipt after shopping!")
	return b.String()
}
