// Package predict turns raw receipt line items into purchase patterns and a
// prediction prompt. Everything in this package is pure computation over
// in-memory slices; fetching rows and calling the prediction collaborator
// belong to the service layer.
package predict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

// Pattern summarizes the purchase history of one item across receipts.
type Pattern struct {
	Item           string
	Frequency      int      // distinct purchase days
	LastPurchase   string   // "2006-01-02", newest day
	AvgDaysBetween float64  // 0 when fewer than two purchase days
	PurchaseDays   []string // distinct days, newest first
}

// Aggregate groups items by normalized name and computes, per item, the
// purchase frequency, last purchase day, and average gap between distinct
// purchase days. Items whose receipt is missing from the lookup are skipped
// rather than guessed.
func Aggregate(items []domain.ReceiptItem, receipts []domain.Receipt) []Pattern {
	dayByReceipt := make(map[string]string, len(receipts))
	for _, r := range receipts {
		dayByReceipt[r.ID] = r.PurchaseDate
	}

	daysByItem := make(map[string]map[string]struct{})
	caser := cases.Title(language.English)
	display := make(map[string]string)
	for _, it := range items {
		day, ok := dayByReceipt[it.ReceiptID]
		if !ok || day == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if key == "" {
			continue
		}
		if _, ok := daysByItem[key]; !ok {
			daysByItem[key] = make(map[string]struct{})
			display[key] = caser.String(key)
		}
		daysByItem[key][day] = struct{}{}
	}

	out := make([]Pattern, 0, len(daysByItem))
	for key, daySet := range daysByItem {
		days := make([]string, 0, len(daySet))
		for d := range daySet {
			days = append(days, d)
		}
		// Newest first; day keys sort lexicographically.
		sort.Sort(sort.Reverse(sort.StringSlice(days)))

		p := Pattern{
			Item:         display[key],
			Frequency:    len(days),
			LastPurchase: days[0],
			PurchaseDays: days,
		}
		if len(days) > 1 {
			total := 0.0
			counted := 0
			for i := 0; i+1 < len(days); i++ {
				d1, err1 := time.Parse("2006-01-02", days[i])
				d2, err2 := time.Parse("2006-01-02", days[i+1])
				if err1 != nil || err2 != nil {
					continue
				}
				total += d1.Sub(d2).Hours() / 24
				counted++
			}
			if counted > 0 {
				p.AvgDaysBetween = total / float64(counted)
			}
		}
		out = append(out, p)
	}

	// Most frequently bought first; ties broken by name for determinism.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Item < out[j].Item
	})
	return out
}

// FormatPrompt renders the aggregated patterns as the prediction prompt
// handed to the Predictor collaborator. now anchors the "today" reference.
func FormatPrompt(patterns []Pattern, now time.Time) string {
	if len(patterns) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n", now.Format("2006-01-02"))
	b.WriteString("Shopping history (most frequent first):\n")
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s: bought %d time(s), last on %s", p.Item, p.Frequency, p.LastPurchase)
		if p.AvgDaysBetween > 0 {
			fmt.Fprintf(&b, ", roughly every %.1f days", p.AvgDaysBetween)
		}
		b.WriteString("\n")
	}
	b.WriteString("Predict the items and date range for the next grocery shop.\n")
	return b.String()
}

// Due returns the items whose typical purchase interval has elapsed by now,
// preserving the frequency ordering from Aggregate. Items bought only once
// are considered due after fallbackDays.
func Due(patterns []Pattern, now time.Time, fallbackDays int) []Pattern {
	if fallbackDays <= 0 {
		fallbackDays = 14
	}
	due := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		last, err := time.Parse("2006-01-02", p.LastPurchase)
		if err != nil {
			continue
		}
		elapsed := now.Sub(last).Hours() / 24
		interval := p.AvgDaysBetween
		if interval <= 0 {
			interval = float64(fallbackDays)
		}
		if elapsed >= interval {
			due = append(due, p)
		}
	}
	return due
}
