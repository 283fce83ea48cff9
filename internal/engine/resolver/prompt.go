package resolver

import (
	"fmt"
	"strings"

	"gov-decisions-workers/internal/models"
)

var slotLabels = map[models.Slot]string{
	models.SlotGovernmentNumber:  "מספר הממשלה",
	models.SlotDecisionNumber:    "מספר ההחלטה",
	models.SlotTopic:             "הנושא",
	models.SlotDateRange:         "טווח התאריכים",
	models.SlotMinistries:        "המשרדים",
	models.SlotLimit:             "מספר התוצאות",
	models.SlotComparisonTargets: "שתי הממשלות להשוואה",
	models.SlotYear:              "השנה",
	models.SlotOperativity:       "סוג ההחלטה",
}

// ClarificationPrompt asks in Hebrew for the missing slots, restating what is
// already known.
func ClarificationPrompt(known *models.EntitySet, missing []models.Slot) string {
	var b strings.Builder

	var facts []string
	for _, s := range known.Present() {
		facts = append(facts, fmt.Sprintf("%s: %s", slotLabels[s], known.Display(s)))
	}
	if len(facts) > 0 {
		b.WriteString("הבנתי את הפרטים הבאים: ")
		b.WriteString(strings.Join(facts, ", "))
		b.WriteString(". ")
	}

	asks := make([]string, len(missing))
	for i, s := range missing {
		asks[i] = slotLabels[s]
	}
	b.WriteString("כדי להמשיך, אנא ציין את ")
	b.WriteString(strings.Join(asks, " או "))
	b.WriteString(".")
	return b.String()
}

// enrich appends phrases for slots that were not written in text. A slot
// extracted from text with the same value is already present.
func enrich(text string, fromText, merged models.EntitySet) string {
	var add []string
	appendIfAbsent := func(slot models.Slot, phrase string) {
		if fromText.Has(slot) && fromText.Display(slot) == merged.Display(slot) {
			return
		}
		if strings.Contains(text, phrase) {
			return
		}
		add = append(add, phrase)
	}

	if merged.Has(models.SlotGovernmentNumber) {
		appendIfAbsent(models.SlotGovernmentNumber, fmt.Sprintf("ממשלה %d", merged.GovernmentNumber))
	}
	if merged.Has(models.SlotDecisionNumber) {
		appendIfAbsent(models.SlotDecisionNumber, fmt.Sprintf("החלטה %d", merged.DecisionNumber))
	}
	if merged.Has(models.SlotDateRange) {
		appendIfAbsent(models.SlotDateRange, fmt.Sprintf("בין %s ל-%s", merged.DateRange.Start, merged.DateRange.End))
	}
	if merged.Has(models.SlotComparisonTargets) {
		appendIfAbsent(models.SlotComparisonTargets,
			fmt.Sprintf("ממשלות %d ו-%d", merged.ComparisonTargets[0], merged.ComparisonTargets[1]))
	}

	if len(add) == 0 {
		return text
	}
	return strings.TrimSpace(text + " " + strings.Join(add, " "))
}
