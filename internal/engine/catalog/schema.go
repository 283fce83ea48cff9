package catalog

import (
	"fmt"
	"strings"
)

// DecisionsTable is the only table queries may read.
const DecisionsTable = "israeli_government_decisions"

// Column describes one column of the decisions table.
type Column struct {
	Name        string
	Type        string
	Description string
}

// Columns is the fixed column list of the decisions table.
var Columns = []Column{
	{"decision_key", "text", "unique key, <government>_<decision>"},
	{"government_number", "integer", "government number (1-50)"},
	{"decision_number", "integer", "decision number within its government"},
	{"decision_date", "date", "date the decision was made"},
	{"decision_title", "text", "decision title (Hebrew)"},
	{"summary", "text", "short summary (Hebrew)"},
	{"decision_content", "text", "full decision text (Hebrew)"},
	{"tags_policy_area", "text", "policy area tags, comma separated"},
	{"tags_government_body", "text", "responsible ministries and bodies, comma separated"},
	{"operativity", "text", "אופרטיבית or דקלרטיבית"},
	{"decision_url", "text", "link to the published decision"},
	{"prime_minister", "text", "prime minister at decision time"},
}

// TopicFields are the columns a topic filter may reference.
var TopicFields = []string{"tags_policy_area", "decision_title", "summary", "decision_content"}

// DetailColumns is the projection used by record-returning templates.
const DetailColumns = "decision_key, government_number, decision_number, decision_date, decision_title, " +
	"summary, tags_policy_area, tags_government_body, operativity, decision_url, prime_minister"

// SchemaDescription renders the table for generation prompts.
func SchemaDescription() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s:\n", DecisionsTable)
	for _, c := range Columns {
		fmt.Fprintf(&b, "- %s (%s): %s\n", c.Name, c.Type, c.Description)
	}
	return b.String()
}
