package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"gov-decisions-workers/internal/engine/classifier"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/validator"
	"gov-decisions-workers/internal/models"
)

// ErrInvalidQuery is returned when validate rejects the query, so the exit
// status reflects the verdict.
var ErrInvalidQuery = fmt.Errorf("query rejected")

var (
	validateSQL       string
	validateEntities  string
	validateQueryType string
	validateIntent    string
	validateText      string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check SQL against the query validator",
	Long: `Validate applies the structural rules every compiled query must pass and
prints the verdict. Without --query-type the type is classified from --intent,
the entities and --text the way the compiler does it.

Example:
  decisionq validate --sql "SELECT COUNT(*) FROM israeli_government_decisions" --query-type count`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateSQL, "sql", "", "SQL to validate")
	validateCmd.Flags().StringVar(&validateEntities, "entities", "{}", "request entities as a JSON object")
	validateCmd.Flags().StringVar(&validateQueryType, "query-type", "", "count, list, comparison, analysis or point_lookup")
	validateCmd.Flags().StringVar(&validateIntent, "intent", "search", "intent used to classify the query type")
	validateCmd.Flags().StringVar(&validateText, "text", "", "utterance used to classify the query type")
	_ = validateCmd.MarkFlagRequired("sql")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(validateEntities), &raw); err != nil {
		return fmt.Errorf("--entities: %w", err)
	}
	n, err := normalizer.Default()
	if err != nil {
		return err
	}
	ents, _ := n.Normalize(raw)

	qt := models.QueryType(validateQueryType)
	if qt == "" {
		intent, err := models.ParseIntent(validateIntent)
		if err != nil {
			return fmt.Errorf("--intent: %w", err)
		}
		qt = classifier.Classify(intent, ents, validateText)
	} else if !qt.Valid() {
		return fmt.Errorf("--query-type: unknown query type %q", validateQueryType)
	}

	outcome := validator.New().Validate(validateSQL, ents, qt)
	if err := printJSON(cmd, struct {
		QueryType models.QueryType `json:"queryType"`
		models.ValidationOutcome
	}{qt, outcome}); err != nil {
		return err
	}
	if !outcome.Valid {
		return ErrInvalidQuery
	}
	return nil
}
