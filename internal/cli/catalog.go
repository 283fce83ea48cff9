package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gov-decisions-workers/internal/models"
)

var catalogIntent string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the query templates",
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().StringVar(&catalogIntent, "intent", "", "only templates tagged with this intent")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}

	templates := cat.All()
	if catalogIntent != "" {
		intent, err := models.ParseIntent(catalogIntent)
		if err != nil {
			return fmt.Errorf("--intent: %w", err)
		}
		templates = cat.ForIntent(intent)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tQUERY TYPE\tINTENTS\tREQUIRED")
	for _, t := range templates {
		intents := make([]string, len(t.Intents))
		for i, in := range t.Intents {
			intents[i] = in.String()
		}
		required := strings.Join(t.Required, ",")
		if required == "" {
			required = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.QueryType, strings.Join(intents, ","), required)
	}
	return w.Flush()
}
