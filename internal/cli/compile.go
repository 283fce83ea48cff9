package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/orchestrator"
	"gov-decisions-workers/internal/engine/params"
	"gov-decisions-workers/internal/engine/pipeline"
	"gov-decisions-workers/internal/engine/resolver"
)

var (
	compileIntent   string
	compileEntities string
	compileText     string
	compileTimeout  time.Duration
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a request with the template path and print the result",
	Long: `Compile runs normalization, reference resolution and template
selection for one request and prints the outbound result as JSON.
Assisted generation is disabled, so requests no template fits end in a
failure result.

Example:
  decisionq compile --intent count --entities '{"topic":"חינוך","governmentNumber":37}' --text "כמה החלטות בנושא חינוך"`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVar(&compileIntent, "intent", "", "intent label (search, count, specific_decision, ...)")
	compileCmd.Flags().StringVar(&compileEntities, "entities", "{}", "entities as a JSON object")
	compileCmd.Flags().StringVar(&compileText, "text", "", "the user's utterance")
	compileCmd.Flags().DurationVar(&compileTimeout, "timeout", 10*time.Second, "compile timeout")
	_ = compileCmd.MarkFlagRequired("intent")
}

func runCompile(cmd *cobra.Command, args []string) error {
	var ents map[string]interface{}
	if err := json.Unmarshal([]byte(compileEntities), &ents); err != nil {
		return fmt.Errorf("--entities: %w", err)
	}
	text := compileText
	if text == "" {
		text = compileIntent
	}

	raw, err := json.Marshal(pipeline.Request{
		ConversationID: "decisionq",
		RawText:        text,
		Intent:         compileIntent,
		Entities:       ents,
	})
	if err != nil {
		return err
	}
	req, err := pipeline.Decode(raw)
	if err != nil {
		return err
	}

	engine, err := offlineEngine()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
	defer cancel()

	result, err := engine.Compile(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

// offlineEngine builds the engine without history or generation.
func offlineEngine() (*pipeline.Engine, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	n, err := normalizer.Default()
	if err != nil {
		return nil, err
	}

	log := logger.NewNoOpLogger()
	if viper.GetBool("verbose") {
		log = logger.NewStructured("debug", "console", "stderr")
	}

	ocfg := orchestrator.DefaultConfig()
	if gov := viper.GetInt("orchestrator.default_government"); gov > 0 {
		ocfg.DefaultGovernment = gov
	}
	o := orchestrator.New(ocfg, cat, params.NewBuilder(params.DefaultConfig()), n, nil, orchestrator.WithLogger(log))
	r := resolver.New(resolver.DefaultConfig(), nil, n, resolver.WithLogger(log))
	return pipeline.New(n, r, o, nil, resolver.DefaultConfig().HistoryWindow, log), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
