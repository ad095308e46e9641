package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"argus/core"
	"argus/detect"
	"argus/ingest"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// newTestCmd creates the 'test' subcommand
func newTestCmd() *cobra.Command {
	var ruleFile string
	var eventsFile string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test a rule against a JSONL event file",
		Long:  "Compile a YAML rule, run it over a JSONL log file and report the sequence matches found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := loadRuleFile(ruleFile)
			if err != nil {
				return err
			}

			f, err := os.Open(eventsFile)
			if err != nil {
				return fmt.Errorf("failed to open events file: %w", err)
			}
			defer f.Close()

			events, err := ingest.NewParser(0).ParseEvents(f)
			if err != nil {
				return fmt.Errorf("failed to parse events: %w", err)
			}

			matcher := detect.NewMatcher(zap.NewNop().Sugar())
			matches := matcher.Match(rule, events)

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(matches)
			}
			renderMatches(rule, len(events), matches)
			return nil
		},
	}

	cmd.Flags().StringVar(&ruleFile, "rule", "", "YAML rule file (required)")
	cmd.Flags().StringVar(&eventsFile, "events", "", "JSONL events file (required)")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

// loadRuleFile reads and compiles a single YAML rule definition.
func loadRuleFile(path string) (*detect.SequenceRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	var def core.RuleDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	cache, err := detect.NewPredicateCache(0)
	if err != nil {
		return nil, err
	}
	return detect.CompileRule(def, cache)
}

func renderMatches(rule *detect.SequenceRule, totalEvents int, matches []core.SequenceMatch) {
	headerColor.Printf("Rule %s (%s)\n", rule.ID, rule.Name)
	infoColor.Printf("Evaluated %d events\n\n", totalEvents)

	if len(matches) == 0 {
		errorColor.Println("No matches")
		return
	}
	successColor.Printf("%d match(es)\n\n", len(matches))
	for i, m := range matches {
		fmt.Printf("%d. [%s] %s\n", i+1, m.Timestamp.Format("2006-01-02 15:04:05"), m.Message)
		for _, step := range m.Steps {
			fmt.Printf("   step %d (%s): event %s at %s\n",
				step.Step, step.Alias, step.Event.EventID[:12],
				step.Event.Timestamp.Format("15:04:05"))
		}
	}
}
