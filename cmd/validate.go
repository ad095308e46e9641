package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"argus/core"
	"argus/detect"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// validationResult is the JSON output shape of 'validate'.
type validationResult struct {
	File       string   `json:"file"`
	RuleID     string   `json:"rule_id,omitempty"`
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// newValidateCmd creates the 'validate' subcommand
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rule.yaml>...",
		Short: "Compile rule files and report every violation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := detect.NewPredicateCache(0)
			if err != nil {
				return err
			}

			results := make([]validationResult, 0, len(args))
			invalid := 0
			for _, path := range args {
				res := validateRuleFile(path, cache)
				if !res.Valid {
					invalid++
				}
				results = append(results, res)
			}

			if outputJSON {
				if err := json.NewEncoder(os.Stdout).Encode(results); err != nil {
					return err
				}
			} else {
				renderValidationResults(results)
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d rule file(s) invalid", invalid, len(args))
			}
			return nil
		},
	}
}

func validateRuleFile(path string, cache *detect.PredicateCache) validationResult {
	res := validationResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Error = fmt.Sprintf("failed to read file: %v", err)
		return res
	}
	var def core.RuleDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		res.Error = fmt.Sprintf("failed to parse YAML: %v", err)
		return res
	}
	res.RuleID = def.ID

	if _, err := detect.CompileRule(def, cache); err != nil {
		var verr *detect.ValidationError
		if errors.As(err, &verr) {
			res.Violations = verr.Violations
		} else {
			res.Error = err.Error()
		}
		return res
	}
	res.Valid = true
	return res
}

func renderValidationResults(results []validationResult) {
	for _, res := range results {
		if res.Valid {
			successColor.Printf("OK      %s", res.File)
			fmt.Printf(" (%s)\n", res.RuleID)
			continue
		}
		errorColor.Printf("INVALID %s\n", res.File)
		if res.Error != "" {
			fmt.Printf("        %s\n", res.Error)
		}
		for _, v := range res.Violations {
			fmt.Printf("        - %s\n", v)
		}
	}
}
