package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/registry"
	"github.com/sells-group/resolver-cli/pkg/metaculus"
)

var (
	resolveID       string
	resolveTitle    string
	resolveURL      string
	resolveCriteria string
	resolvePost     int
	resolveJSON     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a single question",
	Long:  "Collects evidence for one question and prints its verdict with rationale and citations. The question comes either from --id/--criteria or from a Metaculus post.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		q, err := resolveQuestion(cmd)
		if err != nil {
			return err
		}
		if err := q.Validate(); err != nil {
			return err
		}

		res, err := buildResolver()
		if err != nil {
			return err
		}

		rec, err := res.Resolve(ctx, q)
		if err != nil {
			return eris.Wrapf(err, "resolve: question %s", q.ID)
		}

		zap.L().Info("question resolved",
			zap.String("question_id", q.ID),
			zap.String("predicted", string(rec.Predicted)),
			zap.Int("citations", len(rec.Citations)),
			zap.Float64("cost_usd", rec.CostUSD),
		)

		if resolveJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		printRecord(q, rec)
		return nil
	},
}

// resolveQuestion builds the question from flags, or fetches it from
// Metaculus when --metaculus-post is given.
func resolveQuestion(cmd *cobra.Command) (model.Question, error) {
	ctx := cmd.Context()

	if cmd.Flags().Changed("metaculus-post") {
		if resolveID != "" || resolveCriteria != "" {
			return model.Question{}, eris.New("resolve: --metaculus-post cannot be combined with --id/--criteria")
		}
		client := metaculus.NewClient(cfg.Metaculus.Token, metaculus.WithBaseURL(cfg.Metaculus.BaseURL))
		return registry.LoadMetaculusQuestion(ctx, client, resolvePost)
	}

	if resolveID == "" || resolveCriteria == "" {
		return model.Question{}, eris.New("resolve: --id and --criteria are required (or use --metaculus-post)")
	}
	return model.Question{
		ID:       resolveID,
		Title:    resolveTitle,
		URL:      resolveURL,
		Criteria: resolveCriteria,
	}, nil
}

func printRecord(q model.Question, rec *model.ResolutionRecord) {
	title := q.Title
	if title == "" {
		title = q.ID
	}
	fmt.Printf("Question:  %s\n", title)
	fmt.Printf("Verdict:   %s\n", rec.Predicted)
	fmt.Printf("Rationale: %s\n", rec.Rationale)
	if len(rec.Citations) > 0 {
		fmt.Println("Citations:")
		for _, c := range rec.Citations {
			fmt.Printf("  - %q (%s)\n", c.Quote, c.SourceURL)
		}
	}
	fmt.Printf("Cost:      $%.4f\n", rec.CostUSD)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveID, "id", "", "question identifier")
	resolveCmd.Flags().StringVar(&resolveTitle, "title", "", "question title")
	resolveCmd.Flags().StringVar(&resolveURL, "url", "", "question URL")
	resolveCmd.Flags().StringVar(&resolveCriteria, "criteria", "", "resolution criteria text")
	resolveCmd.Flags().IntVar(&resolvePost, "metaculus-post", 0, "Metaculus post ID to resolve")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print the full record as JSON")
	rootCmd.AddCommand(resolveCmd)
}
