package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/assess"
	"github.com/sells-group/resolver-cli/internal/model"
	"github.com/sells-group/resolver-cli/internal/registry"
	"github.com/sells-group/resolver-cli/internal/report"
	"github.com/sells-group/resolver-cli/internal/store"
	"github.com/sells-group/resolver-cli/pkg/metaculus"
	"github.com/sells-group/resolver-cli/pkg/notion"
)

var (
	assessFile        string
	assessNotionDB    string
	assessTournament  string
	assessLimit       int
	assessConcurrency int
	assessDryRun      bool
	assessOut         string
	assessJSONOut     string
	assessPersist     bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Resolve a labeled question set and score the verdicts",
	Long:  "Loads questions with known outcomes from a file, a Notion database, or a Metaculus tournament, resolves each one, and reports accuracy as a confusion matrix.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("assess"); err != nil {
			return err
		}
		if assessPersist {
			if err := cfg.Validate("runs"); err != nil {
				return err
			}
		}

		cases, source, err := loadCases(cmd)
		if err != nil {
			return err
		}
		if assessLimit > 0 && assessLimit < len(cases) {
			cases = cases[:assessLimit]
		}
		if len(cases) == 0 {
			return eris.New("assess: question set is empty")
		}

		if assessDryRun {
			printCases(cases)
			return nil
		}

		res, err := buildResolver()
		if err != nil {
			return err
		}

		var st store.Store
		if assessPersist {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		concurrency := assessConcurrency
		if concurrency == 0 {
			concurrency = cfg.Assess.Concurrency
		}

		runner := assess.NewRunner(res, assess.Opts{
			Concurrency: concurrency,
			Source:      source,
			Store:       st,
		})

		result, err := runner.Run(ctx, cases)
		if err != nil {
			return eris.Wrap(err, "assess: run")
		}
		rep := result.Report

		zap.L().Info("assessment complete",
			zap.String("run_id", result.RunID),
			zap.Int("scored", rep.Total),
			zap.Int("correct", rep.Correct),
			zap.Int("failures", len(rep.Failures)),
			zap.Float64("cost_usd", rep.CostUSD),
		)

		markdown := report.Markdown(rep)
		doc, err := report.JSON(rep)
		if err != nil {
			return eris.Wrap(err, "assess: encode report")
		}

		if st != nil {
			stored := model.StoredReport{
				RunID:     result.RunID,
				Markdown:  markdown,
				JSON:      doc,
				Matrix:    rep.Matrix,
				CreatedAt: rep.GeneratedAt,
			}
			if err := st.SaveReport(ctx, stored); err != nil {
				zap.L().Warn("failed to persist report", zap.String("run_id", result.RunID), zap.Error(err))
			}
		}

		if assessJSONOut != "" {
			if err := os.WriteFile(assessJSONOut, []byte(doc), 0o644); err != nil {
				return eris.Wrap(err, "assess: write json report")
			}
		}
		if assessOut != "" {
			if err := os.WriteFile(assessOut, []byte(markdown), 0o644); err != nil {
				return eris.Wrap(err, "assess: write report")
			}
			return nil
		}
		fmt.Fprintln(os.Stdout, markdown)
		return nil
	},
}

// loadCases reads the question set from whichever source flag was given.
// Exactly one source is required.
func loadCases(cmd *cobra.Command) ([]model.QuestionCase, string, error) {
	ctx := cmd.Context()

	set := 0
	for _, name := range []string{"file", "notion-db", "metaculus-tournament"} {
		if cmd.Flags().Changed(name) {
			set++
		}
	}
	if set != 1 {
		return nil, "", eris.New("assess: exactly one of --file, --notion-db, --metaculus-tournament is required")
	}

	switch {
	case cmd.Flags().Changed("file"):
		cases, err := registry.LoadFile(assessFile)
		if err != nil {
			return nil, "", err
		}
		return cases, "file:" + assessFile, nil

	case cmd.Flags().Changed("notion-db"):
		dbID := assessNotionDB
		if dbID == "" {
			dbID = cfg.Notion.QuestionDB
		}
		if dbID == "" {
			return nil, "", eris.New("assess: no Notion database ID given and notion.question_db is unset")
		}
		if cfg.Notion.Token == "" {
			return nil, "", eris.New("assess: notion.token is required for --notion-db")
		}
		client := notion.NewClient(cfg.Notion.Token)
		cases, err := registry.LoadNotionRegistry(ctx, client, dbID)
		if err != nil {
			return nil, "", err
		}
		return cases, "notion:" + dbID, nil

	default:
		client := metaculus.NewClient(cfg.Metaculus.Token, metaculus.WithBaseURL(cfg.Metaculus.BaseURL))
		cases, err := registry.LoadMetaculusTournament(ctx, client, assessTournament, assessLimit)
		if err != nil {
			return nil, "", err
		}
		return cases, "metaculus:" + assessTournament, nil
	}
}

func printCases(cases []model.QuestionCase) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTUAL\tTITLE")
	for _, c := range cases {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Question.ID, c.Actual, c.Question.Title)
	}
	w.Flush()
	fmt.Fprintf(os.Stdout, "\n%d questions\n", len(cases))
}

func init() {
	assessCmd.Flags().StringVar(&assessFile, "file", "", "question file (.yaml, .csv, or .xlsx)")
	assessCmd.Flags().StringVar(&assessNotionDB, "notion-db", "", "Notion question database ID (empty = notion.question_db from config)")
	assessCmd.Flags().StringVar(&assessTournament, "metaculus-tournament", "", "Metaculus tournament slug of resolved questions")
	assessCmd.Flags().IntVar(&assessLimit, "limit", 0, "max questions to assess (0 = no limit)")
	assessCmd.Flags().IntVar(&assessConcurrency, "concurrency", 0, "parallel resolutions (default from config)")
	assessCmd.Flags().BoolVar(&assessDryRun, "dry-run", false, "list the loaded questions without resolving")
	assessCmd.Flags().StringVar(&assessOut, "out", "", "write the Markdown report to a file instead of stdout")
	assessCmd.Flags().StringVar(&assessJSONOut, "json", "", "also write the JSON report to a file")
	assessCmd.Flags().BoolVar(&assessPersist, "store", false, "persist the run, its records, and the report")
	rootCmd.AddCommand(assessCmd)
}
