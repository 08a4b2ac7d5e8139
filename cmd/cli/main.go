package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"ceaiinsights/adapters/excel"
	"ceaiinsights/adapters/postgres"
	"ceaiinsights/ai"
	"ceaiinsights/app"
	"ceaiinsights/internal"
	"ceaiinsights/internal/config"
	"ceaiinsights/internal/container"
	"ceaiinsights/internal/session"
	"ceaiinsights/models"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "ceai",
		Short:        "Analyze CEAI survey CSV files with a language model",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newHistoryCmd(),
		newPromptCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readSurvey validates and reads a CSV file the same way the web upload does
func readSurvey(path string, maxBytes int64, progress io.Writer) (string, models.FileMeta, error) {
	meta := models.FileMeta{Name: filepath.Base(path)}
	if !session.IsCSV(meta.Name, "") {
		return "", meta, session.ErrInvalidFileType()
	}

	f, err := os.Open(path)
	if err != nil {
		return "", meta, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", meta, err
	}
	meta.Size = info.Size()

	content, err := session.ReadCSV(f, meta.Size, maxBytes, func(pct float64) {
		fmt.Fprintf(progress, "\rReading %s: %3.0f%%", meta.Name, pct)
	})
	fmt.Fprintln(progress)
	if err != nil {
		return "", meta, err
	}
	return content, meta, nil
}

func newAnalyzeCmd() *cobra.Command {
	var exportPath string

	cmd := &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Send a survey CSV to the model and print the report",
		Long: `Validate and read a CEAI survey CSV, send it to the configured model
(retrying while the model is overloaded) and print the plain-text report.

Example: ceai analyze survey.csv --export report.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load()
			if err != nil {
				return err
			}
			logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Logging.Level), "console")
			defer logger.Sync()

			content, meta, err := readSurvey(args[0], appConfig.Upload.MaxFileSize, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), appConfig.Analysis.Timeout)
			defer cancel()

			appContainer, err := container.New(ctx, appConfig, logger)
			if err != nil {
				return err
			}
			defer appContainer.Shutdown()

			outcome := appContainer.Analysis.Submit(ctx, app.Submission{SessionID: "cli", File: meta, CSVData: content})
			if outcome.Kind != models.OutcomeSuccess {
				return fmt.Errorf("%s", outcome.Result.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), outcome.Result.Summary)
			for _, v := range outcome.Violations {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %q\n", v.Rule, v.Snippet)
			}

			if exportPath == "" {
				return nil
			}
			record, err := appContainer.History.GetByID(context.WithoutCancel(ctx), outcome.RecordID)
			if err != nil {
				return fmt.Errorf("failed to load analysis for export: %w", err)
			}
			return writeExport(exportPath, record)
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "Write the report and department scores to an .xlsx file")

	return cmd
}

func writeExport(path string, record *models.AnalysisRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := excel.WriteWorkbook(f, record); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newHistoryCmd() *cobra.Command {
	var limit int
	var driver, url string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return fmt.Errorf("no history database configured: set DATABASE_URL or --database-url")
			}

			db, err := postgres.Open(cmd.Context(), driver, url)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := postgres.NewAnalysisRepository(db).ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tFILE\tSTATUS\tATTEMPTS\tMODEL")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.FileName, r.Status, r.Attempts, r.Model)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of analyses to show")
	cmd.Flags().StringVar(&driver, "database-driver", envOr("DATABASE_DRIVER", "postgres"), "postgres or sqlite3")
	cmd.Flags().StringVar(&url, "database-url", os.Getenv("DATABASE_URL"), "History database URL")

	return cmd
}

func newPromptCmd() *cobra.Command {
	var promptsDir string

	cmd := &cobra.Command{
		Use:   "prompt <file.csv>",
		Short: "Print the prompt that would be sent for a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _, err := readSurvey(args[0], 0, io.Discard)
			if err != nil {
				return err
			}

			prompts := ai.NewPromptManager(promptsDir, internal.NewNopLogger())
			rendered, err := prompts.RenderPrompt(ai.PromptCEAIAnalysis, map[string]string{
				ai.PlaceholderCSVData: content,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}

	cmd.Flags().StringVar(&promptsDir, "prompts-dir", os.Getenv("PROMPTS_DIR"), "Directory with prompt overrides")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
