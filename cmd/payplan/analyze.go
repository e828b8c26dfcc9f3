package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Vork-21/payplan/pkg/analysis"
	"github.com/Vork-21/payplan/pkg/calculator"
	"github.com/Vork-21/payplan/pkg/clock"
	"github.com/Vork-21/payplan/pkg/export"
	"github.com/Vork-21/payplan/pkg/ingest"
	"github.com/Vork-21/payplan/pkg/logger"
	"github.com/Vork-21/payplan/pkg/models"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a ledger export and write reports",
	Long: `Analyze a single CSV or XLSX ledger export. Prints a summary to the
console and writes the full report set (metrics, issues, collection
priorities, projections, and an error workbook) to the export directory.`,
	Example: `  # Analyze with defaults (12 month projection, current scenario)
  payplan analyze customers.csv

  # Restart scenario over 24 months, reports under ./out
  payplan analyze customers.xlsx --months 24 --scenario restart --out out`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Int("months", 12, "Projection horizon in months (1-60)")
	analyzeCmd.Flags().String("scenario", "current", "Projection scenario: current or restart")
	analyzeCmd.Flags().String("class", "", "Restrict reports to one QuickBooks class")
	analyzeCmd.Flags().String("out", "", "Report directory (overrides EXPORT_DIR)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("analyze")

	months, _ := cmd.Flags().GetInt("months")
	scenarioStr, _ := cmd.Flags().GetString("scenario")
	class, _ := cmd.Flags().GetString("class")
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.ExportDir
	}

	scenario, err := models.ParseScenario(scenarioStr)
	if err != nil {
		return err
	}

	table, err := ingest.ReadFile(args[0])
	if err != nil {
		return err
	}

	service := analysis.New(clock.System{}, nil, cfg.PaymentDay, logger.WithComponent("analysis"))
	result, err := service.Run(table)
	if err != nil {
		return err
	}

	printSummary(result)

	priorities := result.CollectionPriorities(class)
	printPriorities(priorities)

	projections := result.Projections(months, scenario, class)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := writeReports(outDir, result, priorities, projections); err != nil {
		return err
	}

	log.Info().Str("dir", outDir).Msg("Reports written")
	fmt.Printf("\nReports written to %s\n", outDir)
	return nil
}

func printSummary(result *analysis.Result) {
	s := result.Summary()

	fmt.Printf("Analyzed %s\n\n", s.Source)
	fmt.Printf("  Customers:          %d (%d clean, %d with issues)\n",
		s.TotalCustomers, s.CleanCustomers, s.ProblematicCustomers)
	fmt.Printf("  Payment plans:      %d (%d tracked)\n", s.TotalPlans, s.PlansTracked)
	fmt.Printf("  Issues found:       %d\n", s.TotalIssues)
	fmt.Printf("  Total outstanding:  $%s\n", s.TotalOutstanding.StringFixed(2))
	fmt.Printf("  Data quality score: %.1f%%\n", s.DataQualityScore)
}

func printPriorities(priorities []calculator.CollectionPriority) {
	if len(priorities) == 0 {
		fmt.Println("\nNo customers are behind on payments.")
		return
	}

	fmt.Printf("\nTop collection priorities:\n")
	show := len(priorities)
	if show > 5 {
		show = 5
	}
	for i := 0; i < show; i++ {
		p := priorities[i]
		fmt.Printf("  %d. %s: %d months behind, $%s owed ($%s short)\n",
			i+1, p.CustomerName, p.MonthsBehind, p.TotalOwed.StringFixed(2), p.BehindAmount.StringFixed(2))
	}
	if len(priorities) > show {
		fmt.Printf("  ... and %d more in collections.csv\n", len(priorities)-show)
	}
}

func writeReports(dir string, result *analysis.Result, priorities []calculator.CollectionPriority, projections *analysis.Projections) error {
	metricsFile, err := os.Create(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		return fmt.Errorf("failed to create metrics.csv: %w", err)
	}
	defer metricsFile.Close()
	if err := export.MetricsCSV(metricsFile, result.Metrics); err != nil {
		return err
	}

	issuesFile, err := os.Create(filepath.Join(dir, "issues.csv"))
	if err != nil {
		return fmt.Errorf("failed to create issues.csv: %w", err)
	}
	defer issuesFile.Close()
	if err := export.IssuesCSV(issuesFile, result.Issues); err != nil {
		return err
	}

	collectionsFile, err := os.Create(filepath.Join(dir, "collections.csv"))
	if err != nil {
		return fmt.Errorf("failed to create collections.csv: %w", err)
	}
	defer collectionsFile.Close()
	if err := export.CollectionsCSV(collectionsFile, priorities); err != nil {
		return err
	}

	projectionsFile, err := os.Create(filepath.Join(dir, "projections.csv"))
	if err != nil {
		return fmt.Errorf("failed to create projections.csv: %w", err)
	}
	defer projectionsFile.Close()
	if err := export.CustomerProjectionCSV(projectionsFile, projections.Customers); err != nil {
		return err
	}

	workbook, err := export.ErrorWorkbook(result.Customers, result.Issues)
	if err != nil {
		return err
	}
	if err := workbook.SaveAs(filepath.Join(dir, "errors.xlsx")); err != nil {
		return fmt.Errorf("failed to write errors.xlsx: %w", err)
	}
	return nil
}
