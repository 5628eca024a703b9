package admin

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/supportiq/internal/cli"
)

func TriageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage <title> <description>",
		Short: "Classify a request without creating a ticket",
		Long:  "Run the triage engine on a title and description and show the signals and the routing decision",
		Args:  cobra.ExactArgs(2),
		RunE:  runTriage,
	}

	cli.AddOutputFlag(cmd, false)

	return cmd
}

func runTriage(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	format, err := cli.OutputFormat(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.triageEngine()
	if err != nil {
		return err
	}

	signals := engine.Classify(ctx, args[0], args[1])
	decision := a.machine().Gate().Decide(signals)

	if format == cli.FormatJSON {
		data := map[string]interface{}{
			"category":   signals.Category,
			"priority":   signals.Priority,
			"sentiment":  signals.Sentiment,
			"risk":       signals.Risk,
			"confidence": signals.Confidence,
			"summary":    signals.Summary,
			"fallback":   signals.Fallback,
			"decision":   decision,
		}
		return cli.PrintJSON(os.Stdout, data)
	}

	fmt.Printf("Category:   %s\n", signals.Category)
	fmt.Printf("Priority:   %s\n", signals.Priority)
	fmt.Printf("Sentiment:  %s\n", signals.Sentiment)
	fmt.Printf("Risk:       %s\n", signals.Risk)
	fmt.Printf("Confidence: %.2f\n", signals.Confidence)
	fmt.Printf("Summary:    %s\n", signals.Summary)
	if signals.Fallback {
		fmt.Println("(classifier output was unusable; fallback signals applied)")
	}
	fmt.Printf("Decision:   %s\n", decision)
	return nil
}
