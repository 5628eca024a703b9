package admin

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/supportiq/internal/cli"
	"github.com/cloo-solutions/supportiq/internal/domain"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the knowledge index",
		Long:  "Build and query the semantic retrieval index over the FAQ corpus",
	}

	cmd.AddCommand(IndexBuildCmd())
	cmd.AddCommand(IndexQueryCmd())

	return cmd
}

func IndexBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index from the corpus",
		Long:  "Embed every corpus entry, persist the snapshot to the configured store and report its size",
		Args:  cobra.NoArgs,
		RunE:  runIndexBuild,
	}
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := a.indexManager(ctx)
	if err != nil {
		return err
	}
	if err := manager.Rebuild(ctx); err != nil {
		return err
	}

	snap := manager.Index().Snapshot()
	fmt.Printf("Index built: %d chunks, dimension %d, store %s\n", snap.Len(), snap.Dimension(), a.cfg.SnapshotStore)
	return nil
}

func IndexQueryCmd() *cobra.Command {
	var (
		k         int
		threshold float32
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Query the index",
		Long:  "Return the corpus chunks within the distance threshold of the text, nearest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			return runIndexQuery(cmd, args[0], k, threshold, format)
		},
	}

	cli.AddOutputFlag(cmd, false)
	cmd.Flags().IntVar(&k, "k", 0, "Maximum number of results (default from SUPPORTIQ_RETRIEVAL_K)")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Maximum squared L2 distance (default from SUPPORTIQ_RETRIEVAL_THRESHOLD)")

	return cmd
}

func runIndexQuery(cmd *cobra.Command, text string, k int, threshold float32, format cli.Format) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !cmd.Flags().Changed("k") {
		k = a.cfg.RetrievalK
	}
	if !cmd.Flags().Changed("threshold") {
		threshold = a.cfg.RetrievalThreshold
	}

	manager, err := a.indexManager(ctx)
	if err != nil {
		return err
	}
	if err := manager.LoadOrBuild(ctx); err != nil {
		return err
	}

	result, err := manager.Index().Query(ctx, text, k, threshold)
	if err != nil {
		return err
	}

	return printRetrieval(result, format)
}

func printRetrieval(result domain.RetrievalResult, format cli.Format) error {
	if format == cli.FormatJSON {
		data := make([]map[string]interface{}, len(result))
		for i, hit := range result {
			data[i] = map[string]interface{}{
				"source_index": hit.Chunk.SourceIndex,
				"distance":     hit.Distance,
				"text":         hit.Chunk.Text,
			}
		}
		return cli.PrintJSON(os.Stdout, data)
	}

	if len(result) == 0 {
		fmt.Println("No chunks within threshold")
		return nil
	}
	for _, hit := range result {
		fmt.Printf("  [%d] %.4f  %s\n", hit.Chunk.SourceIndex, hit.Distance, hit.Chunk.Text)
	}
	return nil
}
