package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/gallery"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the gallery from the stored identity images",
	Long: `Extract embeddings for every stored image (using the embedding cache when
configured), condense each identity into representatives and build the index.

Prints a per-identity report: images used, images skipped, outliers removed
and representatives kept. Identities without any usable image are listed as
omitted.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)

	rebuildCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.svc.IdentityCount()
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	var opts []gallery.RebuildOption
	var bar *progressbar.ProgressBar
	if !jsonOutput && count > 0 {
		bar = progressbar.NewOptions(count,
			progressbar.OptionSetDescription("Rebuilding gallery"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("identities"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		opts = append(opts, gallery.WithProgress(func(string) { bar.Add(1) }))
	}

	report, err := a.svc.Rebuild(ctx, opts...)
	if err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	if jsonOutput {
		return outputJSON(report)
	}
	printRebuildReport(report)
	return nil
}

func printRebuildReport(report *gallery.RebuildReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tIMAGES\tUSED\tOUTLIERS\tREPRESENTATIVES\tNOTE")
	for _, id := range report.Identities {
		var notes []string
		if id.Omitted {
			notes = append(notes, "omitted")
		}
		if len(id.SkippedImages) > 0 {
			notes = append(notes, fmt.Sprintf("skipped %s", strings.Join(id.SkippedImages, ", ")))
		}
		if id.Degenerate {
			notes = append(notes, "outlier filter disabled")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			id.Label, id.Images, id.Embeddings, id.Outliers, id.Representatives, strings.Join(notes, "; "))
	}
	w.Flush()

	fmt.Printf("\nGallery: %d representatives, dimension %d, %s index, built in %s\n",
		report.Size, report.Dimension, report.Backend, report.Duration.Round(time.Millisecond))
	if report.IndexFallback {
		fmt.Printf("Warning: approximate index unavailable (%s), using linear scan\n", report.IndexError)
	}
}
