package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/recognition"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>...",
	Short: "Recognize the faces in one or more images",
	Long: `Rebuild the gallery, then detect every face in each image and match it
against the enrolled identities.

Examples:
  face-gallery recognize party.jpg
  face-gallery recognize *.jpg --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

// RecognizeOutput is the JSON output of one recognized image.
type RecognizeOutput struct {
	File  string                   `json:"file"`
	Error string                   `json:"error,omitempty"`
	Faces []recognition.FaceResult `json:"faces"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.svc.Rebuild(ctx); err != nil {
		return err
	}

	results := make([]RecognizeOutput, 0, len(args))
	for _, path := range args {
		out := RecognizeOutput{File: path, Faces: []recognition.FaceResult{}}
		data, err := os.ReadFile(path)
		if err != nil {
			out.Error = err.Error()
			results = append(results, out)
			continue
		}
		rec, err := a.svc.Recognize(ctx, data)
		if err != nil {
			out.Error = err.Error()
		} else {
			out.Faces = rec.Faces
		}
		results = append(results, out)
	}

	if jsonOutput {
		return outputJSON(results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tFACE\tNAME\tDISTANCE\tCONFIDENCE\tDECISION")
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s\t-\terror: %s\t\t\t\n", r.File, r.Error)
			continue
		}
		if len(r.Faces) == 0 {
			fmt.Fprintf(w, "%s\t-\tno faces\t\t\t\n", r.File)
			continue
		}
		for i, f := range r.Faces {
			fmt.Fprintf(w, "%s\t%d\t%s\t%.3f\t%.2f\t%s\n", r.File, i, f.Name, f.Distance, f.Confidence, f.Decision)
		}
	}
	return w.Flush()
}
