package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/recognition"
	"github.com/kozaktomas/face-gallery/internal/storage"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>...",
	Short: "Add images of a person to the gallery",
	Long: `Enroll one or more images into an identity. Each image is normalized, its
largest face must be at least ENROLL_MIN_FACE_PX wide and tall with a head
roll within ENROLL_MAX_ROLL_DEG, and near-identical copies are refused.

Examples:
  face-gallery enroll "Jane Doe" jane1.jpg jane2.jpg --create`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("create", false, "Create the identity if it does not exist")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

// EnrollOutput is the JSON output of one enrolled image.
type EnrollOutput struct {
	File   string                    `json:"file"`
	Error  string                    `json:"error,omitempty"`
	Result *recognition.EnrollResult `json:"result,omitempty"`
}

func runEnroll(cmd *cobra.Command, args []string) error {
	create := mustGetBool(cmd, "create")
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	name := args[0]
	if create {
		created, err := a.svc.CreateIdentity(name)
		switch {
		case err == nil:
			name = created
			if !jsonOutput {
				fmt.Printf("Created identity %s\n", created)
			}
		case errors.Is(err, storage.ErrIdentityExists):
		default:
			return err
		}
	}

	var outputs []EnrollOutput
	failed := 0
	for _, path := range args[1:] {
		out := EnrollOutput{File: path}
		data, err := os.ReadFile(path)
		if err == nil {
			out.Result, err = a.svc.Enroll(ctx, name, data)
		}
		if err != nil {
			failed++
			out.Error = err.Error()
			if !jsonOutput {
				fmt.Printf("✗ %s: %v\n", path, err)
			}
		} else if !jsonOutput {
			q := out.Result.Quality
			fmt.Printf("✓ %s -> %s/%s (face %.0fx%.0f, roll %s)\n",
				path, out.Result.Identity, out.Result.Image, q.Width, q.Height, formatRoll(q))
		}
		outputs = append(outputs, out)
	}

	if jsonOutput {
		if err := outputJSON(outputs); err != nil {
			return err
		}
	}
	if failed == len(args)-1 {
		return fmt.Errorf("no image of %s was enrolled", name)
	}
	return nil
}

func formatRoll(q facematch.QualityReport) string {
	if q.RollStatus != facematch.RollChecked {
		return string(q.RollStatus)
	}
	return fmt.Sprintf("%.1f°", q.RollDegrees)
}
