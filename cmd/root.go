package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "face-gallery",
	Short: "Enroll people from photos and recognize them in new images",
	Long: `Face Gallery keeps a directory of enrolled identities, condenses each
identity's face embeddings into a few representatives and matches faces found
in new images against them.

Faces are detected and embedded by an external embedding service (EMBEDDING_URL).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	logging.Init(config.Load().Log)
}
