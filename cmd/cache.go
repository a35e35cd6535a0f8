package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/database"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the embedding cache",
}

var cacheCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of cached embeddings",
	Args:  cobra.NoArgs,
	RunE:  runCacheCount,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached embeddings computed by a model",
	Long: `Remove every cached embedding computed by the given model. Use this after
the embedding service switched models, so the next rebuild re-extracts
stored images instead of mixing vectors from two models.`,
	Args: cobra.NoArgs,
	RunE: runCachePrune,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheCountCmd)
	cacheCmd.AddCommand(cachePruneCmd)

	cachePruneCmd.Flags().String("model", "", "Model whose embeddings are removed (required)")
	cachePruneCmd.Flags().Bool("json", false, "Output as JSON")
	cachePruneCmd.MarkFlagRequired("model")
}

// PruneOutput is the JSON result of cache prune.
type PruneOutput struct {
	Model     string `json:"model"`
	Removed   int64  `json:"removed"`
	Remaining int    `json:"remaining"`
}

func openConfiguredCache(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if a.cache == nil {
		a.Close()
		return nil, errors.New("no embedding cache configured (set DATABASE_URL or CACHE_SQLITE_PATH)")
	}
	return a, nil
}

func runCacheCount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openConfiguredCache(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.cache.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Cached embeddings: %d\n", n)
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	model := mustGetString(cmd, "model")
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := openConfiguredCache(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := pruneCache(ctx, a.cache, model)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(out)
	}
	fmt.Printf("Removed %d cached embeddings of model %q, %d remaining\n", out.Removed, out.Model, out.Remaining)
	return nil
}

func pruneCache(ctx context.Context, cache database.EmbeddingCache, model string) (*PruneOutput, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	removed, err := cache.DeleteModel(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("pruning cache: %w", err)
	}
	remaining, err := cache.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting cache: %w", err)
	}
	return &PruneOutput{Model: model, Removed: removed, Remaining: remaining}, nil
}
