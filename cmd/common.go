package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/database/postgres"
	"github.com/kozaktomas/face-gallery/internal/database/sqlite"
	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/logging"
	"github.com/kozaktomas/face-gallery/internal/matcher"
	"github.com/kozaktomas/face-gallery/internal/recognition"
	"github.com/kozaktomas/face-gallery/internal/storage"
)

// galleryOptions maps configuration onto gallery settings.
func galleryOptions(cfg config.GalleryConfig) gallery.Options {
	opts := gallery.DefaultOptions()
	opts.IndexMode = gallery.IndexMode(cfg.Index)
	opts.ANNThreshold = cfg.ANNThreshold
	opts.Builder.OutlierStdDevs = cfg.OutlierStdDevs
	opts.Builder.DiversityThreshold = cfg.Diversity
	opts.Builder.MaxClusters = cfg.MaxClusters
	opts.Builder.MinClusterSamples = cfg.MinClusterSamples
	opts.Builder.Seed = cfg.Seed
	return opts
}

// recognitionOptions maps configuration onto matching and enrollment settings.
func recognitionOptions(cfg *config.Config) recognition.Options {
	opts := recognition.DefaultOptions()
	opts.Policy = matcher.DefaultPolicy()
	opts.Policy.TopK = cfg.Match.TopK
	opts.Policy.AcceptDistance = cfg.Match.AcceptDistance
	opts.Policy.VoteDistance = cfg.Match.VoteDistance
	opts.Policy.VoteCandidates = cfg.Match.VoteCandidates
	opts.Policy.VoteShare = cfg.Match.VoteShare
	opts.Quality = facematch.QualityGate{
		MinFacePx:      cfg.Enroll.MinFacePx,
		MaxRollDegrees: cfg.Enroll.MaxRollDegrees,
	}
	opts.MaxImagePx = cfg.Enroll.MaxImagePx
	return opts
}

// openCache opens the embedding cache: PostgreSQL when DATABASE_URL is set,
// otherwise SQLite when CACHE_SQLITE_PATH is set. Returns nil when neither is.
func openCache(ctx context.Context, cfg *config.Config) (database.EmbeddingCache, error) {
	log := logging.For("cache")
	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		log.Info("Using PostgreSQL embedding cache")
		return postgres.NewCacheRepository(pool), nil
	case cfg.Cache.SQLitePath != "":
		cache, err := sqlite.Open(ctx, cfg.Cache.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite cache: %w", err)
		}
		log.WithField("path", cfg.Cache.SQLitePath).Info("Using SQLite embedding cache")
		return cache, nil
	default:
		log.Debug("No embedding cache configured")
		return nil, nil
	}
}

// app bundles the recognition service with the resources it owns.
type app struct {
	cfg   *config.Config
	svc   *recognition.Service
	store *storage.Store
	cache database.EmbeddingCache
}

// newApp wires storage, the embedding client, the optional cache and the gallery.
// The gallery starts empty; call svc.Rebuild to load it.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	store, err := storage.New(cfg.Gallery.Dir, logging.For("storage"))
	if err != nil {
		return nil, err
	}
	cache, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)
	g := gallery.New(galleryOptions(cfg.Gallery), logging.For("gallery"))
	svc := recognition.New(store, client, cache, g, recognitionOptions(cfg), logging.For("recognition"))

	return &app{cfg: cfg, svc: svc, store: store, cache: cache}, nil
}

// Close releases the cache connection.
func (a *app) Close() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Close(); err != nil {
		logging.For("cache").WithError(err).Warn("Failed to close embedding cache")
	}
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
