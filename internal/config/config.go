package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Gallery   GalleryConfig   `yaml:"gallery"`
	Match     MatchConfig     `yaml:"match"`
	Enroll    EnrollConfig    `yaml:"enroll"`
	Embedding EmbeddingConfig `yaml:"-"`
	Database  DatabaseConfig  `yaml:"-"`
	Cache     CacheConfig     `yaml:"-"`
	Web       WebConfig       `yaml:"-"`
	Log       LogConfig       `yaml:"-"`
}

type GalleryConfig struct {
	Dir               string  `yaml:"-"`
	Index             string  `yaml:"index"` // auto, linear or hnsw
	ANNThreshold      int     `yaml:"ann_threshold"`
	Seed              int64   `yaml:"seed"`
	OutlierStdDevs    float64 `yaml:"outlier_stddevs"`
	Diversity         float64 `yaml:"diversity"`
	MaxClusters       int     `yaml:"max_clusters"`
	MinClusterSamples int     `yaml:"min_cluster_samples"`
}

type MatchConfig struct {
	TopK           int     `yaml:"top_k"`
	AcceptDistance float64 `yaml:"accept_distance"`
	VoteDistance   float64 `yaml:"vote_distance"`
	VoteCandidates int     `yaml:"vote_candidates"`
	VoteShare      float64 `yaml:"vote_share"`
}

type EnrollConfig struct {
	MinFacePx      float64 `yaml:"min_face_px"`
	MaxRollDegrees float64 `yaml:"max_roll_degrees"`
	MaxImagePx     int     `yaml:"max_image_px"`
}

type EmbeddingConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // cache key component, defaults to "face"
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for the embedding cache
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type CacheConfig struct {
	SQLitePath string // local embedding cache, used when DATABASE_URL is empty
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type LogConfig struct {
	Level string
	File  string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envInt64 is like envInt but accepts zero and negative values.
func envInt64(key string, defaultVal int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Defaults returns the embedded defaults without applying the environment.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load reads the configuration from the environment, falling back to the
// embedded defaults for anything unset or invalid.
func Load() *Config {
	cfg := Defaults()
	g, m, e := cfg.Gallery, cfg.Match, cfg.Enroll

	cfg.Gallery = GalleryConfig{
		Dir:               envString("GALLERY_DIR", "data/gallery"),
		Index:             strings.ToLower(envString("GALLERY_INDEX", g.Index)),
		ANNThreshold:      envInt("GALLERY_ANN_THRESHOLD", g.ANNThreshold),
		Seed:              envInt64("GALLERY_SEED", g.Seed),
		OutlierStdDevs:    envFloat("GALLERY_OUTLIER_STDDEVS", g.OutlierStdDevs),
		Diversity:         envFloat("GALLERY_DIVERSITY", g.Diversity),
		MaxClusters:       envInt("GALLERY_MAX_CLUSTERS", g.MaxClusters),
		MinClusterSamples: envInt("GALLERY_MIN_CLUSTER_SAMPLES", g.MinClusterSamples),
	}
	cfg.Match = MatchConfig{
		TopK:           envInt("MATCH_TOP_K", m.TopK),
		AcceptDistance: envFloat("MATCH_ACCEPT_DISTANCE", m.AcceptDistance),
		VoteDistance:   envFloat("MATCH_VOTE_DISTANCE", m.VoteDistance),
		VoteCandidates: envInt("MATCH_VOTE_CANDIDATES", m.VoteCandidates),
		VoteShare:      envFloat("MATCH_VOTE_SHARE", m.VoteShare),
	}
	cfg.Enroll = EnrollConfig{
		MinFacePx:      envFloat("ENROLL_MIN_FACE_PX", e.MinFacePx),
		MaxRollDegrees: envFloat("ENROLL_MAX_ROLL_DEG", e.MaxRollDegrees),
		MaxImagePx:     envInt("ENROLL_MAX_IMAGE_PX", e.MaxImagePx),
	}
	cfg.Embedding = EmbeddingConfig{
		URL:   os.Getenv("EMBEDDING_URL"),
		Model: os.Getenv("EMBEDDING_MODEL"),
	}
	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
	}
	cfg.Cache = CacheConfig{
		SQLitePath: os.Getenv("CACHE_SQLITE_PATH"),
	}
	cfg.Web = WebConfig{
		Host:           envString("WEB_HOST", "0.0.0.0"),
		Port:           envInt("WEB_PORT", 8080),
		AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
	}
	cfg.Log = LogConfig{
		Level: envString("LOG_LEVEL", "info"),
		File:  os.Getenv("LOG_FILE"),
	}
	return cfg
}
