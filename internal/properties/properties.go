package properties

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every tunable of the pipeline. Values come from defaults, the
// environment (optionally seeded from a .env file) and bound CLI flags.
type Config struct {
	RootPath     string
	DataDir      string
	ProcessedDir string
	Workers      int
	DryRun       bool
	LogLevel     string

	QueryCRS     string
	RasterCRS    string
	QueryTimeout time.Duration
	GCPProject   string

	DownloadRate        float64
	DownloadConcurrency int
	S3Endpoint          string
	S3AccessKey         string
	S3SecretKey         string
	S3Region            string
	S3UseSSL            bool

	FontPath string

	GrassBin         string
	GrassDB          string
	GrassEPSG        int
	GrassDockerImage string

	Revision         string
	NotifyWebhookURL string
}

const (
	DefaultQueryCRS  = "EPSG:4326"
	DefaultRasterCRS = "+proj=utm +zone=20 +datum=WGS84 +units=m +no_defs"
	DefaultFontPath  = "/usr/share/fonts/truetype/roboto/hinted/Roboto-Bold.ttf"
)

// LoadEnv loads the first environment file that exists, trying paths in
// order and then .env and ../.env. Values already set in the environment win.
func LoadEnv(paths ...string) {
	for _, p := range append(paths, ".env", "../.env") {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

// NewViper returns a viper instance with the defaults set and the
// environment bound. Keys match the environment variable names in lower case.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("root_path", ".")
	v.SetDefault("data_dir", "data/")
	v.SetDefault("processed_dir", "processed_data/")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("dry_run", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("query_crs", DefaultQueryCRS)
	v.SetDefault("raster_crs", DefaultRasterCRS)
	v.SetDefault("query_timeout", "10s")
	v.SetDefault("gcp_project", "")
	v.SetDefault("download_rate", 0.0)
	v.SetDefault("download_concurrency", 8)
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_region", "us-west-2")
	v.SetDefault("s3_use_ssl", true)
	v.SetDefault("font_path", DefaultFontPath)
	v.SetDefault("grass_bin", "grass")
	v.SetDefault("grass_db", "/tmp/grassdb")
	v.SetDefault("grass_epsg", 32620)
	v.SetDefault("grass_docker_image", "")
	v.SetDefault("pipeline_revision", "")
	v.SetDefault("notify_webhook_url", "")

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func Load(v *viper.Viper) (*Config, error) {
	timeout, err := time.ParseDuration(v.GetString("query_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUERY_TIMEOUT: %w", err)
	}

	cfg := &Config{
		RootPath:            v.GetString("root_path"),
		DataDir:             v.GetString("data_dir"),
		ProcessedDir:        v.GetString("processed_dir"),
		Workers:             v.GetInt("workers"),
		DryRun:              v.GetBool("dry_run"),
		LogLevel:            v.GetString("log_level"),
		QueryCRS:            v.GetString("query_crs"),
		RasterCRS:           v.GetString("raster_crs"),
		QueryTimeout:        timeout,
		GCPProject:          v.GetString("gcp_project"),
		DownloadRate:        v.GetFloat64("download_rate"),
		DownloadConcurrency: v.GetInt("download_concurrency"),
		S3Endpoint:          v.GetString("s3_endpoint"),
		S3AccessKey:         v.GetString("s3_access_key"),
		S3SecretKey:         v.GetString("s3_secret_key"),
		S3Region:            v.GetString("s3_region"),
		S3UseSSL:            v.GetBool("s3_use_ssl"),
		FontPath:            v.GetString("font_path"),
		GrassBin:            v.GetString("grass_bin"),
		GrassDB:             v.GetString("grass_db"),
		GrassEPSG:           v.GetInt("grass_epsg"),
		GrassDockerImage:    v.GetString("grass_docker_image"),
		Revision:            v.GetString("pipeline_revision"),
		NotifyWebhookURL:    v.GetString("notify_webhook_url"),
	}
	if cfg.Revision == "" {
		cfg.Revision = buildRevision()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}
	if c.DownloadRate < 0 {
		return fmt.Errorf("DOWNLOAD_RATE must not be negative, got %g", c.DownloadRate)
	}
	if c.DownloadConcurrency <= 0 {
		return fmt.Errorf("DOWNLOAD_CONCURRENCY must be positive, got %d", c.DownloadConcurrency)
	}
	if c.QueryCRS == "" || c.RasterCRS == "" {
		return fmt.Errorf("QUERY_CRS and RASTER_CRS are required")
	}
	return nil
}

func buildRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return "dev"
}
