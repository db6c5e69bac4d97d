package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/siyamulislam/MLDApp/internal/picker"
	"github.com/siyamulislam/MLDApp/internal/predict"
	"github.com/siyamulislam/MLDApp/internal/screen"
)

type Permission string

const (
	PermissionAsk   Permission = "ask"
	PermissionGrant Permission = "grant"
	PermissionDeny  Permission = "deny"
)

type Config struct {
	Endpoint  string
	Timeout   time.Duration
	Platform  picker.Platform
	CameraDir string
	// Library and Camera run a single cycle instead of the interactive loop.
	Library      string
	Camera       bool
	MaxDimension int
	Permission   Permission
	StalePolicy  screen.StalePolicy
	Title        string

	ModelPath    string
	MetadataPath string
	OnnxLibrary  string

	SentryDSN string
	Debug     bool
}

// Local reports whether predictions run on-device instead of over HTTP.
func (c Config) Local() bool {
	return c.ModelPath != ""
}

// Load parses flags, falling back to environment variables and then to
// built-in defaults.
func Load(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		cfg      Config
		platform string
		perm     string
		stale    string
		timeout  string
		debug    bool
	)
	fs := flag.NewFlagSet("leafscan", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.Endpoint, "endpoint", env("MLD_ENDPOINT", predict.DefaultEndpoint), "Prediction endpoint URL")
	fs.StringVar(&timeout, "timeout", env("MLD_TIMEOUT", "0"), "Upload timeout, e.g. 30s (0 = transport default)")
	fs.StringVar(&platform, "platform", env("MLD_PLATFORM", string(picker.Android)), "Platform URI convention: android|ios")
	fs.StringVar(&cfg.CameraDir, "camera-dir", env("MLD_CAMERA_DIR", "."), "Directory the camera saves shots into")
	fs.StringVar(&cfg.Library, "library", "", "Predict this photo once and exit")
	fs.BoolVar(&cfg.Camera, "camera", false, "Predict the newest camera shot once and exit")
	fs.IntVar(&cfg.MaxDimension, "max-size", 0, "Downscale photos so neither side exceeds this (0 = off)")
	fs.StringVar(&perm, "camera-permission", env("MLD_CAMERA_PERMISSION", string(PermissionAsk)), "Camera permission: ask|grant|deny")
	fs.StringVar(&stale, "stale", "discard", "Late responses: discard|last-wins")
	fs.StringVar(&cfg.Title, "title", screen.DefaultTitle, "Screen title")
	fs.StringVar(&cfg.ModelPath, "model", env("MLD_MODEL", ""), "Run on-device with this ONNX model instead of the endpoint")
	fs.StringVar(&cfg.MetadataPath, "metadata", env("MLD_MODEL_METADATA", ""), "Model metadata JSON (defaults next to -model)")
	fs.StringVar(&cfg.OnnxLibrary, "onnxruntime", env("ONNXRUNTIME_SHARED_LIBRARY_PATH", ""), "Path to the onnxruntime shared library")
	fs.StringVar(&cfg.SentryDSN, "sentry-dsn", env("SENTRY_DSN", ""), "Report prediction failures to Sentry")
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.Platform, err = picker.ParsePlatform(platform); err != nil {
		return Config{}, err
	}
	if cfg.Timeout, err = parseTimeout(timeout); err != nil {
		return Config{}, err
	}
	switch Permission(perm) {
	case PermissionAsk, PermissionGrant, PermissionDeny:
		cfg.Permission = Permission(perm)
	default:
		return Config{}, fmt.Errorf("unknown camera permission %q", perm)
	}
	switch stale {
	case "discard":
		cfg.StalePolicy = screen.DiscardStale
	case "last-wins":
		cfg.StalePolicy = screen.LastResolvedWins
	default:
		return Config{}, fmt.Errorf("unknown stale policy %q", stale)
	}
	if cfg.MaxDimension < 0 {
		return Config{}, fmt.Errorf("max-size must not be negative")
	}
	if cfg.Library != "" && cfg.Camera {
		return Config{}, fmt.Errorf("-library and -camera are mutually exclusive")
	}
	if cfg.Local() && cfg.MetadataPath == "" {
		cfg.MetadataPath = strings.TrimSuffix(cfg.ModelPath, ".onnx") + "_metadata.json"
	}
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)

	cfg.Debug = debug
	if !debug {
		cfg.Debug, _ = strconv.ParseBool(getenv("MLD_DEBUG"))
	}
	return cfg, nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	return d, nil
}
