package config

import (
	"io"
	"testing"
	"time"

	"github.com/siyamulislam/MLDApp/internal/picker"
	"github.com/siyamulislam/MLDApp/internal/predict"
	"github.com/siyamulislam/MLDApp/internal/screen"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, envMap(nil), io.Discard)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Endpoint != predict.DefaultEndpoint {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Timeout != 0 || cfg.Platform != picker.Android || cfg.Permission != PermissionAsk {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.StalePolicy != screen.DiscardStale || cfg.Local() || cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	env := envMap(map[string]string{
		"MLD_ENDPOINT": "http://env.example/predict",
		"MLD_PLATFORM": "ios",
		"MLD_TIMEOUT":  "5s",
		"MLD_DEBUG":    "true",
		"MLD_MODEL":    "/models/mango.onnx",
	})
	cfg, err := Load([]string{"-endpoint", "http://flag.example/predict", "-stale", "last-wins"}, env, io.Discard)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Endpoint != "http://flag.example/predict" {
		t.Errorf("flag should win over env, got %q", cfg.Endpoint)
	}
	if cfg.Platform != picker.IOS || cfg.Timeout != 5*time.Second || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.StalePolicy != screen.LastResolvedWins {
		t.Errorf("StalePolicy = %v", cfg.StalePolicy)
	}
	if !cfg.Local() || cfg.MetadataPath != "/models/mango_metadata.json" {
		t.Errorf("model paths = %q, %q", cfg.ModelPath, cfg.MetadataPath)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	bad := [][]string{
		{"-platform", "symbian"},
		{"-timeout", "soon"},
		{"-timeout", "-1s"},
		{"-camera-permission", "maybe"},
		{"-stale", "random"},
		{"-max-size", "-5"},
		{"-library", "a.jpg", "-camera"},
		{"-no-such-flag"},
	}
	for _, args := range bad {
		if _, err := Load(args, envMap(nil), io.Discard); err == nil {
			t.Errorf("Load(%v) expected error", args)
		}
	}
}
