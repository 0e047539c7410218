package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmylchreest/huematch/internal/colour"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestBuildFromEnv(t *testing.T) {
	env := map[string]string{
		EnvAddr:           "127.0.0.1:9000",
		EnvCatalog:        "/srv/catalog.yaml",
		EnvCatalogTable:   "hijabs",
		EnvTop:            "5",
		EnvColours:        "8",
		EnvQuality:        " 2 ",
		EnvMaxDimension:   "256",
		EnvAlgorithm:      "KMeans",
		EnvMetric:         "ciede2000",
		EnvMaxUploadBytes: "1048576",
		EnvWatch:          "true",
		EnvLogLevel:       "debug",
		EnvLogJSON:        "1",
	}

	cfg, err := NewBuilder().WithEnv(mapLookup(env)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := Config{
		Addr:           "127.0.0.1:9000",
		CatalogPath:    "/srv/catalog.yaml",
		CatalogTable:   "hijabs",
		TopN:           5,
		ColorCount:     8,
		Quality:        2,
		MaxDimension:   256,
		Algorithm:      colour.AlgorithmKMeans,
		Metric:         colour.MetricCIEDE2000,
		MaxUploadBytes: 1 << 20,
		Watch:          true,
		LogLevel:       "debug",
		LogJSON:        true,
	}
	if cfg != want {
		t.Errorf("Build() = %+v, want %+v", cfg, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestBuildPort(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "default", env: map[string]string{}, want: DefaultAddr},
		{name: "port", env: map[string]string{EnvPort: "3000"}, want: ":3000"},
		{name: "port with colon", env: map[string]string{EnvPort: ":3000"}, want: ":3000"},
		{name: "addr wins", env: map[string]string{EnvPort: "3000", EnvAddr: ":4000"}, want: ":4000"},
		{name: "empty addr ignored", env: map[string]string{EnvAddr: "  "}, want: DefaultAddr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewBuilder().WithEnv(mapLookup(tt.env)).Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if cfg.Addr != tt.want {
				t.Errorf("Addr = %q, want %q", cfg.Addr, tt.want)
			}
		})
	}
}

func TestBuildInvalidEnv(t *testing.T) {
	env := map[string]string{
		EnvTop:            "three",
		EnvWatch:          "sometimes",
		EnvMaxUploadBytes: "10MB",
	}
	_, err := NewBuilder().WithEnv(mapLookup(env)).Build()
	if err == nil {
		t.Fatal("Build() expected error")
	}
	for _, key := range []string{EnvTop, EnvWatch, EnvMaxUploadBytes} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty addr", mutate: func(c *Config) { c.Addr = "" }},
		{name: "empty catalog", mutate: func(c *Config) { c.CatalogPath = "" }},
		{name: "zero top", mutate: func(c *Config) { c.TopN = 0 }},
		{name: "zero colours", mutate: func(c *Config) { c.ColorCount = 0 }},
		{name: "zero quality", mutate: func(c *Config) { c.Quality = 0 }},
		{name: "negative max dimension", mutate: func(c *Config) { c.MaxDimension = -5 }},
		{name: "unknown algorithm", mutate: func(c *Config) { c.Algorithm = "octree" }},
		{name: "unknown metric", mutate: func(c *Config) { c.Metric = "manhattan" }},
		{name: "zero upload", mutate: func(c *Config) { c.MaxUploadBytes = 0 }},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestRecommendOptions(t *testing.T) {
	cfg := Default()
	cfg.TopN = 4
	opts := cfg.RecommendOptions()
	if opts.TopN != 4 || opts.MaxDimension != cfg.MaxDimension || opts.Metric != cfg.Metric {
		t.Errorf("RecommendOptions() = %+v", opts)
	}

	cfg.MaxDimension = 0
	if got := cfg.RecommendOptions().MaxDimension; got >= 0 {
		t.Errorf("disabled downscaling mapped to %d, want negative", got)
	}
}

func TestDotEnv(t *testing.T) {
	const key = "HUEMATCH_TEST_DOTENV_CATALOG"
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := EnvCatalog + "=/from/dotenv.csv\n" + key + "=yes\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	// The process environment takes precedence over the file.
	t.Setenv(EnvCatalog, "/from/env.csv")
	t.Cleanup(func() { os.Unsetenv(key) })

	cfg, err := NewBuilder().WithDotEnv(path).WithEnv(nil).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if cfg.CatalogPath != "/from/env.csv" {
		t.Errorf("CatalogPath = %q, want the environment value", cfg.CatalogPath)
	}
	if os.Getenv(key) != "yes" {
		t.Error(".env file was not loaded")
	}
}

func TestDotEnvSkippedInProduction(t *testing.T) {
	const key = "HUEMATCH_TEST_DOTENV_PRODUCTION"
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	env := map[string]string{EnvEnvironment: "production"}
	if _, err := NewBuilder().WithDotEnv(path).WithEnv(mapLookup(env)).Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := os.LookupEnv(key); ok {
		t.Error(".env file was loaded in production")
	}
}

func TestDotEnvMissingFile(t *testing.T) {
	_, err := NewBuilder().WithDotEnv(filepath.Join(t.TempDir(), "absent.env")).WithEnv(mapLookup(nil)).Build()
	if err != nil {
		t.Errorf("Build() with a missing .env error = %v", err)
	}
}
