package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the tool reads.
const EnvPrefix = "MSQC_"

// LoadEnv loads a .env file from the working directory when present and
// applies MSQC_* environment overrides to cfg. Flags parsed afterwards take
// precedence over anything set here.
func LoadEnv(cfg *Config) error {
	_ = godotenv.Load()
	return applyEnv(cfg, os.LookupEnv)
}

// applyEnv copies recognised variables into cfg using lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"STATUS_LOG", &cfg.StatusLog},
		{"WEB_DIR", &cfg.WebDir},
		{"NIST_HOME", &cfg.NISTHome},
		{"MSCONVERT", &cfg.MSConvert},
		{"PERL", &cfg.Perl},
		{"RSCRIPT", &cfg.Rscript},
		{"GRAPHICS_SCRIPT", &cfg.GraphicsScript},
		{"LIBRARY", &cfg.Library},
		{"INSTRUMENT", &cfg.Instrument},
		{"TEMPLATE", &cfg.Template},
		{"SERVE", &cfg.Serve},
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"S3_ENDPOINT", &cfg.S3.Endpoint},
		{"S3_BUCKET", &cfg.S3.Bucket},
		{"S3_PREFIX", &cfg.S3.Prefix},
		{"S3_ACCESS_KEY", &cfg.S3.AccessKey},
		{"S3_SECRET_KEY", &cfg.S3.SecretKey},
		{"S3_REGION", &cfg.S3.Region},
		{"LOG", &cfg.LogFile},
	}
	for _, s := range strs {
		if v, ok := get(s.key); ok {
			*s.dst = v
		}
	}

	durs := []struct {
		key string
		dst *time.Duration
	}{
		{"TOOL_TIMEOUT", &cfg.ToolTimeout},
		{"WATCH", &cfg.Watch},
	}
	for _, d := range durs {
		if v, ok := get(d.key); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, d.key, err)
			}
			*d.dst = parsed
		}
	}

	if v, ok := get("TOOL_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTOOL_RETRIES must be a whole number (got %q)", EnvPrefix, v)
		}
		cfg.ToolRetries = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"S3_SSL", &cfg.S3.UseSSL},
		{"STRICT_METRICS", &cfg.StrictMetrics},
		{"VERBOSE", &cfg.Verbose},
	}
	for _, b := range bools {
		if v, ok := get(b.key); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, b.key, err)
			}
			*b.dst = parsed
		}
	}

	if v, ok := get("COLOR"); ok {
		cfg.ColorMode = ColorMode(strings.ToLower(v))
	}
	return nil
}
