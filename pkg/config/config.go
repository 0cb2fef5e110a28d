// Package config loads the harness's process-wide, init-time settings from
// the environment, following the same getEnv-with-default plus godotenv
// pattern as the teacher's cmd/tarsy/main.go (spec §6 "Configuration",
// SPEC_FULL §1).
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/store"
)

// Config holds every setting the harness's worker binary needs at startup.
// Missing required config is fatal (spec §7 error kind 1).
type Config struct {
	HTTPPort  string
	GinMode   string
	RuleName  string
	BusPrefix string

	Store   store.Config
	Archive archive.Config
}

// Load reads and validates the harness's configuration. configDir, if
// non-empty, is searched for a ".env" file to seed the environment before
// reading it — same layering as the teacher's CONFIG_DIR flag.
func Load(configDir string) (Config, error) {
	if configDir != "" {
		envPath := filepath.Join(configDir, ".env")
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("warning: could not load %s: %v", envPath, err)
		} else {
			log.Printf("loaded environment from %s", envPath)
		}
	}

	storeCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("store config: %w", err)
	}

	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return Config{}, fmt.Errorf("S3_BUCKET is required")
	}

	archiveCfg := archive.Config{
		Bucket:          bucket,
		Region:          getEnv("AWS_REGION", "us-east-1"),
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "false") == "true",
	}

	ruleName := os.Getenv("RULE_NAME")
	if ruleName == "" {
		return Config{}, fmt.Errorf("RULE_NAME is required")
	}

	return Config{
		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		RuleName:  ruleName,
		BusPrefix: getEnv("EVENT_BUS_CHANNEL_PREFIX", "eventharness"),
		Store:     storeCfg,
		Archive:   archiveCfg,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
