package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/chatauth/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations accept
// "1m" style strings or integer nanoseconds. Absent keys keep the current
// values.
type JsonConfig struct {
	DatabaseDSN        *string         `json:"database_dsn"`
	HashCost           *int            `json:"hash_cost"`
	S3RootUser         *string         `json:"s3_root_user"`
	S3RootPassword     *string         `json:"s3_root_password"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	S3PublicURL        *string         `json:"s3_public_url"`
	AvatarMaxBytes     *int64          `json:"avatar_max_bytes"`
	ReconcileInterval  *timex.Duration `json:"reconcile_interval"`
	ReconcileBatchSize *int            `json:"reconcile_batch_size"`
	LogLevel           *string         `json:"log_level"`
}

// parseJSON overlays values from the JSON file at path; an empty path loads nothing.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.HashCost, c.HashCost)
	setIf(&config.S3RootUser, c.S3RootUser)
	setIf(&config.S3RootPassword, c.S3RootPassword)
	setIf(&config.S3Bucket, c.S3Bucket)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setIf(&config.S3PublicURL, c.S3PublicURL)
	setIf(&config.AvatarMaxBytes, c.AvatarMaxBytes)
	setIf(&config.ReconcileBatchSize, c.ReconcileBatchSize)
	setIf(&config.LogLevel, c.LogLevel)
	if c.ReconcileInterval != nil {
		config.ReconcileInterval = c.ReconcileInterval.Duration
	}
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
