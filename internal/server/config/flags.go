package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/chatauth/internal/flagx"
)

var knownFlags = []string{"-d", "-cost", "-u", "-p", "-b", "-g", "-e", "-public", "-avatar-max", "-reconcile", "-batch", "-log"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-d string          PostgreSQL DSN
//	-cost int          bcrypt cost
//	-u string          S3 root user
//	-p string          S3 root password
//	-b string          S3 bucket name
//	-g string          S3 region
//	-e string          S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-public string     public base URL for avatar links
//	-avatar-max int    largest avatar upload in bytes
//	-reconcile dur     pending asset deletion retry interval (e.g., "30s")
//	-batch int         pending asset deletions handled per pass
//	-log string        log level
//
// Only the flags above are read from args; -c/-config belong to the JSON layer.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.HashCost, "cost", config.HashCost, "bcrypt cost")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicURL, "public", config.S3PublicURL, "public base URL for avatars")
	fs.Int64Var(&config.AvatarMaxBytes, "avatar-max", config.AvatarMaxBytes, "max avatar size in bytes")
	fs.DurationVar(&config.ReconcileInterval, "reconcile", config.ReconcileInterval, "asset deletion retry interval")
	fs.IntVar(&config.ReconcileBatchSize, "batch", config.ReconcileBatchSize, "asset deletions per pass")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
