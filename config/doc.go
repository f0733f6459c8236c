// Package config loads client configuration from files, the environment
// and command line flags, and keeps named connection profiles.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s), merged left to right
//  3. Environment variables (MANTA_ prefix)
//  4. Flags
//
// Without explicit files, ./manta.yaml is read if present.
//
// # Usage
//
//	cfg, err := config.Load([]string{"manta.yaml"}, flags)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	logger, err := cfg.Logger(os.Stderr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c, err := cfg.NewClient(logger, metrics.New())
//
// # Environment Variables
//
// Keys map to MANTA_ variables with dots replaced by underscores:
//   - url → MANTA_URL
//   - key_id → MANTA_KEY_ID
//   - log.level → MANTA_LOG_LEVEL
//
// # Profiles
//
// A ProfileFile is a yaml list of named accounts. ApplyProfile copies the
// connection settings of one into a Config wherever the Config has none.
package config
