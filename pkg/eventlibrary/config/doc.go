/*
Package config loads library system settings from YAML, JSON, and the
environment.

# Raw access

Config wraps a decoded document and extracts typed values with defaults.
Keys may be dotted paths into nested sections:

	cfg, err := config.FromFile("eventlibrary.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	period := cfg.Duration("library.loan_period", 14*24*time.Hour)
	limit := cfg.Int("library.limits.standard", 3)
	audit := cfg.Section("audit")

Durations accept Go duration strings ("1h30m"), whole days ("14d"), or
numbers of seconds.

# Settings

Settings is the typed view the rest of the module consumes:

	settings, err := config.Load("eventlibrary.yaml")

Load starts from Defaults, overlays the file, then applies EVENTLIBRARY_*
environment variables (EVENTLIBRARY_LOAN_PERIOD, EVENTLIBRARY_LOG_LEVEL,
EVENTLIBRARY_SNAPSHOT_BACKEND, ...) and validates the result.

# Thread Safety

Config and Settings are values and are safe for concurrent reads.
*/
package config
