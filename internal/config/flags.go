package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagStrict    = flag.Bool("strict", false, "Reject trailing data when reading assets")
	flagOut       = flag.String("out", "", "Output directory for exported assets")
	flagOverwrite = flag.Bool("overwrite", false, "Overwrite existing assets")
	flagProfile   = flag.String("profile", "", "Write a profile: cpu or mem")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments left after ParseFlags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagStrict {
		cfg.Import.Strict = true
	}
	if *flagOut != "" {
		cfg.Export.OutputDir = *flagOut
	}
	if *flagOverwrite {
		cfg.Export.Overwrite = true
	}
	if *flagProfile != "" {
		cfg.Debug.Profile = *flagProfile
	}
}
