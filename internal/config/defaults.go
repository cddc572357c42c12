package config

const (
	defaultWorkers    = 4
	defaultDebounceMS = 500
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Recovery.VolumesRoot == "" {
		cfg.Recovery.VolumesRoot = "/Volumes"
	}
	if cfg.Recovery.OutputDir == "" {
		cfg.Recovery.OutputDir = "~/Desktop/lula-notes"
	}
	if cfg.Recovery.Workers == 0 {
		cfg.Recovery.Workers = defaultWorkers
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/lula/data/manifest.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/lula/data/index"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = defaultDebounceMS
	}
}
