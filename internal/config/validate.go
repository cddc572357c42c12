package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate checks cfg after defaults have been applied.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Recovery),
		validation.Field(&c.Storage),
		validation.Field(&c.Server),
		validation.Field(&c.Watch),
	)
}

// Validate implements validation.Validatable.
func (r RecoveryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.VolumesRoot, validation.Required),
		validation.Field(&r.OutputDir, validation.Required),
		validation.Field(&r.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// Validate implements validation.Validatable.
func (s StorageConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DatabasePath, validation.Required),
		validation.Field(&s.IndexPath, validation.Required),
	)
}

// Validate implements validation.Validatable.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Host, validation.Required),
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Validate implements validation.Validatable.
func (w WatchConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Directories, validation.Each(validation.Required)),
		validation.Field(&w.DebounceMS, validation.Min(0), validation.Max(60000)),
	)
}
