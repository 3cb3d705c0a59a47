package telemetry

// Config holds OpenTelemetry tracing configuration
type Config struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of logins traced, 0.0 to 1.0
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`

	ServiceName    string `mapstructure:"-" yaml:"-"`
	ServiceVersion string `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
		ServiceName:    "labgate",
		ServiceVersion: "dev",
	}
}
