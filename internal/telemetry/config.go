package telemetry

// Config carries the OTLP tracing settings. The zero value leaves
// tracing disabled; the serve and worker commands fill it from the
// platform configuration.
type Config struct {
	// Enabled turns span export on. When false, Init is a no-op and
	// every helper in this package produces noop spans.
	Enabled bool

	// ServiceName and ServiceVersion identify this process in the
	// trace backend.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address, host:port.
	Endpoint string

	// Insecure disables TLS on the collector connection. Meant for
	// local collectors and compose setups.
	Insecure bool

	// SampleRate is the head sampling ratio. Rates at or above 1
	// keep every trace, at or below 0 none.
	SampleRate float64
}
