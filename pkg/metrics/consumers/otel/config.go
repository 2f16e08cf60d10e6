// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package otel

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CompressionType represents the compression type for OTLP exports
type CompressionType string

const (
	CompressionGZip CompressionType = "gzip" // GZIP compression
	CompressionNone CompressionType = "none" // No compression
)

// String returns the string representation of the compression type
func (c CompressionType) String() string {
	return string(c)
}

// IsValid checks if the compression type is valid
func (c CompressionType) IsValid() bool {
	return c == CompressionGZip || c == CompressionNone
}

type Config struct {
	Enabled bool

	// OTLP gRPC configuration
	Endpoint string // OTLP gRPC endpoint (default: localhost:4317)
	Insecure bool   // Disable TLS (default: false)

	// Headers for gRPC metadata
	Headers map[string]string

	// Compression type for OTLP exports
	Compression CompressionType

	// Timeout for export operations
	Timeout time.Duration

	// Retry configuration
	RetryConfig RetryConfig

	// Resource attributes
	ServiceName    string // Service name (default: rtscope)
	ServiceVersion string // Service version

	// ExportInterval is how often the periodic reader pushes metrics
	ExportInterval time.Duration
}

// RetryConfig configures retry behavior for failed exports
type RetryConfig struct {
	Enabled        bool          // Enable retry logic
	MaxRetries     int           // Maximum number of retries
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:     false, // Disabled by default
		Endpoint:    "localhost:4317",
		Insecure:    false,
		Headers:     make(map[string]string),
		Compression: CompressionGZip,
		Timeout:     30 * time.Second,
		RetryConfig: RetryConfig{
			Enabled:        true,
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
		},
		ServiceName:    "rtscope",
		ServiceVersion: "",
		ExportInterval: 10 * time.Second,
	}
}

// ApplyEnvironmentVariables applies standard OTLP environment variables to the configuration.
// It follows the OpenTelemetry specification for environment variable names and precedence.
func (c *Config) ApplyEnvironmentVariables() {
	if endpoint := getEnvVar("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}

	if insecure := getEnvVar("OTEL_EXPORTER_OTLP_METRICS_INSECURE", "OTEL_EXPORTER_OTLP_INSECURE"); insecure != "" {
		if parsed, err := strconv.ParseBool(insecure); err == nil {
			c.Insecure = parsed
		}
	}

	if headers := getEnvVar("OTEL_EXPORTER_OTLP_METRICS_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS"); headers != "" {
		c.Headers = parseHeaders(headers)
	}

	if compression := getEnvVar("OTEL_EXPORTER_OTLP_METRICS_COMPRESSION", "OTEL_EXPORTER_OTLP_COMPRESSION"); compression != "" {
		compressionType := CompressionType(compression)
		if compressionType.IsValid() {
			c.Compression = compressionType
		}
	}

	if serviceName := os.Getenv("OTEL_SERVICE_NAME"); serviceName != "" {
		c.ServiceName = serviceName
	}

	if serviceVersion := os.Getenv("OTEL_SERVICE_VERSION"); serviceVersion != "" {
		c.ServiceVersion = serviceVersion
	}
}

// getEnvVar returns the first non-empty environment variable from the list
func getEnvVar(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}

// parseHeaders parses comma-separated key=value pairs into a map
func parseHeaders(headers string) map[string]string {
	result := make(map[string]string)
	pairs := strings.Split(headers, ",")

	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if key != "" {
				result[key] = value
			}
		}
	}

	return result
}

// Validate ensures the configuration is valid and normalizes zero values.
func (c *Config) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return ErrEndpointRequired
	}

	if c.Compression != "" && !c.Compression.IsValid() {
		return ErrInvalidCompressionType
	}
	if c.Compression == "" {
		c.Compression = CompressionGZip
	}

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	if c.ExportInterval <= 0 {
		c.ExportInterval = 10 * time.Second
	}

	if c.ServiceName == "" {
		c.ServiceName = "rtscope"
	}

	if c.RetryConfig.MaxRetries < 0 {
		c.RetryConfig.MaxRetries = 0
	}
	if c.RetryConfig.InitialBackoff <= 0 {
		c.RetryConfig.InitialBackoff = 1 * time.Second
	}
	if c.RetryConfig.MaxBackoff <= 0 {
		c.RetryConfig.MaxBackoff = 30 * time.Second
	}

	return nil
}

// Common errors
var (
	ErrEndpointRequired       = fmt.Errorf("OTLP endpoint is required when OpenTelemetry is enabled")
	ErrInvalidCompressionType = fmt.Errorf("compression type must be '%s' or '%s'", CompressionGZip, CompressionNone)
)
