// Package minio provides the S3-compatible object store client backing
// the functions platform's blob bindings, with OpenTelemetry tracing and
// structured error handling.
//
// # Role on the Platform
//
// The Storage add-on configures one client per function app. Functions
// that declare blob bindings read and write objects through it during
// their load and save phases; the client itself carries no binding
// semantics, only tracing and error classification over minio-go.
//
// # Configuration
//
// Create a client using [NewClient] with a [Config]:
//
//	cfg := minio.DefaultConfig()
//	cfg.AccessKey = "blob-access"
//	cfg.SecretKey = minio.Secret(os.Getenv("BLOB_SECRET_KEY"))
//	client, err := minio.NewClient(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For testing, use [NewFromStore] to inject a mock [ObjectStore].
package minio

import (
	"fmt"
)

// maxStatementTruncateLen is the maximum length for object store statements
// recorded in OpenTelemetry trace spans.
const maxStatementTruncateLen = 100

// Default connection settings for a local S3-compatible endpoint.
const (
	// DefaultEndpoint is the endpoint used when none is configured.
	DefaultEndpoint = "localhost:9000"

	// DefaultRegion is the region reported to the S3 API.
	DefaultRegion = "us-east-1"
)

// Secret is a string type that prevents accidental logging of sensitive
// values such as secret keys. Its [Secret.String] and [Secret.GoString]
// methods return a redacted placeholder. Use [Secret.Value] to retrieve
// the actual secret value.
type Secret string

// redacted is the placeholder string returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]" to prevent accidental logging of the secret.
func (s Secret) String() string {
	return redacted
}

// GoString returns "[REDACTED]" for fmt.Sprintf("%#v", secret) safety.
func (s Secret) GoString() string {
	return redacted
}

// Value returns the actual secret string. Handle the returned value with
// care; avoid logging, serializing, or storing it in plaintext.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]" to
// prevent the secret from appearing in JSON, YAML, or other text-based
// serialization formats.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config holds the object store connection configuration. The env struct
// tags document the environment variable names the host config loader
// reads; the declarative Storage section maps onto the same fields.
type Config struct {
	// Endpoint is the S3-compatible endpoint, host:port without scheme.
	// Default: "localhost:9000"
	// Environment variable: BLOB_ENDPOINT
	Endpoint string `json:"endpoint,omitempty" env:"BLOB_ENDPOINT"`

	// AccessKey is the access key id. Required.
	// Environment variable: BLOB_ACCESS_KEY
	AccessKey string `json:"access_key" env:"BLOB_ACCESS_KEY"`

	// SecretKey is the secret access key. Uses the [Secret] type to
	// prevent accidental logging. Required.
	// Environment variable: BLOB_SECRET_KEY
	SecretKey Secret `json:"-" env:"BLOB_SECRET_KEY"`

	// Region is the region reported to the S3 API.
	// Default: "us-east-1"
	// Environment variable: BLOB_REGION
	Region string `json:"region,omitempty" env:"BLOB_REGION"`

	// UseSSL enables TLS for the endpoint connection.
	// Default: false
	// Environment variable: BLOB_USE_SSL
	UseSSL bool `json:"use_ssl,omitempty" env:"BLOB_USE_SSL"`
}

// DefaultConfig returns a Config with default values suitable for a local
// MinIO instance. AccessKey and SecretKey have no defaults and must be
// set by the caller.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Region:   DefaultRegion,
	}
}

// Validate checks the configuration for missing or invalid values and
// applies defaults for zero-valued optional fields. Returns the first
// validation error encountered, or nil if the configuration is valid.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.AccessKey == "" {
		return fmt.Errorf("minio: config access_key must not be empty")
	}
	if c.SecretKey.Value() == "" {
		return fmt.Errorf("minio: config secret_key must not be empty")
	}
	return nil
}

// truncateStatement truncates an object store statement to
// [maxStatementTruncateLen] runes for safe inclusion in OpenTelemetry
// trace spans. Truncated statements are suffixed with "..." to indicate
// truncation.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
