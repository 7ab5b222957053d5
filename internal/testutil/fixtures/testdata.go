// Package fixtures provides shared test data constants for the
// StricklySoft functions platform test suite.
//
// Using common constants for test identities and descriptors prevents
// magic strings in tests and ensures consistency across packages.
package fixtures

// Standard function identity values used across lifecycle and
// integration tests.
const (
	// FunctionName is the default function name for unit tests.
	FunctionName = "orders"

	// FunctionVersion is the default function version for unit tests.
	FunctionVersion = "1.0.0"

	// AltFunctionName is an alternative function name for tests
	// requiring two functions.
	AltFunctionName = "inventory"
)

// Standard identity values used in auth tests.
const (
	// TestSubject is the default subject claim for test tokens.
	TestSubject = "user-abc-123"

	// TestIssuer is the default issuer for test tokens.
	TestIssuer = "https://auth.stricklysoft.test"

	// TestAudience is the default audience for test tokens.
	TestAudience = "stricklysoft-functions"

	// TestSigningKey is a 32-byte HMAC signing key for local issuer
	// tests. A deliberately weak credential suitable only for tests.
	TestSigningKey = "0123456789abcdef0123456789abcdef"

	// TestRole is the default role granted to test subjects.
	TestRole = "user"

	// AdminRole is the elevated role used in authorization tests.
	AdminRole = "admin"
)

// Standard declarative descriptors used in add-on and parser tests.
const (
	// TestDescriptorJSON is a minimal valid function descriptor wiring
	// the HTTP and JWT add-ons with a local issuer.
	TestDescriptorJSON = `{
  "HTTP": {
    "session": {"_type": "MemorySessionManager"}
  },
  "JWT": {
    "issuers": [
      {
        "_type": "LocalJwtIssuer",
        "issuer": "https://auth.stricklysoft.test",
        "audiences": ["stricklysoft-functions"],
        "roles": ["user"],
        "key": "0123456789abcdef0123456789abcdef"
      }
    ]
  }
}`

	// TestHMACDescriptorJSON is a minimal descriptor wiring the HMAC
	// add-on.
	TestHMACDescriptorJSON = `{
  "HTTP": {},
  "HMAC": {
    "secret": "0123456789abcdef0123456789abcdef",
    "algorithm": "sha256",
    "encoding": "hex"
  }
}`
)

// Standard database configuration values used in storage tests.
const (
	// TestDBHost is the default database host for test configurations.
	TestDBHost = "localhost"

	// TestDBPort is the default database port for test configurations.
	TestDBPort = 5432

	// TestDBName is the default database name for test configurations.
	TestDBName = "testdb"

	// TestDBUser is the default database user for test configurations.
	TestDBUser = "testuser"

	// TestDBPassword is the default database password for test
	// configurations. A deliberately weak credential suitable only for
	// ephemeral test setups.
	TestDBPassword = "testpassword"
)
