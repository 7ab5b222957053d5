package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, VAL, CFG) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Searchable: Codes can be used to find documentation and solutions
//   - Machine-readable: Suitable for automated error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization errors (403 Forbidden)
//	NF_xxx      - Not found errors (404 Not Found)
//	CFG_xxx     - Configuration errors (fatal at bootstrap; 500 if surfaced)
//	UNSUP_xxx   - Unsupported operation errors (501 Not Implemented)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when request input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when authentication fails or credentials are invalid.

	// CodeAuthentication indicates a general authentication failure
	// (missing token, unverifiable caller).
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the bearer token has expired.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates the bearer token is malformed
	// or could not be decoded.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// Authorization errors (AUTHZ_xxx) - HTTP 403
	// Used when the authenticated subject lacks required roles.

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationDenied indicates access to a resource is denied
	// by the role policy.
	CodeAuthorizationDenied Code = "AUTHZ_002"

	// Not found errors (NF_xxx) - HTTP 404
	// Used when a requested resource does not exist.

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundResource indicates the requested resource was not found.
	CodeNotFoundResource Code = "NF_002"

	// Configuration errors (CFG_xxx) - fatal at bootstrap
	// Used when the declarative configuration cannot be resolved. These
	// are programmer/operator errors: they abort bootstrap rather than
	// being recovered from at request time.

	// CodeConfiguration indicates a general configuration failure.
	CodeConfiguration Code = "CFG_001"

	// CodeConfigurationUnknownType indicates a declarative object carried
	// a type discriminant no parser in the chain recognizes.
	CodeConfigurationUnknownType Code = "CFG_002"

	// CodeConfigurationDependency indicates an add-on declared a
	// dependency on another add-on that is absent from the resolved set.
	CodeConfigurationDependency Code = "CFG_003"

	// Unsupported operation errors (UNSUP_xxx) - HTTP 501
	// Used when an operation has no implementation.

	// CodeUnsupported indicates a general unsupported operation
	// (an abstract method invoked without an override).
	CodeUnsupported Code = "UNSUP_001"

	// CodeUnsupportedVerb indicates an HTTP verb with no registered
	// handler in the function's verb table.
	CodeUnsupportedVerb Code = "UNSUP_002"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalStorage indicates a storage operation failed.
	CodeInternalStorage Code = "INT_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504
	// Used when an operation exceeds its time limit.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDependency indicates a call to an external dependency
	// (key resolution, storage) timed out.
	CodeTimeoutDependency Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
