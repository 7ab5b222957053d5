// Package errors provides standardized error types and error handling
// utilities for the StricklySoft Functions framework. It defines common
// error categories, error codes, and helper functions for creating,
// wrapping, and inspecting errors across the request lifecycle.
//
// # Error Categories
//
// The package defines several error categories that map to common failure
// scenarios in a serverless function:
//
//   - Validation errors: Invalid caller input, missing required fields
//   - Authentication errors: Missing, expired, or undecodable tokens
//   - Authorization errors: Role/policy mismatch
//   - NotFound errors: Resource does not exist
//   - Configuration errors: Unresolvable declarative configuration (fatal at bootstrap)
//   - Unsupported errors: Unhandled HTTP verb, abstract method not overridden
//   - Internal errors: Unexpected system failures
//   - Timeout errors: Operation exceeded its time limit
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_001") that can be
// used for error tracking, alerting, and client-side error handling. Error
// codes follow the pattern: CATEGORY_XXX where CATEGORY is a short identifier
// and XXX is a numeric code.
//
// # Request Lifecycle Mapping
//
// The lifecycle controller's exception phase maps errors to an HTTP response
// status via [Error.HTTPStatus]. Configuration errors never reach the
// exception phase on a healthy app: they abort bootstrap instead.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeValidation, "issuer name must not be empty")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeInternal, "failed to persist session")
//
// Check error category:
//
//	if errors.IsAuthentication(err) {
//	    // respond 401
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("request failed",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
