// Package addons implements the composable add-on layer of the functions
// platform. An add-on bundles a capability (HTTP sessions, JWT
// verification, HMAC signing, timers, storage bindings) together with the
// declarative configuration parsers that recognize its portion of the
// function descriptor.
//
// # Bootstrap
//
// Add-ons are registered with a [Manager] and composed during a single
// [Manager.Bootstrap] call on cold start. The manager orders add-ons by
// their declared dependencies, assembles the parser chains in that order,
// applies the function descriptor, and initializes each add-on exactly
// once. The result is a frozen [Registry] holding everything the request
// lifecycle needs; after bootstrap the registry is immutable and safe for
// unsynchronized concurrent reads.
//
// # Parser chains
//
// Two chains exist. Config parsers claim top-level descriptor sections by
// name ("HTTP", "JWT", "HMAC", ...); a section no parser claims is a
// configuration error naming the section. Attribute parsers recognize
// typed objects inside sections by their "_type" discriminant
// ("LocalJwtIssuer", "MemorySessionManager", ...); the first parser that
// recognizes a discriminant wins, and an unrecognized discriminant is a
// configuration error naming the type.
package addons

import (
	"context"
	"encoding/json"
)

// Addon is a composable platform capability. Implementations contribute
// parsers to the descriptor chains and perform one-time setup in
// Initialize.
//
// Add-ons must be stateless until Initialize runs; the same add-on value
// is never bootstrapped twice.
type Addon interface {
	// Name returns the unique add-on identifier, lowercase by
	// convention ("http", "jwt").
	Name() string

	// Dependencies returns the names of add-ons that must initialize
	// before this one. The manager rejects the whole bootstrap when a
	// named dependency is not registered.
	Dependencies() []string

	// ConfigParsers returns the top-level section parsers this add-on
	// contributes to the config chain. May be empty.
	ConfigParsers() []ConfigParser

	// AttributeParsers returns the typed-object parsers this add-on
	// contributes to the attribute chain. May be empty.
	AttributeParsers() []AttributeParser

	// Initialize performs one-time setup after all descriptor sections
	// have been applied, publishing the add-on's services into the
	// registry. It is called in dependency order, exactly once.
	Initialize(ctx context.Context, reg *Registry) error
}

// ConfigParser claims a top-level descriptor section by name and applies
// it to the registry.
type ConfigParser interface {
	// Section returns the descriptor section name this parser claims.
	Section() string

	// Parse applies the raw section content. Parsers resolve nested
	// typed objects through the registry's attribute chain.
	Parse(ctx context.Context, raw json.RawMessage, reg *Registry) error
}

// AttributeParser recognizes typed configuration objects by their "_type"
// discriminant and materializes them.
type AttributeParser interface {
	// Recognizes reports whether this parser handles the given
	// discriminant value.
	Recognizes(typeName string) bool

	// Parse materializes the raw object into its runtime value.
	Parse(ctx context.Context, raw json.RawMessage, reg *Registry) (any, error)
}
