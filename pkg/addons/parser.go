package addons

import (
	"context"
	"encoding/json"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// discriminantField is the primary field naming the concrete type of a
// configuration object. The bare "type" spelling is accepted as a
// fallback for hand-written descriptors.
const discriminantField = "_type"

// Discriminant extracts the type discriminant from a raw configuration
// object. It returns a *[sserr.Error] with code [sserr.CodeValidation]
// when the object is not valid JSON or carries no discriminant.
func Discriminant(raw json.RawMessage) (string, error) {
	var probe struct {
		Type     string `json:"_type"`
		Fallback string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", sserr.Wrap(err, sserr.CodeValidation,
			"addons: configuration object is not valid JSON")
	}
	if probe.Type != "" {
		return probe.Type, nil
	}
	if probe.Fallback != "" {
		return probe.Fallback, nil
	}
	return "", sserr.New(sserr.CodeValidation,
		"addons: configuration object is missing a \"_type\" discriminant")
}

// AttributeChain resolves typed configuration objects through an ordered
// list of attribute parsers. The order is the add-on dependency order, so
// a dependency's parsers are always consulted before a dependent's.
// Resolution is first-match-wins.
type AttributeChain struct {
	parsers []AttributeParser
}

// NewAttributeChain creates an AttributeChain over the given parsers.
func NewAttributeChain(parsers ...AttributeParser) *AttributeChain {
	return &AttributeChain{parsers: parsers}
}

// Len returns the number of parsers in the chain.
func (c *AttributeChain) Len() int { return len(c.parsers) }

// Parse extracts the object's discriminant and hands the object to the
// first parser that recognizes it. An unrecognized discriminant yields a
// *[sserr.Error] with code [sserr.CodeConfigurationUnknownType] naming
// the type.
func (c *AttributeChain) Parse(ctx context.Context, raw json.RawMessage, reg *Registry) (any, error) {
	typeName, err := Discriminant(raw)
	if err != nil {
		return nil, err
	}
	for _, p := range c.parsers {
		if p.Recognizes(typeName) {
			return p.Parse(ctx, raw, reg)
		}
	}
	return nil, sserr.Newf(sserr.CodeConfigurationUnknownType,
		"addons: no parser recognizes configuration type %q", typeName)
}

// ParseAs resolves a typed configuration object and asserts its runtime
// type. A mismatch yields a *[sserr.Error] with code
// [sserr.CodeConfiguration] naming the discriminant.
func ParseAs[T any](ctx context.Context, c *AttributeChain, raw json.RawMessage, reg *Registry) (T, error) {
	var zero T
	value, err := c.Parse(ctx, raw, reg)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		typeName, _ := Discriminant(raw)
		return zero, sserr.Newf(sserr.CodeConfiguration,
			"addons: configuration type %q produced %T, which cannot be used here",
			typeName, value)
	}
	return typed, nil
}

// parseDuration parses a descriptor duration value ("30m", "1h30m").
// Empty means unset and yields zero.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, sserr.Validationf(
			"addons: %s must be a duration like \"30m\", got %q", field, value)
	}
	if d < 0 {
		return 0, sserr.Validationf("addons: %s must not be negative", field)
	}
	return d, nil
}

// configChain resolves top-level descriptor sections through an ordered
// list of config parsers. First-match-wins, in add-on dependency order.
type configChain struct {
	parsers []ConfigParser
}

// claim returns the first parser claiming the named section.
func (c *configChain) claim(section string) (ConfigParser, bool) {
	for _, p := range c.parsers {
		if p.Section() == section {
			return p, true
		}
	}
	return nil, false
}
