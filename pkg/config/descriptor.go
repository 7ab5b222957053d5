package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// Descriptor is the raw form of a function application descriptor: the
// top-level sections of the declarative document, keyed by section name,
// with each value kept as unparsed JSON. Interpretation of the sections is
// the job of the add-on parser chains; this layer only establishes the
// document structure.
type Descriptor map[string]json.RawMessage

// Section returns the named top-level section and whether it is present.
func (d Descriptor) Section(name string) (json.RawMessage, bool) {
	raw, ok := d[name]
	return raw, ok
}

// Names returns the section names in sorted order.
func (d Descriptor) Names() []string {
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseDescriptor parses a JSON application descriptor. The document must
// be a JSON object; each top-level member becomes one section.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeConfiguration,
			"config: descriptor is not a JSON object")
	}
	return d, nil
}

// ParseDescriptorYAML parses a YAML application descriptor by converting
// it to its JSON equivalent first, so the parser chains only ever see one
// representation.
func ParseDescriptorYAML(data []byte) (Descriptor, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeConfiguration,
			"config: descriptor is not a YAML mapping")
	}

	d := make(Descriptor, len(doc))
	for name, value := range doc {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, sserr.Wrapf(err, sserr.CodeConfiguration,
				"config: descriptor section %q cannot be represented as JSON", name)
		}
		d[name] = raw
	}
	return d, nil
}

// LoadDescriptor reads an application descriptor file. The format is
// detected by extension: .json is parsed as JSON, .yaml/.yml as YAML.
// Unlike host configuration files, a missing descriptor is an error; a
// function application cannot start without one.
func LoadDescriptor(path string) (Descriptor, error) {
	if strings.Contains(path, "..") {
		return nil, sserr.New(sserr.CodeConfiguration,
			"config: descriptor path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeConfiguration,
			"config: failed to read descriptor %q", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseDescriptor(data)
	case ".yaml", ".yml":
		return ParseDescriptorYAML(data)
	default:
		return nil, sserr.Newf(sserr.CodeConfiguration,
			"config: unsupported descriptor extension %q (use .json, .yaml, or .yml)", ext)
	}
}
