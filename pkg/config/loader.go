// Package config provides configuration loading for the StricklySoft
// Functions platform. It covers two distinct layers:
//
//   - Host configuration: typed structs loaded from environment variables,
//     files (YAML/JSON), and struct tag defaults via [Loader]. This
//     configures the function host itself (listen address, log level,
//     client endpoints).
//   - Application descriptors: the declarative JSON or YAML document that
//     describes a function application (its add-ons, issuers, sessions,
//     triggers), loaded as raw sections via [LoadDescriptor] and handed to
//     the add-on parser chains for interpretation.
//
// The typed loader resolves each field from three layers, later layers
// winning:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file  (medium priority)
//	Environment variables  (highest priority)
//
// Defaults baked into the host binary, a mounted file for per-environment
// overrides, and env vars injected by the deployment for final say. Three
// struct tags drive the loader:
//
//   - `env:"VAR"` — the environment variable the field reads from
//   - `envDefault:"value"` — fallback applied when the field is zero
//   - `required:"true"` — the field must be non-zero after all layers
//
// File-based loading goes through the standard `yaml` / `json` tags.
//
// A typical function host config:
//
//	type FunctionConfig struct {
//	    Addr       string        `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    Descriptor string        `env:"DESCRIPTOR" yaml:"descriptor" required:"true"`
//	    LogLevel   string        `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
//	    Shutdown   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" yaml:"shutdown_timeout"`
//	}
//
//	cfg := config.MustLoad[FunctionConfig](
//	    config.New().WithEnvPrefix("ORDERS").WithFile("host.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// durationType lets the traversal tell time.Duration apart from plain
// int64 fields: Duration's Kind() is Int64 but its values come from
// time.ParseDuration, and a Duration field must never be recursed into.
var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves a configuration struct from defaults, an optional
// file, and the environment. Build one with [New], shape it with
// [Loader.WithEnvPrefix] and [Loader.WithFile], then call [Loader.Load].
//
// A Loader holds no state between calls but is not safe for concurrent
// mutation through the With* methods.
type Loader struct {
	envPrefix string
	filePath  string
}

// New returns a [Loader] that reads from unprefixed environment
// variables only. Chain [Loader.WithEnvPrefix] and [Loader.WithFile]
// to add the other layers.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix namespaces every env lookup: a field tagged
// `env:"ADDR"` under WithEnvPrefix("ORDERS") reads ORDERS_ADDR. The
// prefix is uppercased; the empty prefix (the default) disables
// namespacing. Returns the Loader for chaining.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile adds a file layer. The format follows the extension: .yaml
// and .yml parse as YAML, .json as JSON, anything else fails
// [Loader.Load]. A file that does not exist is skipped, so hosts can
// ship without one and rely on defaults and the environment.
//
// Paths containing ".." are rejected at load time. Returns the Loader
// for chaining.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct.
// Each field is resolved default-then-file-then-env, and the populated
// struct is validated: `required:"true"` fields must be non-zero, and
// a [Validator] implementation gets its Validate call last.
//
// Loading failures carry [sserr.CodeConfiguration]; validation
// failures carry [sserr.CodeValidationRequired] or
// [sserr.CodeValidation].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeConfiguration,
			"config: Load requires a pointer to a struct")
	}

	// Lowest layer: envDefault tags fill zero-valued fields.
	err := walk(rv, l.envPrefix, func(field reflect.Value, sf reflect.StructField, _ string) error {
		def := sf.Tag.Get("envDefault")
		if def == "" || !field.IsZero() {
			return nil
		}
		if err := assign(field, def); err != nil {
			return sserr.Wrapf(err, sserr.CodeConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Middle layer: the optional file overwrites defaults.
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	// Top layer: environment variables win outright.
	err = walk(rv, l.envPrefix, func(field reflect.Value, sf reflect.StructField, key string) error {
		if key == "" {
			return nil
		}
		val, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		if err := assign(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad loads a zero value of T through the given loader and panics
// on failure. Meant for host startup, where a broken configuration
// should stop the process before it serves anything:
//
//	cfg := config.MustLoad[FunctionConfig](config.New().WithEnvPrefix("ORDERS"))
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile unmarshals the configured file into cfg, dispatching on the
// extension. Missing files are not an error.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return sserr.Newf(sserr.CodeConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// walk calls visit for every settable leaf field under rv, passing the
// fully joined env key ("" when the field carries no env tag). Nested
// structs are descended into with the parent's env tag appended to the
// prefix, so a `env:"DB"` struct holding a `env:"HOST"` field resolves
// to PREFIX_DB_HOST. time.Duration is a leaf despite being backed by a
// struct-adjacent kind.
func walk(rv reflect.Value, prefix string, visit func(field reflect.Value, sf reflect.StructField, key string) error) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := walk(field, joinKey(prefix, envTag), visit); err != nil {
				return err
			}
			continue
		}

		key := ""
		if envTag != "" {
			key = joinKey(prefix, envTag)
		}
		if err := visit(field, sf, key); err != nil {
			return err
		}
	}

	return nil
}

// joinKey appends an env tag segment to an accumulated prefix,
// separating with an underscore. Either side may be empty.
func joinKey(prefix, segment string) string {
	switch {
	case segment == "":
		return prefix
	case prefix == "":
		return segment
	default:
		return prefix + "_" + segment
	}
}

// assign parses value and stores it in field. The supported leaf types
// cover what host configs actually declare: strings (including named
// string types like postgres.Secret), bools, signed and unsigned
// integers, floats, time.Duration, and comma-separated string slices.
func assign(field reflect.Value, value string) error {
	// Duration first: its Kind is Int64 but the syntax is "30s".
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse unsigned integer %q: %w", value, err)
		}
		field.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse float %q: %w", value, err)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		// Build through the field's own type so named slice types
		// (type Verbs []string) stay assignable.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}
