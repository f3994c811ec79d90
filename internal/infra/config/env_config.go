package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ErrInvalidConfig is returned when the provided config is not a pointer to a struct
// that embeds EnvConfig.
var ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

// EnvConfig is a base type that must be embedded in configuration structs
// to enable environment variable parsing.
type EnvConfig struct {
	namespace string
}

// Namespace returns the namespace the config was parsed with.
func (c EnvConfig) Namespace() string {
	return c.namespace
}

//nolint:varnamelen
func getEnvConfig(cfg any) (*EnvConfig, error) {
	v := reflect.ValueOf(cfg)

	// Ensure cfg is a pointer to a struct
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	v = v.Elem()
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		//nolint:exhaustruct,forcetypeassert
		if field.Anonymous && field.Type == reflect.TypeOf(EnvConfig{}) {
			if ev := v.Field(i); ev.CanAddr() {
				return ev.Addr().Interface().(*EnvConfig), nil
			}
		}
	}

	return nil, ErrInvalidConfig
}

// Parse loads configuration values from environment variables into the provided struct.
// The struct must embed EnvConfig and use `env` tags to specify variable names,
// `default` tags for defaults and `envPrefix` tags on nested structs.
//
// Each variable is looked up from the most specific namespace to the least:
// with namespace "APP_SVC" the field `env:"PORT"` reads APP_SVC_PORT, then
// APP_PORT, then PORT. Fields without a default must be set.
func Parse(_ context.Context, cfg any, namespace string) error {
	envConfig, err := getEnvConfig(cfg)
	if err != nil {
		return fmt.Errorf("get env config: %w", err)
	}

	envConfig.namespace = namespace

	opts := env.Options{ //nolint:exhaustruct
		Environment:         namespaced(os.Environ(), namespace),
		DefaultValueTagName: "default",
		RequiredIfNoDef:     true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}

// namespaced flattens environ so that every variable below a namespace prefix
// is also visible without it. More specific prefixes win.
func namespaced(environ []string, namespace string) map[string]string {
	vars := make(map[string]string, len(environ))

	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			vars[key] = value
		}
	}

	if namespace == "" {
		return vars
	}

	parts := strings.Split(namespace, "_")
	merged := make(map[string]string, len(vars))

	for key, value := range vars {
		merged[key] = value
	}

	for i := 1; i <= len(parts); i++ {
		prefix := strings.Join(parts[:i], "_") + "_"

		for key, value := range vars {
			if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
				merged[name] = value
			}
		}
	}

	return merged
}
