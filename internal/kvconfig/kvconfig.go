// Package kvconfig assembles flat configuration objects for the upload and
// webhook integrations from several sources. From lowest to highest
// precedence: prefixed environment variables, a JSON or YAML file, a JSON
// string and key=value pairs.
package kvconfig

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment prefixes read by Build.
const (
	UploadEnvPrefix  = "EASYSWEEP_UPLOAD_CONFIG"
	WebhookEnvPrefix = "EASYSWEEP_WEBHOOK"
)

// Sources lists where a configuration object may come from.
type Sources struct {
	EnvPrefix string
	File      string
	JSON      string
	KV        []string
	// Environ overrides os.Environ.
	Environ []string
}

// ParseKV splits key=value and infers the value type: integer, float,
// the literals true and false, or string.
func ParseKV(pair string) (string, any, error) {
	key, raw, ok := strings.Cut(pair, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid format, expected key=value: %s", pair)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil, fmt.Errorf("empty key in key=value pair")
	}
	return key, inferValue(strings.TrimSpace(raw)), nil
}

func inferValue(s string) any {
	// Integers first so that "1" does not turn into a boolean.
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	return s
}

// ParseJSON decodes a JSON object.
func ParseJSON(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return m, nil
}

// ParseFile reads a JSON object, or a YAML mapping when the file ends in
// .yaml or .yml.
func ParseFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var m map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return m, nil
}

// ParseEnv reads PREFIX as a JSON object and every PREFIX_NAME variable as
// key name (lower-cased). Malformed JSON in PREFIX is ignored. It returns nil
// when nothing is set.
func ParseEnv(prefix string, environ []string) map[string]any {
	out := make(map[string]any)
	lead := prefix + "_"

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if name == prefix {
			if m, err := ParseJSON(value); err == nil {
				maps.Copy(out, m)
			}
		}
	}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, lead) || len(name) == len(lead) {
			continue
		}
		out[strings.ToLower(strings.TrimPrefix(name, lead))] = inferValue(value)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// Merge copies sources into one map; later sources win.
func Merge(sources ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range sources {
		maps.Copy(out, m)
	}
	return out
}

// Build merges every configured source. The result is never nil.
func Build(src Sources) (map[string]any, error) {
	var layers []map[string]any

	if src.EnvPrefix != "" {
		environ := src.Environ
		if environ == nil {
			environ = os.Environ()
		}
		layers = append(layers, ParseEnv(src.EnvPrefix, environ))
	}
	if src.File != "" {
		m, err := ParseFile(src.File)
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}
	if src.JSON != "" {
		m, err := ParseJSON(src.JSON)
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}
	if len(src.KV) > 0 {
		m := make(map[string]any, len(src.KV))
		for _, pair := range src.KV {
			key, value, err := ParseKV(pair)
			if err != nil {
				return nil, err
			}
			m[key] = value
		}
		layers = append(layers, m)
	}

	return Merge(layers...), nil
}

// String returns m[key] when it is a non-empty string.
func String(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok && s != ""
}

// StringOr returns m[key] or def.
func StringOr(m map[string]any, key, def string) string {
	if s, ok := String(m, key); ok {
		return s
	}
	return def
}

// Bool accepts booleans and strings understood by strconv.ParseBool.
func Bool(m map[string]any, key string, def bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int accepts integers and the float64 values produced by JSON.
func Int(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// StringMap returns a nested object of strings, such as extra HTTP headers.
func StringMap(m map[string]any, key string) map[string]string {
	nested, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(nested))
	for k, v := range nested {
		out[k] = fmt.Sprint(v)
	}
	return out
}
