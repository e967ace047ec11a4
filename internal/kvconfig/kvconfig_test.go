package kvconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseKV(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKey   string
		wantValue any
		wantErr   bool
	}{
		{name: "simple string", input: "bucket=results", wantKey: "bucket", wantValue: "results"},
		{name: "integer value", input: "retries=5", wantKey: "retries", wantValue: 5},
		{name: "negative integer", input: "offset=-10", wantKey: "offset", wantValue: -10},
		{name: "float value", input: "ratio=0.5", wantKey: "ratio", wantValue: 0.5},
		{name: "boolean true", input: "secure=true", wantKey: "secure", wantValue: true},
		{name: "boolean false", input: "secure=false", wantKey: "secure", wantValue: false},
		{name: "one is an integer", input: "flag=1", wantKey: "flag", wantValue: 1},
		{name: "string with spaces", input: "note=nightly sweep", wantKey: "note", wantValue: "nightly sweep"},
		{name: "empty value", input: "prefix=", wantKey: "prefix", wantValue: ""},
		{name: "value with equals sign", input: "query=a=b", wantKey: "query", wantValue: "a=b"},
		{name: "spaces around key and value", input: " key = value ", wantKey: "key", wantValue: "value"},
		{name: "looks like a number", input: "id=123abc", wantKey: "id", wantValue: "123abc"},
		{name: "missing equals sign", input: "invalid", wantErr: true},
		{name: "empty key", input: "=value", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, err := ParseKV(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
			if !reflect.DeepEqual(value, tt.wantValue) {
				t.Errorf("value = %v (%T), want %v (%T)", value, value, tt.wantValue, tt.wantValue)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	m, err := ParseJSON(`{"endpoint": "localhost:9000", "secure": false, "retries": 2}`)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	want := map[string]any{"endpoint": "localhost:9000", "secure": false, "retries": float64(2)}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("got %v, want %v", m, want)
	}

	for _, bad := range []string{`{"a":`, `[1, 2]`, `"text"`} {
		if _, err := ParseJSON(bad); err == nil {
			t.Errorf("ParseJSON(%s) should fail", bad)
		}
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "upload.json")
	if err := os.WriteFile(jsonPath, []byte(`{"bucket": "sweeps", "secure": true}`), 0644); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "webhook.yaml")
	yamlDoc := "url: https://example.com/hook\nretries: 4\nheaders:\n  X-Team: hpc\n"
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0644); err != nil {
		t.Fatal(err)
	}
	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte(`not json`), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := ParseFile(jsonPath)
	if err != nil {
		t.Fatalf("ParseFile(json): %v", err)
	}
	if m["bucket"] != "sweeps" || m["secure"] != true {
		t.Errorf("json file = %v", m)
	}

	m, err = ParseFile(yamlPath)
	if err != nil {
		t.Fatalf("ParseFile(yaml): %v", err)
	}
	if m["url"] != "https://example.com/hook" || Int(m, "retries", 0) != 4 {
		t.Errorf("yaml file = %v", m)
	}
	if got := StringMap(m, "headers"); got["X-Team"] != "hpc" {
		t.Errorf("headers = %v", got)
	}

	if _, err := ParseFile(badPath); err == nil {
		t.Error("expected error for malformed file")
	}
	if _, err := ParseFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseEnv(t *testing.T) {
	environ := []string{
		"PATH=/bin",
		`EASYSWEEP_WEBHOOK={"url": "https://json.example", "method": "PUT"}`,
		"EASYSWEEP_WEBHOOK_URL=https://env.example",
		"EASYSWEEP_WEBHOOK_RETRIES=7",
		"EASYSWEEP_WEBHOOK_AUTH_TYPE=bearer",
		"EASYSWEEP_WEBHOOK_=ignored",
		"EASYSWEEP_UPLOAD_CONFIG_BUCKET=other",
	}

	got := ParseEnv(WebhookEnvPrefix, environ)
	want := map[string]any{
		"url":       "https://env.example",
		"method":    "PUT",
		"retries":   7,
		"auth_type": "bearer",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseEnv = %v, want %v", got, want)
	}

	if got := ParseEnv("EASYSWEEP_NOTHING", environ); got != nil {
		t.Errorf("expected nil for unset prefix, got %v", got)
	}
	if got := ParseEnv(WebhookEnvPrefix, []string{"EASYSWEEP_WEBHOOK={broken"}); got != nil {
		t.Errorf("malformed JSON should be ignored, got %v", got)
	}
}

func TestBuildPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "upload.json")
	if err := os.WriteFile(file, []byte(`{"bucket": "from-file", "prefix": "file", "region": "eu-west-1"}`), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Build(Sources{
		EnvPrefix: UploadEnvPrefix,
		Environ: []string{
			"EASYSWEEP_UPLOAD_CONFIG_BUCKET=from-env",
			"EASYSWEEP_UPLOAD_CONFIG_ENDPOINT=env:9000",
		},
		File: file,
		JSON: `{"prefix": "json", "secure": false}`,
		KV:   []string{"secure=true"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := map[string]any{
		"bucket":   "from-file",
		"endpoint": "env:9000",
		"prefix":   "json",
		"region":   "eu-west-1",
		"secure":   true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build = %v, want %v", got, want)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  Sources
		msg  string
	}{
		{name: "bad json", src: Sources{JSON: "{"}, msg: "invalid JSON object"},
		{name: "bad kv", src: Sources{KV: []string{"novalue"}}, msg: "expected key=value"},
		{name: "missing file", src: Sources{File: "/nonexistent/config.json"}, msg: "failed to read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error = %v, want it to contain %q", err, tt.msg)
			}
		})
	}

	got, err := Build(Sources{EnvPrefix: UploadEnvPrefix, Environ: []string{}})
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("empty sources = %v, %v", got, err)
	}
}

func TestGetters(t *testing.T) {
	m := map[string]any{
		"s":      "text",
		"empty":  "",
		"b":      true,
		"bs":     "false",
		"i":      3,
		"f":      float64(4),
		"is":     "5",
		"nested": map[string]any{"a": 1, "b": "two"},
	}

	if v, ok := String(m, "s"); !ok || v != "text" {
		t.Errorf("String(s) = %q, %v", v, ok)
	}
	if _, ok := String(m, "empty"); ok {
		t.Error("empty string should be reported as unset")
	}
	if StringOr(m, "missing", "def") != "def" {
		t.Error("StringOr default not applied")
	}
	if !Bool(m, "b", false) || Bool(m, "bs", true) || !Bool(m, "missing", true) {
		t.Error("Bool conversions wrong")
	}
	if Int(m, "i", 0) != 3 || Int(m, "f", 0) != 4 || Int(m, "is", 0) != 5 || Int(m, "s", 9) != 9 {
		t.Error("Int conversions wrong")
	}
	if got := StringMap(m, "nested"); !reflect.DeepEqual(got, map[string]string{"a": "1", "b": "two"}) {
		t.Errorf("StringMap = %v", got)
	}
}
