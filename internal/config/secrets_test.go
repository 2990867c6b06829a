package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestResolveSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		file    *string
		want    string
		wantErr bool
	}{
		{name: "env only", env: "env-value", want: "env-value"},
		{name: "file only", file: ptr("file-value\n"), want: "file-value"},
		{name: "file wins over env", env: "env-value", file: ptr("file-value"), want: "file-value"},
		{name: "neither set", want: ""},
		{name: "whitespace trimmed", file: ptr("  \n\tpadded\n\n"), want: "padded"},
		{name: "empty file", file: ptr(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const name = "ESPRESSO_TEST_SECRET"
			t.Setenv(name, tt.env)
			t.Setenv(name+"_FILE", "")
			if tt.file != nil {
				t.Setenv(name+"_FILE", writeSecret(t, *tt.file))
			}

			got, err := ResolveSecret(name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveSecret_FileNotFound(t *testing.T) {
	t.Setenv("ESPRESSO_TEST_MISSING_FILE", "/nonexistent/secret")

	if _, err := ResolveSecret("ESPRESSO_TEST_MISSING"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("PGPASSWORD", "pg")
	t.Setenv("PGPASSWORD_FILE", "")
	t.Setenv("MQTT_PASSWORD", "")
	t.Setenv("MQTT_PASSWORD_FILE", writeSecret(t, "broker\n"))

	got, err := ResolveSecrets("PGPASSWORD", "MQTT_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["PGPASSWORD"] != "pg" || got["MQTT_PASSWORD"] != "broker" {
		t.Errorf("unexpected secrets: %v", got)
	}
}

func ptr(s string) *string { return &s }
