package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
}

func isolateEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("MPROC_CONFIG_DIR", "")
	t.Setenv("MPROC_TRUST_PROJECT_CONFIG", "")
	t.Setenv("MPROC_DATA_DIR", "")
	t.Setenv("MPROC_API_URL", "")
	t.Setenv("MPROC_ATTACH_ALLOWED_MEDIA_TYPES", "")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != "http://127.0.0.1:7333" {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DataDir != "" {
		t.Fatalf("expected empty data dir, got %q", cfg.DataDir)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.DefaultColor != "#6d28d9" {
		t.Fatalf("expected default color, got %q", cfg.DefaultColor)
	}
	if cfg.Attachments.MaxUploadBytes != DefaultAttachmentMaxUploadBytes {
		t.Fatalf("expected attachment max upload default %d, got %d", DefaultAttachmentMaxUploadBytes, cfg.Attachments.MaxUploadBytes)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(`data_dir = "/srv/mproc"
api_url = "http://localhost:9999"
log_level = "warn"
cors_allowed_origins = ["http://localhost:5173"]

[attachments]
max_upload_bytes = 2048
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/mproc" {
		t.Fatalf("expected data_dir, got %q", cfg.DataDir)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url 'http://localhost:9999', got %q", cfg.APIURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"http://localhost:5173"}) {
		t.Fatalf("unexpected cors origins: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.Attachments.MaxUploadBytes != 2048 {
		t.Fatalf("expected max_upload_bytes 2048, got %d", cfg.Attachments.MaxUploadBytes)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.mproc.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("defaults should be preserved")
	}
}

func TestLoadFileInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("api_url = \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range AllowedKeys() {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	for _, key := range []string{"invalid", "db_path", "attachments"} {
		if IsAllowedKey(key) {
			t.Fatalf("expected %q to not be allowed", key)
		}
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		DataDir:            "/tmp/mproc",
		APIURL:             "http://test:1234",
		LogLevel:           "warn",
		DefaultColor:       "#112233",
		CORSAllowedOrigins: []string{"http://a", "http://b"},
		Attachments: AttachmentConfig{
			MaxUploadBytes:    123,
			AllowedMediaTypes: []string{"application/pdf", "image/*"},
		},
	}

	tests := []struct {
		key  string
		want string
	}{
		{"data_dir", "/tmp/mproc"},
		{"api_url", "http://test:1234"},
		{"log_level", "warn"},
		{"default_color", "#112233"},
		{"cors_allowed_origins", "http://a,http://b"},
		{"attachments.max_upload_bytes", "123"},
		{"attachments.allowed_media_types", "application/pdf,image/*"},
	}
	for _, tc := range tests {
		got, err := cfg.Get(tc.key)
		if err != nil {
			t.Fatalf("get %s: %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("get %s: expected %q, got %q", tc.key, tc.want, got)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "new.toml")
	if err := SetKey(path, "data_dir", "/var/lib/mproc"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/mproc" {
		t.Fatalf("expected data_dir, got %q", cfg.DataDir)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("log_level = \"debug\"\napi_url = \"http://keep\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "log_level", "error"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected 'error', got %q", cfg.LogLevel)
	}
	if cfg.APIURL != "http://keep" {
		t.Fatalf("expected preserved api_url 'http://keep', got %q", cfg.APIURL)
	}
}

func TestSetKeyValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	tests := []struct {
		key   string
		value string
	}{
		{"invalid_key", "value"},
		{"attachments.max_upload_bytes", "-1"},
		{"attachments.max_upload_bytes", "lots"},
		{"default_color", "purple"},
		{"default_color", "#12345"},
	}
	for _, tc := range tests {
		if err := SetKey(path, tc.key, tc.value); err == nil {
			t.Fatalf("expected error for %s=%q", tc.key, tc.value)
		}
	}
}

func TestSetNestedAttachmentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attachments.toml")
	if err := SetKey(path, "attachments.max_upload_bytes", "4096"); err != nil {
		t.Fatalf("set max upload: %v", err)
	}
	if err := SetKey(path, "attachments.allowed_media_types", "image/png, application/pdf"); err != nil {
		t.Fatalf("set media types: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Attachments.MaxUploadBytes != 4096 {
		t.Fatalf("expected max_upload_bytes 4096, got %d", cfg.Attachments.MaxUploadBytes)
	}
	want := []string{"image/png", "application/pdf"}
	if !reflect.DeepEqual(cfg.Attachments.AllowedMediaTypes, want) {
		t.Fatalf("expected %v, got %v", want, cfg.Attachments.AllowedMediaTypes)
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MPROC_CONFIG_DIR", dir)

	globalPath, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != filepath.Join(dir, ConfigFileName) {
		t.Fatalf("unexpected global path: %s", globalPath)
	}

	projectPath, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	if projectPath != filepath.Join(dir, ConfigFileName) {
		t.Fatalf("unexpected project path: %s", projectPath)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	home := t.TempDir()
	isolateEnv(t, home)

	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, ConfigFileName), []byte("api_url = \"http://127.0.0.1:9001\"\n"), 0o644); err != nil {
		t.Fatalf("write override config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(home, ConfigFileName), []byte("api_url = \"http://ignored\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	t.Setenv("MPROC_CONFIG_DIR", configDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9001" {
		t.Fatalf("expected config-dir api_url override, got %q", cfg.APIURL)
	}
	if cfg.DataDir != filepath.Join(home, DefaultDataDirName) {
		t.Fatalf("expected default data dir under home, got %q", cfg.DataDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolateEnv(t, t.TempDir())
	t.Setenv("MPROC_API_URL", "http://example.com:8080")
	t.Setenv("MPROC_DATA_DIR", "/tmp/override")
	t.Setenv("MPROC_ATTACH_ALLOWED_MEDIA_TYPES", "Image/PNG,image/*,image/png")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://example.com:8080" {
		t.Fatalf("expected env override for API URL, got %q", cfg.APIURL)
	}
	if cfg.DataDir != "/tmp/override" {
		t.Fatalf("expected env override for data dir, got %q", cfg.DataDir)
	}
	want := []string{"image/*", "image/png"}
	if !reflect.DeepEqual(cfg.Attachments.AllowedMediaTypes, want) {
		t.Fatalf("expected normalized media types %v, got %v", want, cfg.Attachments.AllowedMediaTypes)
	}
}

func TestLoadExpandsHomeInDataDir(t *testing.T) {
	home := t.TempDir()
	isolateEnv(t, home)
	if err := os.WriteFile(filepath.Join(home, ConfigFileName), []byte("data_dir = \"~/tasks\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != filepath.Join(home, "tasks") {
		t.Fatalf("expected expanded data dir, got %q", cfg.DataDir)
	}
}

func TestLoadFallsBackToDefaultsWhenConfiguredEmpty(t *testing.T) {
	home := t.TempDir()
	isolateEnv(t, home)
	chdir(t, t.TempDir())

	if err := os.WriteFile(filepath.Join(home, ConfigFileName), []byte("log_level = \"\"\ndefault_color = \"blue\"\n\n[attachments]\nmax_upload_bytes = 0\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.DefaultColor != DefaultColor {
		t.Fatalf("expected default color, got %q", cfg.DefaultColor)
	}
	if cfg.Attachments.MaxUploadBytes != DefaultAttachmentMaxUploadBytes {
		t.Fatalf("expected default max upload, got %d", cfg.Attachments.MaxUploadBytes)
	}
}

func TestLoadProjectConfigTrust(t *testing.T) {
	tests := []struct {
		name      string
		trust     string
		wantLevel string
		trusted   bool
	}{
		{name: "unset", trust: "", wantLevel: "warn", trusted: false},
		{name: "true", trust: "true", wantLevel: "debug", trusted: true},
		{name: "invalid", trust: "definitely-not-bool", wantLevel: "warn", trusted: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			home := t.TempDir()
			workspace := t.TempDir()
			isolateEnv(t, home)
			chdir(t, workspace)

			if err := os.WriteFile(filepath.Join(home, ConfigFileName), []byte("log_level = \"warn\"\n"), 0o644); err != nil {
				t.Fatalf("write home config: %v", err)
			}
			if err := os.WriteFile(filepath.Join(workspace, ConfigFileName), []byte("log_level = \"debug\"\n"), 0o644); err != nil {
				t.Fatalf("write project config: %v", err)
			}
			t.Setenv("MPROC_TRUST_PROJECT_CONFIG", tc.trust)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.LogLevel != tc.wantLevel {
				t.Fatalf("expected log level %q, got %q", tc.wantLevel, cfg.LogLevel)
			}
			if tc.trusted {
				// Resolve symlinks such as /tmp -> /private/tmp.
				got, _ := filepath.EvalSymlinks(cfg.TrustedProjectConfigPath)
				want, _ := filepath.EvalSymlinks(filepath.Join(workspace, ConfigFileName))
				if got != want {
					t.Fatalf("expected trusted path %q, got %q", want, got)
				}
			} else if cfg.TrustedProjectConfigPath != "" {
				t.Fatalf("expected no trusted project config path, got %q", cfg.TrustedProjectConfigPath)
			}
		})
	}
}
