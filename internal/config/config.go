package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7333"
	DefaultDataDirName = ".mproc"
	DefaultLogLevel    = "info"
	DefaultColor       = "#6d28d9"
	ConfigFileName     = ".mproc.toml"

	DefaultAttachmentMaxUploadBytes int64 = 100 * 1024 * 1024

	configDirEnvKey          = "MPROC_CONFIG_DIR"
	trustProjectConfigEnvKey = "MPROC_TRUST_PROJECT_CONFIG"
	dataDirEnvKey            = "MPROC_DATA_DIR"
	apiURLEnvKey             = "MPROC_API_URL"

	attachmentAllowedMediaTypesEnvKey = "MPROC_ATTACH_ALLOWED_MEDIA_TYPES"
)

// AttachmentConfig defines runtime configuration for attachment handling.
type AttachmentConfig struct {
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	AllowedMediaTypes []string `toml:"allowed_media_types"`
}

// Config defines runtime configuration for mproc.
type Config struct {
	DataDir                  string           `toml:"data_dir"`
	APIURL                   string           `toml:"api_url"`
	LogLevel                 string           `toml:"log_level"`
	DefaultColor             string           `toml:"default_color"`
	CORSAllowedOrigins       []string         `toml:"cors_allowed_origins"`
	Attachments              AttachmentConfig `toml:"attachments"`
	TrustedProjectConfigPath string           `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		DataDir:      "",
		APIURL:       DefaultAPIURL,
		LogLevel:     DefaultLogLevel,
		DefaultColor: DefaultColor,
		Attachments: AttachmentConfig{
			MaxUploadBytes: DefaultAttachmentMaxUploadBytes,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, ConfigFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"data_dir",
	"api_url",
	"log_level",
	"default_color",
	"cors_allowed_origins",
	"attachments.max_upload_bytes",
	"attachments.allowed_media_types",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "data_dir":
		return c.DataDir, nil
	case "api_url":
		return c.APIURL, nil
	case "log_level":
		return c.LogLevel, nil
	case "default_color":
		return c.DefaultColor, nil
	case "cors_allowed_origins":
		return strings.Join(c.CORSAllowedOrigins, ","), nil
	case "attachments.max_upload_bytes":
		return strconv.FormatInt(c.Attachments.MaxUploadBytes, 10), nil
	case "attachments.allowed_media_types":
		return strings.Join(c.Attachments.AllowedMediaTypes, ","), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, ConfigFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, ConfigFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, ConfigFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if apiURL := strings.TrimSpace(os.Getenv(apiURLEnvKey)); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dataDir := strings.TrimSpace(os.Getenv(dataDirEnvKey)); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if raw := strings.TrimSpace(os.Getenv(attachmentAllowedMediaTypesEnvKey)); raw != "" {
		cfg.Attachments.AllowedMediaTypes = splitCSV(raw)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	cfg.DataDir = expandHome(cfg.DataDir)

	cfg.normalizeDefaults()

	return &cfg, nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, DefaultDataDirName)
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, DefaultDataDirName)
	}
	return DefaultDataDirName
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "attachments.max_upload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "attachments.allowed_media_types", "cors_allowed_origins":
		return splitCSV(value), nil
	case "default_color":
		if !isHexColor(value) {
			return nil, fmt.Errorf("%s must be a hex color like #6d28d9", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func isHexColor(value string) bool {
	if len(value) != 4 && len(value) != 7 {
		return false
	}
	if value[0] != '#' {
		return false
	}
	for _, r := range value[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if !isHexColor(strings.TrimSpace(c.DefaultColor)) {
		c.DefaultColor = DefaultColor
	}
	if c.Attachments.MaxUploadBytes <= 0 {
		c.Attachments.MaxUploadBytes = DefaultAttachmentMaxUploadBytes
	}
	c.Attachments.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Attachments.AllowedMediaTypes)
	c.CORSAllowedOrigins = splitCSV(strings.Join(c.CORSAllowedOrigins, ","))
}

// Wildcard subtypes such as "image/*" are kept as-is.
func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		normalized := raw
		if !strings.HasSuffix(raw, "/*") {
			parsed, _, err := mime.ParseMediaType(raw)
			if err != nil {
				continue
			}
			normalized = strings.TrimSpace(parsed)
		}
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
