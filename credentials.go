package volt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the canonical VoltageGPU API endpoint.
const DefaultBaseURL = "https://voltagegpu.com/api"

// Credentials identify the account and endpoint used for every request.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// String implements fmt.Stringer without revealing the key.
func (c Credentials) String() string {
	key := "<unset>"
	if c.APIKey != "" {
		key = "<redacted>"
	}
	return fmt.Sprintf("Credentials{APIKey: %s, BaseURL: %s}", key, c.BaseURL)
}

// CredentialSource is a lookup strategy consulted by [ResolveCredentials].
//
// Lookup returns whatever fields the source knows about; empty fields mean
// "not provided here". An error is returned only when the source exists but
// cannot be read.
type CredentialSource interface {
	Lookup() (Credentials, error)
}

// ResolveCredentials determines the API key and base URL.
//
// Precedence is explicit > sources in order. Each field resolves
// independently, so an explicit base URL can be combined with a key from the
// environment. Sources are only consulted while a field is still missing.
// The base URL falls back to [DefaultBaseURL]. A missing key is a
// CONFIGURATION error.
func ResolveCredentials(explicit *Credentials, sources ...CredentialSource) (Credentials, error) {
	var out Credentials
	if explicit != nil {
		out.APIKey = strings.TrimSpace(explicit.APIKey)
		out.BaseURL = strings.TrimSpace(explicit.BaseURL)
	}

	for _, src := range sources {
		if out.APIKey != "" && out.BaseURL != "" {
			break
		}
		found, err := src.Lookup()
		if err != nil {
			return Credentials{}, newError(CodeConfiguration, "failed to read credentials", 0, err)
		}
		if out.APIKey == "" {
			out.APIKey = strings.TrimSpace(found.APIKey)
		}
		if out.BaseURL == "" {
			out.BaseURL = strings.TrimSpace(found.BaseURL)
		}
	}

	if out.APIKey == "" {
		return Credentials{}, newError(CodeConfiguration,
			"no API key found; set VOLT_API_KEY or run `volt config set api_key <key>`", 0, nil)
	}
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if !strings.HasPrefix(out.BaseURL, "http://") && !strings.HasPrefix(out.BaseURL, "https://") {
		out.BaseURL = "https://" + out.BaseURL
	}
	return out, nil
}

// EnvSource reads credentials from environment variables. The first
// non-empty variable in each list wins.
type EnvSource struct {
	KeyVars     []string
	BaseURLVars []string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// DefaultEnvSource reads VOLT_API_KEY and VOLT_BASE_URL, falling back to the
// legacy LIUM_* names.
func DefaultEnvSource() EnvSource {
	return EnvSource{
		KeyVars:     []string{"VOLT_API_KEY", "LIUM_API_KEY"},
		BaseURLVars: []string{"VOLT_BASE_URL", "LIUM_BASE_URL"},
	}
}

// Lookup implements CredentialSource.
func (s EnvSource) Lookup() (Credentials, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	first := func(names []string) string {
		for _, n := range names {
			if v := getenv(n); v != "" {
				return v
			}
		}
		return ""
	}
	return Credentials{APIKey: first(s.KeyVars), BaseURL: first(s.BaseURLVars)}, nil
}

// FileSource reads credentials from a YAML config file:
//
//	api:
//	  api_key: vk_live_...
//	  base_url: https://voltagegpu.com/api
//
// A missing file is not an error.
type FileSource struct {
	Path string
}

// DefaultConfigPath returns ~/.volt/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".volt", "config.yaml")
	}
	return filepath.Join(home, ".volt", "config.yaml")
}

// ConfigFile is the on-disk layout of the credential file.
type ConfigFile struct {
	API struct {
		APIKey  string `yaml:"api_key,omitempty"`
		BaseURL string `yaml:"base_url,omitempty"`
	} `yaml:"api"`
}

// Lookup implements CredentialSource.
func (s FileSource) Lookup() (Credentials, error) {
	cfg, err := ReadConfigFile(s.Path)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{APIKey: cfg.API.APIKey, BaseURL: cfg.API.BaseURL}, nil
}

// ReadConfigFile loads the config file at path. A missing file yields an
// empty config.
func ReadConfigFile(path string) (*ConfigFile, error) {
	var cfg ConfigFile
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// WriteConfigFile stores cfg at path with owner-only permissions, creating
// the parent directory when needed.
func WriteConfigFile(path string, cfg *ConfigFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

// DefaultCredentialSources is the lookup chain used by [NewClient] when no
// sources are configured: environment first, then the default config file.
func DefaultCredentialSources() []CredentialSource {
	return []CredentialSource{
		DefaultEnvSource(),
		FileSource{Path: DefaultConfigPath()},
	}
}
