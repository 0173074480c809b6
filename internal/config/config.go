// Package config provides configuration for the markvault binary.
// Loads from: CLI flags > env vars > .markvault/config.toml > built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sgx-labs/markvault/internal/embedding"
)

// DefaultEmbeddingModel is the model used when nothing is configured.
const DefaultEmbeddingModel = "nomic-embed-text"

// Config holds all markvault configuration, loaded from TOML + env + flags.
type Config struct {
	Vault     VaultConfig     `toml:"vault"`
	Ollama    OllamaConfig    `toml:"ollama"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
}

// VaultConfig holds vault-related settings.
type VaultConfig struct {
	Path     string   `toml:"path"`
	SkipDirs []string `toml:"skip_dirs"`
}

// OllamaConfig holds Ollama connection settings.
type OllamaConfig struct {
	URL   string `toml:"url"`
	Model string `toml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider"`   // "ollama" (default), "openai", "openai-compatible", "none"
	Model      string `toml:"model"`      // model name (provider-specific default if empty)
	APIKey     string `toml:"api_key"`    // API key (required for openai)
	BaseURL    string `toml:"base_url"`   // base URL (provider-specific default if empty)
	Dimensions int    `toml:"dimensions"` // vector dimensions (0 = provider default)
}

// SearchConfig holds search tuning parameters.
type SearchConfig struct {
	DefaultLimit int     `toml:"default_limit"`
	MinScore     float64 `toml:"min_score"`
}

// DefaultConfig returns a Config with all built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:   "http://localhost:11434",
			Model: DefaultEmbeddingModel,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    DefaultEmbeddingModel,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MinScore:     0.0,
		},
	}
}

// LoadConfig merges all configuration sources: defaults < TOML file < env vars.
// The --vault flag is handled separately by VaultPath().
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath := findConfigFile()
	if configPath != "" {
		meta, err := toml.DecodeFile(configPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
		warnUnknownKeys(meta, configPath)
	}

	applyEnvOverrides(cfg)

	if len(cfg.Vault.SkipDirs) > 0 {
		RebuildSkipDirs(cfg.Vault.SkipDirs)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VAULT_PATH"); v != "" {
		cfg.Vault.Path = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Ollama.URL = v
	}
	if v := os.Getenv("MARKVAULT_SKIP_DIRS"); v != "" {
		for _, d := range strings.Split(v, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				cfg.Vault.SkipDirs = append(cfg.Vault.SkipDirs, d)
			}
		}
	}
	if v := os.Getenv("MARKVAULT_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("MARKVAULT_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("MARKVAULT_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("MARKVAULT_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	// OPENAI_API_KEY as a convenience fallback for cloud providers.
	if cfg.Embedding.APIKey == "" && (cfg.Embedding.Provider == "openai" || cfg.Embedding.Provider == "openai-compatible") {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.Embedding.APIKey = v
		}
	}
}

// loadConfigSafe loads config without risking recursion. Returns nil on error.
func loadConfigSafe() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		return nil
	}
	return cfg
}

// findConfigFile looks for .markvault/config.toml in the vault path, then CWD.
func findConfigFile() string {
	if vp := resolveVaultForConfig(); vp != "" {
		p := filepath.Join(vp, ".markvault", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, ".markvault", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// resolveVaultForConfig resolves the vault path for config loading without
// calling VaultPath(), which would recurse into config loading.
func resolveVaultForConfig() string {
	if VaultOverride != "" {
		reg := LoadRegistry()
		if resolved := reg.ResolveVault(VaultOverride); resolved != "" {
			return resolved
		}
		return VaultOverride
	}
	if v := os.Getenv("VAULT_PATH"); v != "" {
		return v
	}
	return ""
}

// ConfigFilePath returns where the config file lives for a vault.
func ConfigFilePath(vaultPath string) string {
	return filepath.Join(vaultPath, ".markvault", "config.toml")
}

// FindConfigFile returns the path to the active config file, or "" if none.
func FindConfigFile() string {
	return findConfigFile()
}

// GenerateConfig writes a commented default .markvault/config.toml.
func GenerateConfig(vaultPath string) error {
	configPath := ConfigFilePath(vaultPath)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(configPath, []byte(generateTOMLContent(vaultPath)), 0o600)
}

func generateTOMLContent(vaultPath string) string {
	var b strings.Builder
	b.WriteString("# markvault configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Priority: CLI flags > environment variables > this file > built-in defaults\n")
	b.WriteString("# Environment variables: VAULT_PATH, OLLAMA_URL, MARKVAULT_SKIP_DIRS,\n")
	b.WriteString("#   MARKVAULT_DATA_DIR, MARKVAULT_EMBED_PROVIDER, MARKVAULT_EMBED_MODEL,\n")
	b.WriteString("#   MARKVAULT_EMBED_BASE_URL, MARKVAULT_EMBED_API_KEY\n\n")

	b.WriteString("[vault]\n")
	if vaultPath != "" {
		b.WriteString(fmt.Sprintf("path = %q\n", vaultPath))
	} else {
		b.WriteString("# path = \"/path/to/your/notes\"  # auto-detected if unset\n")
	}
	b.WriteString("# skip_dirs = [\".venv\", \"build\"]  # added to built-in exclusions\n\n")

	b.WriteString("[ollama]\n")
	b.WriteString("url = \"http://localhost:11434\"\n")
	b.WriteString(fmt.Sprintf("model = %q\n\n", DefaultEmbeddingModel))

	b.WriteString("[embedding]\n")
	b.WriteString("# Provider: \"ollama\" (default), \"openai\", \"openai-compatible\", or \"none\" (keyword-only)\n")
	b.WriteString("provider = \"ollama\"\n")
	b.WriteString(fmt.Sprintf("model = %q\n", DefaultEmbeddingModel))
	b.WriteString("# api_key = \"\"     # or set MARKVAULT_EMBED_API_KEY / OPENAI_API_KEY\n")
	b.WriteString("# dimensions = 0   # 0 = use provider default\n\n")

	b.WriteString("[search]\n")
	b.WriteString("default_limit = 10\n")
	b.WriteString("min_score = 0.0\n")

	return b.String()
}

// ShowConfig returns the current effective configuration as TOML.
func ShowConfig() string {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Sprintf("# Error loading config: %v\n", err)
	}
	if cfg.Vault.Path == "" {
		cfg.Vault.Path = VaultPath()
	}

	var b strings.Builder
	b.WriteString("# Effective markvault configuration (merged from all sources)\n\n")
	enc := toml.NewEncoder(&b)
	enc.Encode(cfg)
	return b.String()
}

// ConfigWarning returns any config file parse error, or "" if OK.
func ConfigWarning() string {
	if _, err := LoadConfig(); err != nil {
		return err.Error()
	}
	return ""
}

// configSuggestions maps common wrong keys to the correct TOML key name.
var configSuggestions = map[string]string{
	"exclude_paths": "skip_dirs",
	"exclude_dirs":  "skip_dirs",
	"skip_paths":    "skip_dirs",
	"ignore_dirs":   "skip_dirs",
	"apikey":        "api_key",
	"api-key":       "api_key",
	"baseurl":       "base_url",
	"base-url":      "base_url",
	"limit":         "default_limit",
	"top_k":         "default_limit",
}

// warnUnknownKeys prints warnings for unrecognized config keys.
func warnUnknownKeys(meta toml.MetaData, configPath string) {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return
	}

	fname := filepath.Base(configPath)
	for _, key := range undecoded {
		keyStr := key.String()
		lastPart := key[len(key)-1]

		if suggestion, ok := configSuggestions[lastPart]; ok {
			fmt.Fprintf(os.Stderr, "markvault: WARNING: unknown key %q in %s — did you mean %q?\n",
				keyStr, fname, suggestion)
		} else {
			fmt.Fprintf(os.Stderr, "markvault: WARNING: unknown key %q in %s (will be ignored)\n",
				keyStr, fname)
		}
	}
}

// EmbeddingProviderConfig returns the effective embedding provider settings.
func EmbeddingProviderConfig() EmbeddingConfig {
	cfg := loadConfigSafe()
	if cfg == nil {
		return EmbeddingConfig{Provider: "ollama"}
	}

	ec := cfg.Embedding
	if ec.Provider == "" {
		ec.Provider = "ollama"
	}

	// Merge the legacy [ollama] model for users who configured only that
	// section.
	if ec.Provider == "ollama" && cfg.Ollama.Model != "" && cfg.Ollama.Model != DefaultEmbeddingModel {
		if ec.Model == "" || ec.Model == DefaultEmbeddingModel {
			ec.Model = cfg.Ollama.Model
		}
	}

	return ec
}

// EmbeddingDim returns the configured embedding dimensions, falling back
// to the per-provider model defaults in the embedding package. The vec0
// table is created with this width, so switching models requires a force
// reindex.
func EmbeddingDim() int {
	ec := EmbeddingProviderConfig()
	if ec.Dimensions > 0 {
		return ec.Dimensions
	}
	return embedding.DefaultDims(ec.Provider, ec.Model)
}

// SearchDefaults returns the configured search limit and minimum score.
func SearchDefaults() (limit int, minScore float64) {
	cfg := loadConfigSafe()
	if cfg == nil || cfg.Search.DefaultLimit <= 0 {
		return 10, 0.0
	}
	return cfg.Search.DefaultLimit, cfg.Search.MinScore
}

// defaultSkipDirs are directories excluded from vault walks. The .trash
// directory holds retired notes and must never be indexed.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".obsidian":    true,
	".logseq":      true,
	".markvault":   true,
	".trash":       true,
}

// SkipDirs is the active set of directories to skip during vault walks.
var SkipDirs = buildSkipDirs()

func buildSkipDirs() map[string]bool {
	dirs := make(map[string]bool)
	for k, v := range defaultSkipDirs {
		dirs[k] = v
	}
	if extra := os.Getenv("MARKVAULT_SKIP_DIRS"); extra != "" {
		for _, d := range strings.Split(extra, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				dirs[d] = true
			}
		}
	}
	return dirs
}

// RebuildSkipDirs rebuilds the SkipDirs map after TOML skip_dirs load.
func RebuildSkipDirs(extra []string) {
	dirs := buildSkipDirs()
	for _, d := range extra {
		d = strings.TrimSpace(d)
		if d != "" {
			dirs[d] = true
		}
	}
	SkipDirs = dirs
}

// VaultOverride is set by the --vault global flag.
var VaultOverride string

// VaultMarkers are dotfiles that indicate a vault root, checked in
// priority order.
var VaultMarkers = []string{".markvault", ".obsidian", ".logseq"}

// VaultPath returns the vault root directory. The path is validated so
// the indexer never walks a filesystem root.
func VaultPath() string {
	var path string
	switch {
	case VaultOverride != "":
		reg := LoadRegistry()
		if resolved := reg.ResolveVault(VaultOverride); resolved != "" {
			path = resolved
		} else {
			path = VaultOverride
		}
	case os.Getenv("VAULT_PATH") != "":
		path = os.Getenv("VAULT_PATH")
	default:
		if cfg := loadConfigSafe(); cfg != nil && cfg.Vault.Path != "" {
			path = cfg.Vault.Path
		} else {
			path = defaultVaultPath()
		}
	}
	if path != "" {
		path = validateVaultPath(path)
	}
	return path
}

func defaultVaultPath() string {
	// Auto-detect: the CWD is a vault if it carries a known marker.
	if cwd, err := os.Getwd(); err == nil {
		for _, marker := range VaultMarkers {
			if _, err := os.Stat(filepath.Join(cwd, marker)); err == nil {
				return cwd
			}
		}
	}

	reg := LoadRegistry()
	if reg.Default != "" {
		if p, ok := reg.Vaults[reg.Default]; ok {
			return p
		}
	}
	return ""
}

// validateVaultPath rejects vault paths that are too broad (e.g. /, /home)
// and resolves symlinks so a link cannot point vault walks at a system root.
func validateVaultPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	dangerous := []string{"/", "/home", "/Users", "/tmp", "/var", "/etc", "/opt"}
	if runtime.GOOS == "windows" && len(abs) >= 3 {
		for _, letter := range "ABCDEFGHIJKLMNOPQRSTUVWXYZ" {
			dangerous = append(dangerous, string(letter)+":\\")
		}
	}
	for _, d := range dangerous {
		if abs == d {
			fmt.Fprintf(os.Stderr, "WARNING: vault path %q is too broad, ignoring.\n", abs)
			return ""
		}
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet (during init); skip the symlink check.
		return path
	}
	for _, d := range dangerous {
		if resolved == d {
			fmt.Fprintf(os.Stderr, "WARNING: vault path %q resolves to %q which is too broad, ignoring.\n", abs, resolved)
			return ""
		}
		if resolvedDangerous, err := filepath.EvalSymlinks(d); err == nil && resolved == resolvedDangerous {
			fmt.Fprintf(os.Stderr, "WARNING: vault path %q resolves to %q which is too broad, ignoring.\n", abs, resolved)
			return ""
		}
	}
	return path
}

// SafeVaultSubpath resolves a relative path within the vault and checks
// it stays inside the vault root. Blocks traversal like "../../etc".
func SafeVaultSubpath(relativePath string) (string, bool) {
	vaultRoot := VaultPath()
	if vaultRoot == "" {
		return "", false
	}
	absVault, err := filepath.Abs(vaultRoot)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(filepath.Join(vaultRoot, filepath.FromSlash(relativePath)))
	if err != nil {
		return "", false
	}
	if !strings.HasPrefix(absPath, absVault+string(filepath.Separator)) && absPath != absVault {
		return "", false
	}
	return absPath, true
}

// Sentinel errors for consistent messaging across the CLI and MCP server.
var (
	// ErrNoVault is returned when no vault path can be resolved.
	ErrNoVault = fmt.Errorf("no vault found — run 'markvault init' or set VAULT_PATH")
	// ErrNoDatabase is returned when the index database cannot be opened.
	ErrNoDatabase = fmt.Errorf("cannot open markvault database — run 'markvault init' or 'markvault reindex'")
	// ErrOllamaNotLocal is returned when the Ollama URL is not localhost.
	ErrOllamaNotLocal = fmt.Errorf("OLLAMA_URL must point to localhost for security")
)

// OllamaURL returns the validated Ollama API URL.
func OllamaURL() (string, error) {
	raw := os.Getenv("OLLAMA_URL")
	if raw == "" {
		if cfg := loadConfigSafe(); cfg != nil && cfg.Ollama.URL != "" {
			raw = cfg.Ollama.URL
		} else {
			raw = "http://localhost:11434"
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid OLLAMA_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("OLLAMA_URL must use http or https scheme, got: %s", u.Scheme)
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" && host != "::1" {
		return "", ErrOllamaNotLocal
	}
	return raw, nil
}

// DBPath returns the path to the SQLite index database.
func DBPath() string {
	return filepath.Join(DataDir(), "index.db")
}

// DataDir returns the data directory for the index.
func DataDir() string {
	if v := os.Getenv("MARKVAULT_DATA_DIR"); v != "" {
		return validateDataDir(v)
	}
	return filepath.Join(VaultPath(), ".markvault", "data")
}

// validateDataDir checks the override is a usable directory, falling
// back to the default when it is not.
func validateDataDir(dir string) string {
	fallback := filepath.Join(VaultPath(), ".markvault", "data")

	abs, err := filepath.Abs(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: MARKVAULT_DATA_DIR=%q is not a valid path, using default.\n", dir)
		return fallback
	}

	info, err := os.Stat(abs)
	if err == nil {
		if !info.IsDir() {
			fmt.Fprintf(os.Stderr, "WARNING: MARKVAULT_DATA_DIR=%q is not a directory, using default.\n", abs)
			return fallback
		}
		testFile := filepath.Join(abs, ".markvault_write_test")
		f, err := os.Create(testFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: MARKVAULT_DATA_DIR=%q is not writable, using default.\n", abs)
			return fallback
		}
		f.Close()
		os.Remove(testFile)
		return abs
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: MARKVAULT_DATA_DIR=%q cannot be created (%v), using default.\n", abs, err)
		return fallback
	}
	return abs
}

// VaultRegistry holds registered vault paths with aliases.
type VaultRegistry struct {
	Vaults  map[string]string `json:"vaults"`  // alias -> path
	Default string            `json:"default"` // alias of default vault
}

// RegistryPath returns the path to the vault registry file.
func RegistryPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "markvault", "vaults.json")
}

// LoadRegistry loads or creates the vault registry.
func LoadRegistry() *VaultRegistry {
	data, err := os.ReadFile(RegistryPath())
	if err != nil {
		return &VaultRegistry{Vaults: make(map[string]string)}
	}
	var reg VaultRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return &VaultRegistry{Vaults: make(map[string]string)}
	}
	if reg.Vaults == nil {
		reg.Vaults = make(map[string]string)
	}
	return &reg
}

// Save writes the registry to disk under a lockfile so concurrent
// processes do not clobber each other's edits.
func (r *VaultRegistry) Save() error {
	path := RegistryPath()
	os.MkdirAll(filepath.Dir(path), 0o755)

	lockPath := path + ".lock"
	unlock, err := acquireFileLock(lockPath)
	if err == nil {
		defer unlock()
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// acquireFileLock creates a lockfile with O_EXCL. Returns a cleanup
// function, or an error if the lock cannot be acquired within a timeout.
func acquireFileLock(lockPath string) (func(), error) {
	const maxRetries = 20
	const retryDelay = 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		// Break stale locks (older than 10 seconds).
		if info, statErr := os.Stat(lockPath); statErr == nil {
			if time.Since(info.ModTime()) > 10*time.Second {
				os.Remove(lockPath)
				continue
			}
		}
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("could not acquire lock on %s", lockPath)
}

// ResolveVault resolves a vault alias to a path. Returns "" if not found.
func (r *VaultRegistry) ResolveVault(alias string) string {
	if p, ok := r.Vaults[alias]; ok {
		return p
	}
	if info, err := os.Stat(alias); err == nil && info.IsDir() {
		return alias
	}
	return ""
}
