// Package corpusconfig resolves corpusctl's configuration from
// defaults, a global config file, a project config file, and CLI
// overrides, in that precedence order.
package corpusconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	InputDir       string `json:"input_dir"`
	OutputDir      string `json:"output_dir,omitempty"`
	NewCoverageDir string `json:"new_coverage_dir,omitempty"`
	DictionaryPath string `json:"dictionary,omitempty"`
	BlacklistPath  string `json:"blacklist,omitempty"`
	MaxFileSize    int    `json:"max_file_size,omitempty"`
	SocketFuzzer   bool   `json:"socket_fuzzer,omitempty"`

	// Minimize switches corpusctl's minimize command into its active
	// mode. Off by default: the command refuses to run until this is
	// set via the config file or --minimize, so minimize mode is always
	// an explicit, auditable choice rather than a binary's hardcoded
	// behavior.
	Minimize bool `json:"minimize,omitempty"`

	// Writeback enables deferred-sync persistence for the coverage
	// directory: accepted finds are written but not fsynced before
	// AddDynamicInput returns. Off by default, which fsyncs every
	// accepted find immediately (spec §4.3.3's durability contract).
	Writeback bool `json:"writeback,omitempty"`

	// EffectiveCwd and InputDirAbs are resolved, not serialized.
	EffectiveCwd string `json:"-"`
	InputDirAbs  string `json:"-"`

	Sources ConfigSources `json:"-"`
}

// ConfigSources records which config files were loaded, for diagnostics
// (surfaced by `corpusctl print-config`).
type ConfigSources struct {
	Global  string
	Project string
}

// DefaultConfig returns the configuration used when no config file and
// no override sets a field.
func DefaultConfig() Config {
	return Config{
		InputDir:    "corpus",
		MaxFileSize: 0, // 0 means "derive from the static corpus" (spec §4.2)
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".corpusctl.json"

func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "corpusctl", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "corpusctl", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for Load.
type LoadConfigInput struct {
	WorkDirOverride string // -C/--cwd; empty means os.Getwd()
	ConfigPath      string // -c/--config
	Env             map[string]string

	// CLI overrides; zero value means "not set".
	InputDirOverride       string
	OutputDirOverride      string
	NewCoverageDirOverride string
	DictionaryOverride     string
	BlacklistOverride      string
	MaxFileSizeOverride    int
	SocketFuzzerOverride   bool
	MinimizeOverride       bool
	WritebackOverride      bool
}

// Load resolves configuration with the following precedence (highest
// wins): defaults, global config, project config, CLI overrides.
// InputDirAbs holds InputDir resolved against the working directory;
// the other paths in the returned Config are kept as configured.
func Load(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	applyOverrides(&cfg, input)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.InputDirAbs = absolutize(workDir, cfg.InputDir)

	return cfg, nil
}

func applyOverrides(cfg *Config, input LoadConfigInput) {
	if input.InputDirOverride != "" {
		cfg.InputDir = input.InputDirOverride
	}

	if input.OutputDirOverride != "" {
		cfg.OutputDir = input.OutputDirOverride
	}

	if input.NewCoverageDirOverride != "" {
		cfg.NewCoverageDir = input.NewCoverageDirOverride
	}

	if input.DictionaryOverride != "" {
		cfg.DictionaryPath = input.DictionaryOverride
	}

	if input.BlacklistOverride != "" {
		cfg.BlacklistPath = input.BlacklistOverride
	}

	if input.MaxFileSizeOverride != 0 {
		cfg.MaxFileSize = input.MaxFileSizeOverride
	}

	if input.SocketFuzzerOverride {
		cfg.SocketFuzzer = true
	}

	if input.MinimizeOverride {
		cfg.Minimize = true
	}

	if input.WritebackOverride {
		cfg.Writeback = true
	}
}

func absolutize(workDir, path string) string {
	if path == "" {
		return ""
	}

	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}

func loadGlobalConfig(env map[string]string) (Config, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, explicitEmpty, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["input_dir"] {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrInputDirEmpty)
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		if _, err := os.Stat(cfgFile); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	cfg, explicitEmpty, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["input_dir"] {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, cfgFile, ErrInputDirEmpty)
	}

	return cfg, cfgFile, nil
}

func loadConfigFile(path string, mustExist bool) (Config, map[string]bool, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, nil, false, nil
		}

		if mustExist {
			return Config{}, nil, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, nil, false, nil
	}

	cfg, explicitEmpty, err := parseConfig(data)
	if err != nil {
		return Config{}, nil, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, explicitEmpty, true, nil
}

func parseConfig(data []byte) (Config, map[string]bool, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	explicitEmpty := make(map[string]bool)

	if val, exists := raw["input_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			explicitEmpty["input_dir"] = true
		}
	}

	return cfg, explicitEmpty, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.InputDir != "" {
		base.InputDir = overlay.InputDir
	}

	if overlay.OutputDir != "" {
		base.OutputDir = overlay.OutputDir
	}

	if overlay.NewCoverageDir != "" {
		base.NewCoverageDir = overlay.NewCoverageDir
	}

	if overlay.DictionaryPath != "" {
		base.DictionaryPath = overlay.DictionaryPath
	}

	if overlay.BlacklistPath != "" {
		base.BlacklistPath = overlay.BlacklistPath
	}

	if overlay.MaxFileSize != 0 {
		base.MaxFileSize = overlay.MaxFileSize
	}

	if overlay.SocketFuzzer {
		base.SocketFuzzer = true
	}

	if overlay.Minimize {
		base.Minimize = true
	}

	if overlay.Writeback {
		base.Writeback = true
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.InputDir == "" {
		return ErrInputDirEmpty
	}

	return nil
}
