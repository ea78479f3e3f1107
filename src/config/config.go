// Package config provides configuration management for the sikuli bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"sikuli-bot/src/failure"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "sikulibot.yaml"

// Checkout modes for github.checkout.
const (
	CheckoutCommit = "commit"
	CheckoutBranch = "branch"
)

// Config holds the application configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Branch    BranchConfig    `yaml:"branch"`
	GitHub    GitHubConfig    `yaml:"github"`
	SSH       SSHConfig       `yaml:"ssh"`
	Installer InstallerConfig `yaml:"installer"`
	Install   InstallConfig   `yaml:"install"`
	Suite     SuiteConfig     `yaml:"suite"`
	Zulip     ZulipConfig     `yaml:"zulip"`
	Notify    NotifyConfig    `yaml:"notify"`
	Store     StoreConfig     `yaml:"store"`
	Broker    BrokerConfig    `yaml:"broker"`
	Logging   LoggingConfig   `yaml:"logging"`
	Lock      LockConfig      `yaml:"lock"`
}

// PathsConfig locates the directories a run works in.
type PathsConfig struct {
	Installers string `yaml:"installers"`
	Logs       string `yaml:"logs"`
	Workspace  string `yaml:"workspace"`
}

// ArtifactsConfig describes which files count as patch installers and
// their archived logs.
type ArtifactsConfig struct {
	Prefix          string `yaml:"prefix"`
	InstallerSuffix string `yaml:"installer_suffix"`
	LogSuffix       string `yaml:"log_suffix"`
	Marker          string `yaml:"marker"`
}

// BranchConfig selects how a branch is read out of an installer filename.
// Pattern wins when set; Prefix/Suffix is the legacy literal mode.
type BranchConfig struct {
	Pattern string `yaml:"pattern"`
	Prefix  string `yaml:"prefix"`
	Suffix  string `yaml:"suffix"`
}

type GitHubConfig struct {
	BaseURL       string `yaml:"base_url"`
	Owner         string `yaml:"owner"`
	Repo          string `yaml:"repo"`
	DefaultRemote string `yaml:"default_remote"`
	DefaultRef    string `yaml:"default_ref"`
	Checkout      string `yaml:"checkout"`
	CloneURL      string `yaml:"clone_url"` // fmt template taking owner/repo
	TokenFile     string `yaml:"token_file"`
	Token         string `yaml:"-"`

	// GitTimeout bounds each clone and checkout. Zero means no limit.
	GitTimeout time.Duration `yaml:"git_timeout"`
}

type SSHConfig struct {
	Home    string `yaml:"home"`
	KeyFile string `yaml:"key_file"`
}

type InstallerConfig struct {
	Args      []string        `yaml:"args"`
	Timeout   time.Duration   `yaml:"timeout"`
	Signature SignatureConfig `yaml:"signature"`
}

// SignatureConfig enables detached OpenPGP verification of installers.
type SignatureConfig struct {
	PublicKey string `yaml:"public_key"`
	Suffix    string `yaml:"suffix"`
}

// InstallConfig tells the suite where the product was installed.
type InstallConfig struct {
	EnvVar  string `yaml:"env_var"`
	AppPath string `yaml:"app_path"`
}

type SuiteConfig struct {
	Dir         string        `yaml:"dir"`
	Interpreter string        `yaml:"interpreter"`
	Entry       string        `yaml:"entry"`
	Args        []string      `yaml:"args"`
	LogFile     string        `yaml:"log_file"`
	JUnitReport string        `yaml:"junit_report"`
	StripPrefix string        `yaml:"strip_prefix"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ZulipConfig struct {
	Site   string `yaml:"site"`
	Email  string `yaml:"email"`
	APIKey string `yaml:"-"`
	Stream string `yaml:"stream"`
	Topic  string `yaml:"topic"`
}

type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
	Errors  bool `yaml:"errors"`
	NoTests bool `yaml:"no_tests"`
}

type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	// File keeps run history as JSON when no database is configured.
	// Empty keeps it in memory for the life of the process.
	File string `yaml:"file"`
}

type BrokerConfig struct {
	Brokers []string `yaml:"brokers"`
}

type LoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Verbose    bool   `yaml:"verbose"`
}

type LockConfig struct {
	File       string        `yaml:"file"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Default returns the configuration of the original lab deployment.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Installers: `Y:\Shared\Scratch\_Autobuild\Insight`,
			Logs:       `E:\SikuliTestLogs`,
			Workspace:  `E:\workspace`,
		},
		Artifacts: ArtifactsConfig{
			Prefix:          "geoscience analyst_",
			InstallerSuffix: "_setup.exe",
			LogSuffix:       "_setup.txt",
			Marker:          "patch",
		},
		Branch: BranchConfig{
			Pattern: `(?i)^(?P<product>[^_]+)_(?P<version>v[^_]+)_(?P<arch>[^_]+)_(?P<branch>.+)_patch_(?P<timestamp>\d{4}(?:-\d{2}){4})_setup\.exe$`,
		},
		GitHub: GitHubConfig{
			BaseURL:       "https://api.github.com",
			Owner:         "MiraGeoscience",
			Repo:          "InSight",
			DefaultRemote: "MiraGeoscience/InSight",
			DefaultRef:    "development",
			Checkout:      CheckoutCommit,
			CloneURL:      "git@github.com:%s",
			GitTimeout:    30 * time.Minute,
		},
		SSH: SSHConfig{
			Home: "E:/application/github",
		},
		Installer: InstallerConfig{
			Args:      []string{"/SILENT"},
			Signature: SignatureConfig{Suffix: ".sig"},
		},
		Install: InstallConfig{
			EnvVar:  "ANALYST_PATH",
			AppPath: "C:/Program Files/Mira Geoscience/Geoscience ANALYST",
		},
		Suite: SuiteConfig{
			Dir:         "TestSikuli",
			Interpreter: "python",
			Entry:       "RunAllTests.py",
			Args:        []string{"installed"},
			LogFile:     "log.txt",
		},
		Zulip: ZulipConfig{
			Site:   "https://mirageoscience.zulipchat.com",
			Stream: "Sikuli",
			Topic:  "QtSight",
		},
		Notify: NotifyConfig{
			Enabled: true,
			Errors:  true,
		},
		Store: StoreConfig{
			File: filepath.Join(os.TempDir(), "sikulibot-runs.json"),
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 10,
			MaxAgeDays: 7,
		},
		Lock: LockConfig{
			File:       filepath.Join(os.TempDir(), "sikulibot.lock"),
			StaleAfter: 12 * time.Hour,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. A missing DefaultPath is not an error; any other missing
// path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", failure.ErrConfig, path, err)
			}
			cfg.resolveRelative(filepath.Dir(path))
		case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		default:
			return nil, fmt.Errorf("%w: read %s: %v", failure.ErrConfig, path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays secrets and deployment endpoints from the environment.
// The GitHub token is read from token_file when that is set, so a file
// always wins over GITHUB_TOKEN.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if c.GitHub.TokenFile != "" {
		token, err := readSecret(c.GitHub.TokenFile)
		if err != nil {
			return fmt.Errorf("%w: github.token_file: %v", failure.ErrTokenMissing, err)
		}
		c.GitHub.Token = token
	}
	if v := getenv("ZULIP_EMAIL"); v != "" {
		c.Zulip.Email = v
	}
	if v := getenv("ZULIP_API_KEY"); v != "" {
		c.Zulip.APIKey = v
	}
	if v := getenv("ZULIP_SITE"); v != "" {
		c.Zulip.Site = v
	}
	if v := getenv("SIKULIBOT_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := getenv("SIKULIBOT_REDPANDA_BROKERS"); v != "" {
		c.Broker.Brokers = splitList(v)
	}
	if v := getenv("SIKULIBOT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	return nil
}

// Validate reports the first setting a run cannot proceed without. The
// GitHub token and the chat credentials are checked by the resolver and the
// notifier once a build has been selected.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"paths.installers", c.Paths.Installers},
		{"paths.logs", c.Paths.Logs},
		{"paths.workspace", c.Paths.Workspace},
		{"github.owner", c.GitHub.Owner},
		{"github.repo", c.GitHub.Repo},
		{"github.default_remote", c.GitHub.DefaultRemote},
		{"suite.dir", c.Suite.Dir},
		{"suite.entry", c.Suite.Entry},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return configError(r.name+" is required", "Set it in the config file.")
		}
	}

	if c.Branch.Pattern != "" {
		if _, err := regexp.Compile(c.Branch.Pattern); err != nil {
			return configError("branch.pattern is not a valid regular expression", err.Error())
		}
	} else if c.Branch.Prefix == "" && c.Branch.Suffix == "" {
		return configError("branch.pattern or branch.prefix/branch.suffix is required", "")
	}

	switch c.GitHub.Checkout {
	case CheckoutCommit, CheckoutBranch:
	default:
		return configError(
			fmt.Sprintf("github.checkout must be %q or %q, got %q", CheckoutCommit, CheckoutBranch, c.GitHub.Checkout), "")
	}

	if c.GitHub.GitTimeout < 0 {
		return configError("github.git_timeout must not be negative", "")
	}
	return nil
}

// SuitePath is the directory holding the UI test suite after checkout.
func (c *Config) SuitePath() string {
	return filepath.Join(c.Paths.Workspace, c.Suite.Dir)
}

// FailurePrefix is the path prefix removed from failing test identifiers.
func (c *Config) FailurePrefix() string {
	if c.Suite.StripPrefix != "" {
		return c.Suite.StripPrefix
	}
	return filepath.Join(c.SuitePath(), "Test")
}

// Flags are the command-line overrides shared by every subcommand.
type Flags struct {
	ConfigPath string
	Verbose    bool
	LogFile    string
}

// BindFlags registers the shared flags on fs.
func BindFlags(fs *pflag.FlagSet, f *Flags) {
	fs.StringVarP(&f.ConfigPath, "config", "c", DefaultPath, "Path to the YAML config file")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Also write logs to this rotating file")
}

// Apply copies explicitly set flags over cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.Verbose {
		cfg.Logging.Verbose = true
	}
	if f.LogFile != "" {
		cfg.Logging.File = f.LogFile
	}
}

func (c *Config) resolveRelative(base string) {
	if c.GitHub.TokenFile != "" && !filepath.IsAbs(c.GitHub.TokenFile) {
		c.GitHub.TokenFile = filepath.Join(base, c.GitHub.TokenFile)
	}
	if c.Store.File != "" && !filepath.IsAbs(c.Store.File) {
		c.Store.File = filepath.Join(base, c.Store.File)
	}
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return secret, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func configError(msg, hint string) error {
	return &failure.UserError{Message: msg, Hint: hint, Err: failure.ErrConfig}
}
