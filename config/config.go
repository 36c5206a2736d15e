// Package config loads the archiver's configuration from a TOML file and the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"github.com/diamondburned/arikawa/v3/discord"
)

// DefaultPath is used if $CONFIG_PATH is not set.
const DefaultPath = "config.toml"

type Config struct {
	// ArchiveLocation is the directory all archives are written to.
	ArchiveLocation string `toml:"archive_location"`
	// WebsiteBase and GithubName are concatenated to form the base URL of the published archive.
	WebsiteBase string `toml:"website_base"`
	GithubName  string `toml:"github_name"`
	// Season is prefixed to category index titles if non-zero.
	Season int `toml:"season"`

	Exporter   ExporterConfig `toml:"exporter"`
	Index      IndexConfig    `toml:"index"`
	Bot        BotConfig      `toml:"bot"`
	Categories []Category     `toml:"categories"`

	// Auth is read from the environment, never from the config file.
	Auth AuthConfig `toml:"-"`
}

// Category is a Discord category to archive.
type Category struct {
	ID   discord.ChannelID `toml:"id"`
	Name string            `toml:"name"`
	// InternalName is used as the category's directory name and index file name.
	InternalName string `toml:"internal_name"`
}

type ExporterConfig struct {
	// Path is the exporter executable. If it ends in .dll, it is run with dotnet.
	// If empty, the executable in InstallDir is used.
	Path       string `toml:"path"`
	InstallDir string `toml:"install_dir"`
	// AutoUpdate installs or updates the exporter in InstallDir when the bot starts.
	AutoUpdate bool `toml:"auto_update"`

	Parallel   int      `toml:"parallel"`
	Media      bool     `toml:"media"`
	ReuseMedia bool     `toml:"reuse_media"`
	ExtraArgs  []string `toml:"extra_args"`
}

type IndexConfig struct {
	// RenderHTML also writes an HTML version of every index page.
	RenderHTML bool `toml:"render_html"`
}

type BotConfig struct {
	// Cooldown is the minimum time between two archive runs in the same server.
	Cooldown Duration `toml:"cooldown"`
}

type AuthConfig struct {
	// Token is the bot token, without the "Bot " prefix.
	Token    string
	Owner    discord.UserID
	Prefixes []string
	Sentry   string
}

// Duration is a time.Duration that can be read from a TOML string such as "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns a Config with all defaults filled in.
func Default() Config {
	return Config{
		ArchiveLocation: "archive",
		Exporter: ExporterConfig{
			InstallDir: "cli",
			AutoUpdate: true,
			Parallel:   10,
			Media:      true,
			ReuseMedia: true,
			// the exporter otherwise refuses to run until a notice is acknowledged
			ExtraArgs: []string{"--fuck-russia"},
		},
		Bot: BotConfig{
			Cooldown: Duration(time.Minute),
		},
	}
}

// Path returns the config path from $CONFIG_PATH, or DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Read reads and validates the config file at path, then applies environment overrides.
func Read(path string) (c Config, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "reading config file")
	}

	c, err = Parse(b)
	if err != nil {
		return c, err
	}

	err = c.ApplyEnv(os.Getenv)
	if err != nil {
		return c, errors.Wrap(err, "reading environment")
	}

	return c, c.Validate()
}

// Parse parses a TOML config on top of the defaults. It does not validate the result.
func Parse(b []byte) (Config, error) {
	c := Default()

	err := toml.Unmarshal(b, &c)
	if err != nil {
		return c, errors.Wrap(err, "unmarshaling config")
	}
	return c, nil
}

// ApplyEnv fills in c.Auth and any overrides from the given environment lookup function.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	// the exporter wants the bare token, the prefix is added back for the Discord API
	c.Auth.Token = strings.TrimPrefix(strings.TrimSpace(getenv("TOKEN")), "Bot ")
	c.Auth.Sentry = getenv("SENTRY_URL")

	for _, p := range strings.Split(getenv("PREFIXES"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			c.Auth.Prefixes = append(c.Auth.Prefixes, p)
		}
	}

	if s := getenv("OWNER"); s != "" {
		sf, err := discord.ParseSnowflake(s)
		if err != nil {
			return errors.Wrap(err, "parsing $OWNER")
		}
		c.Auth.Owner = discord.UserID(sf)
	}

	if s := getenv("WEBSITE_BASE"); s != "" {
		c.WebsiteBase = s
	}
	return nil
}

// Validate checks the file-based part of the config.
func (c Config) Validate() error {
	if c.ArchiveLocation == "" {
		return errors.New("archive_location must be set")
	}

	if len(c.Categories) == 0 {
		return errors.New("at least one category must be configured")
	}

	if c.Exporter.Parallel < 1 {
		return errors.Errorf("exporter.parallel must be at least 1, is %v", c.Exporter.Parallel)
	}

	// the install directory is removed when the exporter is updated
	if c.Exporter.Path == "" {
		err := validInstallDir(c.Exporter.InstallDir, c.ArchiveLocation)
		if err != nil {
			return err
		}
	}

	if c.Bot.Cooldown < 0 {
		return errors.New("bot.cooldown cannot be negative")
	}

	seen := make(map[string]int, len(c.Categories))
	for i, cat := range c.Categories {
		if !cat.ID.IsValid() {
			return errors.Errorf("categories[%d].id must be set", i)
		}

		if cat.Name == "" {
			return errors.Errorf("categories[%d].name must be set", i)
		}

		if !validInternalName(cat.InternalName) {
			return errors.Errorf("categories[%d].internal_name %q is not a valid directory name", i, cat.InternalName)
		}

		if j, ok := seen[cat.InternalName]; ok {
			return errors.Errorf("categories[%d].internal_name %q is already used by categories[%d]", i, cat.InternalName, j)
		}
		seen[cat.InternalName] = i
	}

	return nil
}

// ValidateAuth checks that the environment has everything needed to connect to Discord.
func (c Config) ValidateAuth() error {
	if c.Auth.Token == "" {
		return errors.New("$TOKEN must be set")
	}

	if !c.Auth.Owner.IsValid() {
		return errors.New("$OWNER must be set")
	}
	return nil
}

// BotToken returns the token in the form the Discord API expects.
func (a AuthConfig) BotToken() string {
	return "Bot " + a.Token
}

// BaseURL returns the base URL of the published archive.
func (c Config) BaseURL() string {
	return c.WebsiteBase + c.GithubName
}

func validInternalName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && filepath.Base(s) == s
}

func validInstallDir(dir, archive string) error {
	if dir == "" || filepath.Clean(dir) == "." {
		return errors.Errorf("exporter.install_dir %q must be a separate directory", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrap(err, "resolving exporter.install_dir")
	}
	absArchive, err := filepath.Abs(archive)
	if err != nil {
		return errors.Wrap(err, "resolving archive_location")
	}

	rel, err := filepath.Rel(absDir, absArchive)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Errorf("exporter.install_dir %q cannot contain archive_location %q", dir, archive)
	}
	return nil
}
