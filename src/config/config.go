package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	AppName         = "stackfield-desktop"
	EnvPathEnvVar   = "STACKFIELD_DESKTOP_ENV"
	DefaultStartURL = "https://www.stackfield.com"
)

var defaultAllowedHosts = []string{"www.stackfield.com", "stackfield.com"}

// LoadOptions carries command line overrides.
type LoadOptions struct {
	EnvFileOverride  string
	StartURLOverride string
	Debug            bool
}

type Config struct {
	EnvPath            string
	StartURL           string
	AllowedHosts       []string
	EnableFileLogging  bool
	Debug              bool
	ChromePath         string
	ProfileDir         string
	IconPath           string
	AlertIconPath      string
	PollInitialDelay   time.Duration
	PollInterval       time.Duration
	TitleDebounce      time.Duration
	FocusDebounce      time.Duration
	ThumbnailSize      int
	SingleInstancePort int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) --env-file
	// 2) .env in the application (executable) directory
	// 3) If not found, use STACKFIELD_DESKTOP_ENV env var as a path to a config file
	envPath := resolveEnvPath(opts)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	startURL := getEnvWithDefault("START_URL", DefaultStartURL)
	if override := strings.TrimSpace(opts.StartURLOverride); override != "" {
		startURL = override
	}

	cfg := &Config{
		EnvPath:            envPath,
		StartURL:           startURL,
		AllowedHosts:       resolveAllowedHosts(os.Getenv("ALLOWED_HOSTS"), startURL),
		EnableFileLogging:  parseBool(os.Getenv("ENABLE_FILE_LOGGING")),
		Debug:              opts.Debug || parseBool(os.Getenv("DEBUG")),
		ChromePath:         os.Getenv("CHROME_PATH"),
		ProfileDir:         getEnvWithDefault("PROFILE_DIR", defaultProfileDir()),
		IconPath:           os.Getenv("ICON_PATH"),
		AlertIconPath:      os.Getenv("ALERT_ICON_PATH"),
		PollInitialDelay:   millis("POLL_INITIAL_DELAY_MS", 3000),
		PollInterval:       millis("POLL_INTERVAL_MS", 5000),
		TitleDebounce:      millis("TITLE_DEBOUNCE_MS", 500),
		FocusDebounce:      millis("FOCUS_DEBOUNCE_MS", 1000),
		ThumbnailSize:      positiveInt("THUMBNAIL_SIZE", 150),
		SingleInstancePort: positiveInt("SINGLEINSTANCE_PORT", 49560),
	}

	return cfg, nil
}

func resolveEnvPath(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.EnvFileOverride); override != "" {
		if _, err := os.Stat(override); err == nil {
			return override
		}
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

// resolveAllowedHosts parses a comma separated host list. The start URL's
// host is always allowed.
func resolveAllowedHosts(raw, startURL string) []string {
	hosts := append([]string(nil), defaultAllowedHosts...)
	if strings.TrimSpace(raw) != "" {
		hosts = lo.Map(strings.Split(raw, ","), func(h string, _ int) string {
			return strings.ToLower(strings.TrimSpace(h))
		})
	}
	if u, err := url.Parse(startURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, strings.ToLower(u.Hostname()))
	}
	return lo.Uniq(lo.Compact(hosts))
}

func defaultProfileDir() string {
	return filepath.Join(xdg.DataHome, AppName, "profile")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func positiveInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func millis(key string, def int) time.Duration {
	return time.Duration(positiveInt(key, def)) * time.Millisecond
}
