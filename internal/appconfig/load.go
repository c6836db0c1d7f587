package appconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("target.url", cfg.Target.URL)
	v.SetDefault("browser.binary", cfg.Browser.Binary)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.pid_file", cfg.Browser.PidFile)
	v.SetDefault("browser.extra_args", cfg.Browser.ExtraArgs)
	v.SetDefault("endpoint.host", cfg.Endpoint.Host)
	v.SetDefault("endpoint.port", cfg.Endpoint.Port)
	v.SetDefault("selectors.login", cfg.Selectors.Login)
	v.SetDefault("selectors.dialog", cfg.Selectors.Dialog)
	v.SetDefault("selectors.trigger_region", cfg.Selectors.TriggerRegion)
	v.SetDefault("selectors.trigger", cfg.Selectors.Trigger)
	v.SetDefault("selectors.message", cfg.Selectors.Message)
	v.SetDefault("selectors.claim_button", cfg.Selectors.ClaimButton)
	v.SetDefault("timeouts.endpoint_probe_ms", cfg.Timeouts.EndpointProbeMS)
	v.SetDefault("timeouts.launch_poll_seconds", cfg.Timeouts.LaunchPollSeconds)
	v.SetDefault("timeouts.launch_poll_attempts", cfg.Timeouts.LaunchPollAttempts)
	v.SetDefault("timeouts.kill_settle_seconds", cfg.Timeouts.KillSettleSeconds)
	v.SetDefault("timeouts.navigate_seconds", cfg.Timeouts.NavigateSeconds)
	v.SetDefault("timeouts.login_probe_seconds", cfg.Timeouts.LoginProbeSeconds)
	v.SetDefault("timeouts.dialog_probe_seconds", cfg.Timeouts.DialogProbeSeconds)
	v.SetDefault("timeouts.trigger_wait_seconds", cfg.Timeouts.TriggerWaitSeconds)
	v.SetDefault("timeouts.hover_pause_ms", cfg.Timeouts.HoverPauseMS)
	v.SetDefault("timeouts.dialog_open_seconds", cfg.Timeouts.DialogOpenSeconds)
	v.SetDefault("timeouts.dialog_open_reuse_seconds", cfg.Timeouts.DialogOpenReuseSeconds)
	v.SetDefault("timeouts.message_seconds", cfg.Timeouts.MessageSeconds)
	v.SetDefault("timeouts.claim_click_seconds", cfg.Timeouts.ClaimClickSeconds)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		// Missing file means defaults apply; an explicit path surfaces
		// the raw os error rather than ConfigFileNotFoundError.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	target := strings.TrimSpace(cfg.Target.URL)
	if target == "" {
		return fmt.Errorf("target.url is required")
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("target.url must include scheme and host (e.g. https://example.com)")
	}
	if strings.TrimSpace(cfg.Browser.Binary) == "" {
		return fmt.Errorf("browser.binary is required")
	}
	if strings.TrimSpace(cfg.Browser.UserDataDir) == "" {
		return fmt.Errorf("browser.user_data_dir is required")
	}
	if strings.TrimSpace(cfg.Browser.PidFile) == "" {
		return fmt.Errorf("browser.pid_file is required")
	}
	if strings.TrimSpace(cfg.Endpoint.Host) == "" {
		return fmt.Errorf("endpoint.host is required")
	}
	if cfg.Endpoint.Port < 1 || cfg.Endpoint.Port > 65535 {
		return fmt.Errorf("endpoint.port %d is out of range", cfg.Endpoint.Port)
	}
	return validateTimeouts(cfg.Timeouts)
}

func validateTimeouts(t TimeoutsConfig) error {
	checks := []struct {
		key   string
		value int
	}{
		{"timeouts.endpoint_probe_ms", t.EndpointProbeMS},
		{"timeouts.launch_poll_seconds", t.LaunchPollSeconds},
		{"timeouts.launch_poll_attempts", t.LaunchPollAttempts},
		{"timeouts.kill_settle_seconds", t.KillSettleSeconds},
		{"timeouts.navigate_seconds", t.NavigateSeconds},
		{"timeouts.login_probe_seconds", t.LoginProbeSeconds},
		{"timeouts.dialog_probe_seconds", t.DialogProbeSeconds},
		{"timeouts.trigger_wait_seconds", t.TriggerWaitSeconds},
		{"timeouts.hover_pause_ms", t.HoverPauseMS},
		{"timeouts.dialog_open_seconds", t.DialogOpenSeconds},
		{"timeouts.dialog_open_reuse_seconds", t.DialogOpenReuseSeconds},
		{"timeouts.message_seconds", t.MessageSeconds},
		{"timeouts.claim_click_seconds", t.ClaimClickSeconds},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%s must be positive", c.key)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Browser.Binary = expandEnv(cfg.Browser.Binary)
	cfg.Browser.UserDataDir = expandEnv(cfg.Browser.UserDataDir)
	cfg.Browser.PidFile = expandEnv(cfg.Browser.PidFile)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
