package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Target        TargetConfig    `mapstructure:"target" yaml:"target"`
	Browser       BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Endpoint      EndpointConfig  `mapstructure:"endpoint" yaml:"endpoint"`
	Selectors     SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Timeouts      TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// TargetConfig identifies the web application the tool drives.
type TargetConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig configures the managed browser process.
type BrowserConfig struct {
	Binary      string   `mapstructure:"binary" yaml:"binary"`
	UserDataDir string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	PidFile     string   `mapstructure:"pid_file" yaml:"pid_file"`
	ExtraArgs   []string `mapstructure:"extra_args" yaml:"extra_args"`
}

// EndpointConfig configures the DevTools control endpoint.
type EndpointConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// SelectorsConfig holds the page element selectors. Login and the trigger
// region are CSS class selectors; the rest are XPath expressions.
type SelectorsConfig struct {
	Login         string `mapstructure:"login" yaml:"login"`
	Dialog        string `mapstructure:"dialog" yaml:"dialog"`
	TriggerRegion string `mapstructure:"trigger_region" yaml:"trigger_region"`
	Trigger       string `mapstructure:"trigger" yaml:"trigger"`
	Message       string `mapstructure:"message" yaml:"message"`
	ClaimButton   string `mapstructure:"claim_button" yaml:"claim_button"`
}

// TimeoutsConfig bounds every wait the tool performs.
type TimeoutsConfig struct {
	EndpointProbeMS        int `mapstructure:"endpoint_probe_ms" yaml:"endpoint_probe_ms"`
	LaunchPollSeconds      int `mapstructure:"launch_poll_seconds" yaml:"launch_poll_seconds"`
	LaunchPollAttempts     int `mapstructure:"launch_poll_attempts" yaml:"launch_poll_attempts"`
	KillSettleSeconds      int `mapstructure:"kill_settle_seconds" yaml:"kill_settle_seconds"`
	NavigateSeconds        int `mapstructure:"navigate_seconds" yaml:"navigate_seconds"`
	LoginProbeSeconds      int `mapstructure:"login_probe_seconds" yaml:"login_probe_seconds"`
	DialogProbeSeconds     int `mapstructure:"dialog_probe_seconds" yaml:"dialog_probe_seconds"`
	TriggerWaitSeconds     int `mapstructure:"trigger_wait_seconds" yaml:"trigger_wait_seconds"`
	HoverPauseMS           int `mapstructure:"hover_pause_ms" yaml:"hover_pause_ms"`
	DialogOpenSeconds      int `mapstructure:"dialog_open_seconds" yaml:"dialog_open_seconds"`
	DialogOpenReuseSeconds int `mapstructure:"dialog_open_reuse_seconds" yaml:"dialog_open_reuse_seconds"`
	MessageSeconds         int `mapstructure:"message_seconds" yaml:"message_seconds"`
	ClaimClickSeconds      int `mapstructure:"claim_click_seconds" yaml:"claim_click_seconds"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	profileDir := filepath.Join(home, ".checkin", "chrome-profile")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Target: TargetConfig{
			URL: "https://video.a2e.ai/",
		},
		Browser: BrowserConfig{
			Binary:      "google-chrome",
			UserDataDir: profileDir,
			PidFile:     filepath.Join(profileDir, "chrome.pid"),
			ExtraArgs:   []string{},
		},
		Endpoint: EndpointConfig{
			Host: "127.0.0.1",
			Port: 9222,
		},
		Selectors: SelectorsConfig{
			Login:         ".loginButton___KvHTz",
			Dialog:        "//div[@role='dialog' and contains(@class,'modal-checkIn')]",
			TriggerRegion: ".right___xiLco",
			Trigger:       "//div[contains(@class,'right___xiLco')]//div[contains(@class,'inviteReward___HHLBu')]/following-sibling::div[contains(@style,'display: flex')]",
			Message:       "//div[@role='dialog' and contains(@class,'modal-checkIn')]//div[contains(@class,'content__')]",
			ClaimButton:   "//div[@role='dialog' and contains(@class,'modal-checkIn')]//button[contains(@class,'aae-ant-btn-primary')]",
		},
		Timeouts: TimeoutsConfig{
			EndpointProbeMS:        500,
			LaunchPollSeconds:      1,
			LaunchPollAttempts:     10,
			KillSettleSeconds:      2,
			NavigateSeconds:        30,
			LoginProbeSeconds:      3,
			DialogProbeSeconds:     1,
			TriggerWaitSeconds:     10,
			HoverPauseMS:           500,
			DialogOpenSeconds:      5,
			DialogOpenReuseSeconds: 15,
			MessageSeconds:         2,
			ClaimClickSeconds:      5,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".checkin", "config.yaml"), nil
}
