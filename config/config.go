package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var Logger *logrus.Entry

type Settings struct {
	Debug bool `mapstructure:"debug"`
	Trace bool `mapstructure:"trace"`

	Idle struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"idle"`

	Reconnect struct {
		Min   time.Duration `mapstructure:"min"`
		Max   time.Duration `mapstructure:"max"`
		Probe time.Duration `mapstructure:"probe"`
	} `mapstructure:"reconnect"`

	Toast struct {
		Limit   int           `mapstructure:"limit"`
		TTL     time.Duration `mapstructure:"ttl"`
		Preview int           `mapstructure:"preview"`
	} `mapstructure:"toast"`

	Typing struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"typing"`

	Notify struct {
		Enabled bool   `mapstructure:"enabled"`
		Icon    string `mapstructure:"icon"`
	} `mapstructure:"notify"`

	Storage struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`

	Mattermost struct {
		Server        string `mapstructure:"server"`
		Team          string `mapstructure:"team"`
		Token         string `mapstructure:"token"`
		Insecure      bool   `mapstructure:"insecure"`
		SkipTLSVerify bool   `mapstructure:"skiptlsverify"`
		ClientCert    string `mapstructure:"clientcert"`
		ClientKey     string `mapstructure:"clientkey"`
	} `mapstructure:"mattermost"`

	Slack struct {
		Token   string `mapstructure:"token"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"slack"`
}

// SetDefaults registers the built-in value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("idle.timeout", 5*time.Minute)
	v.SetDefault("reconnect.min", time.Second)
	v.SetDefault("reconnect.max", 30*time.Second)
	v.SetDefault("reconnect.probe", 5*time.Second)
	v.SetDefault("toast.limit", 5)
	v.SetDefault("toast.ttl", 5*time.Second)
	v.SetDefault("toast.preview", 100)
	v.SetDefault("typing.ttl", 5*time.Second)
	v.SetDefault("notify.enabled", true)
	v.SetDefault("storage.path", "matterstate.db")
	v.SetDefault("notify.icon", "")

	// registered so environment variables reach Unmarshal
	for _, key := range []string{
		"mattermost.server", "mattermost.team", "mattermost.token",
		"mattermost.clientcert", "mattermost.clientkey",
		"slack.token", "slack.channel",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("mattermost.insecure", false)
	v.SetDefault("mattermost.skiptlsverify", false)
}

func LoadConfig(cfgfile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("matterstate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	// use environment variables
	v.AutomaticEnv()

	if cfgfile == "" {
		return v, nil
	}

	v.SetConfigFile(cfgfile)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s", err)
	}

	// reload config on file changes
	if runtime.GOOS != "illumos" {
		v.OnConfigChange(func(e fsnotify.Event) {
			if Logger != nil {
				Logger.Infof("config file %s changed", e.Name)
			}
		})
		v.WatchConfig()
	}

	return v, nil
}

// Decode reads the settings out of v.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	return &s, nil
}
