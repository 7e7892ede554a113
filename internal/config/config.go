// Package config provides the Viper-backed implementation of the
// plugin.Config interface plus logger construction.
package config

import (
	"strings"
	"time"

	"github.com/HerbHall/taproot/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement plugin.Config.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by the given Viper instance.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

// Load reads the configuration file (explicit path, else taproot.yaml in
// the working directory or /etc/taproot) and binds TAPROOT_* environment
// variables. A missing file is not an error; defaults apply.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("taproot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8424")
	v.SetDefault("database.path", "taproot.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("plugins.scan.mdns_enabled", true)
	v.SetDefault("plugins.scan.snmp_community", "public")
	v.SetDefault("plugins.scan.concurrency", 1)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taproot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/taproot")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errorsAs(err, &notFound) {
			return v, nil
		}
		if path != "" {
			return nil, err
		}
	}
	return v, nil
}

// errorsAs is a tiny local wrapper so Load reads cleanly.
func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

func (c *ViperConfig) Get(key string) any                   { return c.v.Get(key) }
func (c *ViperConfig) GetString(key string) string          { return c.v.GetString(key) }
func (c *ViperConfig) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *ViperConfig) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *ViperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *ViperConfig) IsSet(key string) bool                { return c.v.IsSet(key) }

func (c *ViperConfig) Sub(key string) plugin.Config {
	sub := c.v.Sub(key)
	if sub == nil {
		return New(nil)
	}
	return New(sub)
}

// Viper returns the underlying Viper instance for top-level keys like
// server.addr that are read outside the plugin config scopes.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
