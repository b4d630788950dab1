package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-loads the configuration whenever the config file is written and
// hands the result to onChange. An invalid file is reported as an error and
// the caller keeps its previous configuration.
//
// Watch is a no-op when no config file was read.
func Watch(onChange func(cfg *Config, err error)) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load()
		onChange(cfg, err)
	})
	viper.WatchConfig()
}
