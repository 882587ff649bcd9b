package config

import (
	"github.com/spf13/viper"
)

// Config holds the settings of the schema inspection tool.
type Config struct {
	GraphFile string
	NodeVar   string
	RelVar    string
	Labels    []string
	Types     []string
	ShowRows  bool
}

// DefaultConfig returns the tool defaults.
func DefaultConfig() Config {
	return Config{
		NodeVar: "n",
		RelVar:  "r",
	}
}

// Load reads tool configuration from an optional config file with
// environment overrides (SLATE_GRAPH_FILE, SLATE_NODE_VAR, ...).
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvPrefix("SLATE")

	v.BindEnv("graph_file")
	v.BindEnv("node_var")
	v.BindEnv("rel_var")
	v.BindEnv("show_rows")

	if err := v.ReadInConfig(); err != nil {
		// No config file is fine; defaults plus env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if s := v.GetString("graph_file"); s != "" {
		cfg.GraphFile = s
	}
	if s := v.GetString("node_var"); s != "" {
		cfg.NodeVar = s
	}
	if s := v.GetString("rel_var"); s != "" {
		cfg.RelVar = s
	}
	if labels := v.GetStringSlice("labels"); len(labels) > 0 {
		cfg.Labels = labels
	}
	if types := v.GetStringSlice("types"); len(types) > 0 {
		cfg.Types = types
	}
	cfg.ShowRows = v.GetBool("show_rows")

	return cfg, nil
}
