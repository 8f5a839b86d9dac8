// Package cmd defines the kmbridge CLI commands.
package cmd

// LogOptions configure the structured and raw loggers.
type LogOptions struct {
	Level   string `help:"Log level (trace, debug, info, warn, error)" default:"info" env:"KMBRIDGE_LOG_LEVEL"`
	File    string `help:"Write logs to this file instead of the console" env:"KMBRIDGE_LOG_FILE"`
	RawFile string `help:"Write raw report hex dumps to this file" env:"KMBRIDGE_LOG_RAW_FILE"`
}

// CLI is the root command structure parsed by kong.
type CLI struct {
	Log        LogOptions     `embed:"" prefix:"log."`
	ConfigPath string         `name:"config" help:"Path to a config file (json, yaml or toml)" env:"KMBRIDGE_CONFIG"`
	Bridge     Bridge         `cmd:"" help:"Run the remapping bridge"`
	Console    Console        `cmd:"" help:"Interactive km.* console against a running bridge"`
	Cfg        ConfigCommand  `cmd:"" name:"cfg" help:"Configuration helpers"`
	Service    ServiceCommand `cmd:"" help:"Manage the bridge system service"`
}
