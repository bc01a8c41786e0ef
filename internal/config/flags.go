package config

import (
	"github.com/spf13/pflag"
)

// Flags are command-line overrides for the most commonly changed settings.
// A flag only overrides the environment when it was set explicitly.
type Flags struct {
	set *pflag.FlagSet

	root      string
	transport string
	host      string
	port      int
	logLevel  string
	logFormat string
}

// AddFlags registers the override flags on fs.
func AddFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{set: fs}
	fs.StringVarP(&f.root, "root", "r", "", "workspace root directory (env INVEST_ROOT)")
	fs.StringVarP(&f.transport, "transport", "t", "", "stdio or http (env MCP_TRANSPORT)")
	fs.StringVar(&f.host, "host", "", "listen host in http mode (env SERVER_HOST)")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port in http mode (env SERVER_PORT)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	fs.StringVar(&f.logFormat, "log-format", "", "text or json (env LOG_FORMAT)")
	return f
}

// Apply copies every explicitly set flag into cfg.
func (f *Flags) Apply(cfg *Config) {
	if f == nil || f.set == nil {
		return
	}
	if f.set.Changed("root") {
		cfg.Workspace.Root = f.root
	}
	if f.set.Changed("transport") {
		cfg.Server.Transport = f.transport
	}
	if f.set.Changed("host") {
		cfg.Server.Host = f.host
	}
	if f.set.Changed("port") {
		cfg.Server.Port = f.port
	}
	if f.set.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if f.set.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
}
