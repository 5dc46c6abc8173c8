package config

const (
	defaultConfigPath     = "/etc/relocate/config.toml"
	projectConfigName     = "relocate.toml"
	defaultLedgerPath     = "/var/lib/relocate/ledger"
	defaultLogDir         = "/var/log/relocate"
	defaultHistoryDB      = "/var/lib/relocate/history.db"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultSyncBinary     = "rsync"
	defaultSkipBelowBytes = 4096
	defaultNtfyTimeout    = 10
)

// Default returns a Config populated with repository defaults. It carries no
// resources; those always come from the configuration file.
func Default() Config {
	return Config{
		Paths: Paths{
			Ledger:    defaultLedgerPath,
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Sync: Sync{
			Binary:         defaultSyncBinary,
			SkipBelowBytes: defaultSkipBelowBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Privilege: Privilege{
			RequireRoot: true,
		},
	}
}
