package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odaudit/odaudit/internal/config"
	"github.com/odaudit/odaudit/internal/logging"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-file":    "LOG_FILE",
	"log-level":   "LOG_LEVEL",
	"environment": "ENVIRONMENT",
	"format":      "OUTPUT_FORMAT",
}

// session is the configuration and audit log of one command invocation.
type session struct {
	cfg *config.Config
	log *logging.AuditLog
}

func (a *App) start(cmd *cobra.Command) (*session, error) {
	v := viper.New()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, file)
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	log, err := logging.New(logging.Config{
		File:    cfg.LogFile,
		Level:   cfg.LogLevel,
		Verbose: verbose,
		Console: a.Stderr,
	})
	if err != nil {
		return nil, err
	}

	log.Logger.Debug().
		Str("command", cmd.CommandPath()).
		Str("version", a.Version).
		Msg("command started")

	return &session{cfg: cfg, log: log}, nil
}

func (s *session) Close() {
	_ = s.log.Close()
}
