// Package cli wires the kb commands.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbrag/internal/app"
	"kbrag/internal/config"
	"kbrag/internal/logger"
)

var version = "dev"

// session is shared by the commands of one invocation. It is filled in by
// the root pre-run hook.
type session struct {
	configPath string
	envFile    string
	verbose    bool
	logFile    string

	cfg *config.AppConfig
	log *zap.Logger
	rt  *app.Runtime
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:   "kb",
		Short: "Layered markdown knowledge base with ranked retrieval",
		Long: `kb chunks a directory of markdown notes into summary, window, section
and file layers, stores their embeddings and answers questions from the
best-ranked chunks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return s.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&s.configPath, "config", "", "path to YAML config (default ./kb.yaml, then ~/.config/kb/config.yaml)")
	flags.StringVar(&s.envFile, "env-file", config.DefaultEnvFile, "path to .env file")
	flags.BoolVarP(&s.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&s.logFile, "log-file", "", "also write JSON logs to this file")

	root.AddCommand(
		newIngestCommand(s),
		newRetrieveCommand(s),
		newExportCommand(s),
		newServeCommand(s),
		newAskCommand(s),
		newBrowseCommand(s),
		newConfigCommand(s),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (s *session) open(cmd *cobra.Command) error {
	if err := config.LoadEnv(s.envFile); err != nil {
		return err
	}
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if s.configPath != "" {
		path = s.configPath
		cfg, err = config.Load(path)
	} else {
		cfg, path, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	if s.logFile != "" {
		cfg.Logging.File = s.logFile
	}
	s.cfg = cfg
	s.log = logger.New(logger.Options{
		Verbose: s.verbose,
		File:    cfg.Logging.File,
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	s.log.Debug("config loaded", zap.String("path", path))
	s.rt = app.New(cfg, s.log)
	return nil
}

func (s *session) close() error {
	if s.log != nil {
		_ = s.log.Sync()
	}
	if s.rt == nil {
		return nil
	}
	return s.rt.Close()
}
