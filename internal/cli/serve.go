package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbrag/internal/app"
	"kbrag/internal/server"
	"kbrag/internal/service"
)

func newServeCommand(s *session) *cobra.Command {
	var (
		sf      storeFlags
		addr    string
		vectors string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer POST /api/ask over HTTP",
		Long: `Starts the HTTP interface. With --vectors the exported JSON file is loaded
into memory on the first request instead of opening the persistent store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sf.apply(cmd, s)
			if cmd.Flags().Changed("addr") {
				s.cfg.Server.Addr = addr
			}
			if vectors != "" {
				s.cfg.VectorStore.Type = app.StoreExport
				s.cfg.VectorStore.ExportPath = vectors
			}

			opts, err := s.rt.RetrievalOptions()
			if err != nil {
				return err
			}
			asker := service.NewAsker(s.rt, opts, s.log)
			srv := server.New(server.Config{
				Addr:         s.cfg.Server.Addr,
				AllowOrigins: s.cfg.Server.AllowOrigins,
			}, asker, s.log)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				s.log.Info("shutting down", zap.String("signal", sig.String()))
				if err := srv.Shutdown(); err != nil {
					return err
				}
				return <-errCh
			}
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&vectors, "vectors", "", "serve from an exported vectors JSON file")
	return cmd
}
