package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbrag/internal/vectorstore/export"
)

func newExportCommand(s *session) *cobra.Command {
	var (
		sf     storeFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored vectors to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sf.apply(cmd, s)
			if output == "" {
				output = s.cfg.VectorStore.ExportPath
			}
			store, err := s.rt.Store(cmd.Context())
			if err != nil {
				return err
			}
			records, err := store.All(cmd.Context())
			if err != nil {
				return err
			}
			f := export.Build(s.cfg.Embedder.Model, s.cfg.VectorStore.Collection, records)
			if err := export.Write(output, f); err != nil {
				return err
			}
			s.log.Info("exported vectors", zap.String("path", output), zap.Int("count", f.Count))
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d vectors to %s\n", f.Count, output)
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default vector_store.export_path)")
	return cmd
}
