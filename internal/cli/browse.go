package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"kbrag/internal/domain"
	"kbrag/internal/service"
	"kbrag/internal/tui"
)

func newBrowseCommand(s *session) *cobra.Command {
	var (
		sf          storeFlags
		autoSummary bool
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Interactively search and page through ranked chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sf.apply(cmd, s)
			retriever := service.NewRetriever(s.rt, s.log)
			opts, err := s.rt.RetrievalOptions()
			if err != nil {
				return err
			}
			search := func(ctx context.Context, query string) ([]domain.Scored, error) {
				return retriever.Retrieve(ctx, service.RetrieveRequest{
					Query:       query,
					AutoSummary: autoSummary || s.cfg.Retrieval.AutoSummary,
					Options:     opts,
				})
			}
			m := tui.New(search, "collection "+s.cfg.VectorStore.Collection)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout())).Run()
			return err
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&autoSummary, "auto-summary", false, "prefer the summary layer when the query asks for a summary")
	return cmd
}
