package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kbrag/internal/service"
)

func newAskCommand(s *session) *cobra.Command {
	var sf storeFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, s)
			opts, err := s.rt.RetrievalOptions()
			if err != nil {
				return err
			}
			res, err := service.NewAsker(s.rt, opts, s.log).Ask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Text)
			if len(res.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for _, src := range res.Sources {
					fmt.Fprintf(out, "  - %s\n", src)
				}
			}
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}
