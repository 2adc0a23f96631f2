package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"kbrag/internal/domain"
	"kbrag/internal/metadata"
	"kbrag/internal/service"
)

// storeFlags are shared by every command that opens the store.
type storeFlags struct {
	persistDir string
	collection string
}

func (sf *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sf.persistDir, "persist-dir", "db", "vector store directory")
	cmd.Flags().StringVar(&sf.collection, "collection", "kb_docs", "collection name")
}

func (sf *storeFlags) apply(cmd *cobra.Command, s *session) {
	if cmd.Flags().Changed("persist-dir") {
		s.cfg.VectorStore.PersistDir = sf.persistDir
	}
	if cmd.Flags().Changed("collection") {
		s.cfg.VectorStore.Collection = sf.collection
	}
}

func newRetrieveCommand(s *session) *cobra.Command {
	var (
		sf          storeFlags
		topK        int
		fetchK      int
		layerBias   float64
		filter      domain.Filter
		noDedupe    bool
		autoSummary bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Rank stored chunks against a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, s)
			f := cmd.Flags()
			opts, err := s.rt.RetrievalOptions()
			if err != nil {
				return err
			}
			if f.Changed("top-k") {
				opts.TopK = topK
			}
			if f.Changed("fetch-k") {
				opts.FetchK = fetchK
			}
			if f.Changed("layer-bias") {
				opts.LayerBias = layerBias
			}
			if noDedupe {
				opts.Dedupe = false
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			results, err := service.NewRetriever(s.rt, s.log).Retrieve(cmd.Context(), service.RetrieveRequest{
				Query:       args[0],
				Filter:      filter,
				AutoSummary: autoSummary || s.cfg.Retrieval.AutoSummary,
				Options:     opts,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return outputRetrieveJSON(cmd, results)
			}
			outputRetrieveListing(cmd, results)
			return nil
		},
	}

	sf.register(cmd)
	f := cmd.Flags()
	f.IntVar(&topK, "top-k", 5, "number of results to return")
	f.IntVar(&fetchK, "fetch-k", 15, "number of candidates to fetch")
	f.Float64Var(&layerBias, "layer-bias", 0.15, "penalty per layer rank")
	f.StringVar(&filter.Topic, "topic", "", "filter by topic (about, projects, ...)")
	f.StringVar(&filter.DocType, "doc-type", "", "filter by doc_type")
	f.StringVar(&filter.Layer, "layer", "", "filter by layer (summary, window, section, file, fallback)")
	f.StringVar(&filter.RetrievalTier, "retrieval-tier", "", "filter by retrieval_tier")
	f.BoolVar(&noDedupe, "no-dedupe", false, "disable content_hash dedupe")
	f.BoolVar(&autoSummary, "auto-summary", false, "prefer the summary layer when the query asks for a summary")
	f.BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func outputRetrieveJSON(cmd *cobra.Command, results []domain.Scored) error {
	if results == nil {
		results = []domain.Scored{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputRetrieveListing(cmd *cobra.Command, results []domain.Scored) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}
	for i, r := range results {
		m := r.Metadata
		fmt.Fprintf(out, "\n[%d] score=%.4f dist=%.4f layer=%s\n", i+1, r.Score, r.Distance, m.GetString(metadata.KeyLayer))
		fmt.Fprintf(out, "    topic=%s doc_type=%s title=%s\n",
			m.GetString(metadata.KeyTopic), m.GetString(metadata.KeyDocType), m.GetString(metadata.KeyTitle))
		fmt.Fprintf(out, "    source=%s section=%s\n", m.GetString(metadata.KeySourcePath), m.GetString(metadata.KeySectionTitle))
		fmt.Fprintf(out, "    content: %s\n", r.Content)
	}
}
