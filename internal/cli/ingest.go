package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kbrag/internal/domain"
	"kbrag/internal/service"
)

func newIngestCommand(s *session) *cobra.Command {
	var (
		root, persistDir, collection string
		windowSize, overlap, minSize int
		layers                       []string
		allowFallback, allowShort    bool
		reset                        bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk and embed the knowledge base",
		Long: `Reads every markdown file under the knowledge-base directory, builds the
layered chunks, embeds them and writes them to the vector store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := s.cfg
			f := cmd.Flags()
			if f.Changed("kb-dir") {
				cfg.Ingest.Root = root
			}
			if f.Changed("persist-dir") {
				cfg.VectorStore.PersistDir = persistDir
			}
			if f.Changed("collection") {
				cfg.VectorStore.Collection = collection
			}
			if f.Changed("window-size") {
				cfg.Chunking.WindowSize = windowSize
			}
			if f.Changed("window-overlap") {
				cfg.Chunking.WindowOverlap = overlap
			}
			if f.Changed("min-size") {
				cfg.Chunking.MinSize = minSize
			}
			if f.Changed("store-layers") {
				cfg.Ingest.StoreLayers = layers
			}
			if f.Changed("allow-file-fallback") {
				cfg.Ingest.AllowFileFallback = allowFallback
			}
			if f.Changed("allow-short-files") {
				cfg.Ingest.AllowShortFiles = allowShort
			}

			opts, err := s.rt.IngestOptions()
			if err != nil {
				return err
			}
			opts.Reset = reset
			tok, err := s.rt.Tokenizer()
			if err != nil {
				return err
			}
			report, err := service.NewIngestor(s.rt, tok, s.log).Ingest(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&root, "kb-dir", "kb", "knowledge-base directory")
	f.StringVar(&persistDir, "persist-dir", "db", "vector store directory")
	f.StringVar(&collection, "collection", "kb_docs", "collection name")
	f.IntVar(&windowSize, "window-size", 500, "window size in tokens")
	f.IntVar(&overlap, "window-overlap", 100, "window overlap in tokens")
	f.IntVar(&minSize, "min-size", 150, "minimum chunk size in tokens")
	f.StringSliceVar(&layers, "store-layers", []string{"summary", "window", "section"}, "layers to persist (summary,window,section,file)")
	f.BoolVar(&allowFallback, "allow-file-fallback", false, "store the whole file when no other layer survives")
	f.BoolVar(&allowShort, "allow-short-files", false, "let the file layer ignore the minimum size")
	f.BoolVar(&reset, "reset", false, "empty the collection before writing")
	return cmd
}

func printReport(cmd *cobra.Command, r service.IngestReport) {
	out := cmd.OutOrStdout()
	if !r.Written {
		fmt.Fprintf(out, "No chunks stored from %d files.\n", r.Files)
		return
	}
	layers := make([]string, 0, len(r.ByLayer))
	for l := range r.ByLayer {
		layers = append(layers, string(l))
	}
	sort.Slice(layers, func(i, j int) bool {
		return domain.Layer(layers[i]).Rank() < domain.Layer(layers[j]).Rank()
	})
	parts := make([]string, len(layers))
	for i, l := range layers {
		parts[i] = fmt.Sprintf("%s=%d", l, r.ByLayer[domain.Layer(l)])
	}
	fmt.Fprintf(out, "Stored %d chunks from %d files (%s).\n", r.Stored, r.Files, strings.Join(parts, " "))
	if len(r.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped: %s\n", strings.Join(r.Skipped, ", "))
	}
}
