package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kbrag/internal/answer"
	"kbrag/internal/domain"
	"kbrag/internal/retrieval"
)

// ErrMissingQuery is returned for a blank query.
var ErrMissingQuery = errors.New("missing query")

// RetrieveRequest is one ranked retrieval.
type RetrieveRequest struct {
	Query  string
	Filter domain.Filter
	// AutoSummary restricts to the summary layer when the query asks for an
	// overview and no layer was given.
	AutoSummary bool
	// AutoTopic fills an empty topic from the query keywords.
	AutoTopic bool
	Options   retrieval.Options
}

// Retriever embeds a query and ranks stored chunks against it.
type Retriever struct {
	res Resources
	log *zap.Logger
}

func NewRetriever(res Resources, log *zap.Logger) *Retriever {
	return &Retriever{res: res, log: log}
}

func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]domain.Scored, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrMissingQuery
	}
	filter := retrieval.MergeFilter(req.Filter, query, req.AutoSummary)
	if req.AutoTopic && filter.Topic == "" {
		filter.Topic = retrieval.InferTopic(query)
	}

	embedder, err := r.res.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	store, err := r.res.Store(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	r.log.Debug("retrieving",
		zap.String("topic", filter.Topic),
		zap.String("layer", filter.Layer),
		zap.Int("top_k", req.Options.TopK),
		zap.Int("fetch_k", req.Options.FetchK))
	return retrieval.NewRanker(store).Rank(ctx, vec, filter, req.Options)
}

// Answer is the result of an ask.
type Answer struct {
	Text     string
	Sources  []string
	Contexts []domain.Scored
}

// Asker runs retrieval with both query heuristics and hands the grounded
// prompt to the answering service.
type Asker struct {
	retriever *Retriever
	res       Resources
	opts      retrieval.Options
	log       *zap.Logger
}

func NewAsker(res Resources, opts retrieval.Options, log *zap.Logger) *Asker {
	return &Asker{retriever: NewRetriever(res, log), res: res, opts: opts, log: log}
}

// Ask answers query. An empty answer becomes the fixed not-enough-information
// text rather than an error. A sensitive query the contexts do not back, and a
// topic query that retrieved nothing, get a fixed reply without calling the
// answering service.
func (a *Asker) Ask(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	contexts, err := a.retriever.Retrieve(ctx, RetrieveRequest{
		Query:       query,
		AutoSummary: true,
		AutoTopic:   true,
		Options:     a.opts,
	})
	if err != nil {
		return Answer{}, err
	}
	if reply, ok := cannedReply(query, contexts); ok {
		a.log.Debug("canned reply", zap.Int("contexts", len(contexts)))
		return Answer{Text: reply, Contexts: contexts}, nil
	}
	answerer, err := a.res.Answerer(ctx)
	if err != nil {
		return Answer{}, err
	}
	text, err := answer.OrFallback(answer.Respond(ctx, answerer, query, contexts))
	if err != nil {
		return Answer{}, err
	}
	a.log.Debug("answered", zap.Int("contexts", len(contexts)))
	return Answer{Text: text, Sources: retrieval.Sources(contexts), Contexts: contexts}, nil
}

func cannedReply(query string, contexts []domain.Scored) (string, bool) {
	if retrieval.IsSensitive(query) && !retrieval.HasEvidence(query, retrieval.Snippets(contexts)) {
		return answer.InPersonReply, true
	}
	if len(contexts) == 0 && retrieval.InferTopic(query) != "" {
		return answer.NoDetailsReply, true
	}
	return "", false
}
