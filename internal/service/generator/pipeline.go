package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"semsql/internal/cache"
	"semsql/internal/domain"
	"semsql/internal/ratelimit"
	"semsql/internal/service/semantic"
)

// DefaultModel is used when a question does not name a model.
const DefaultModel = "gpt-4o"

// DefaultCandidateModels are consulted, in order, for a cached answer.
var DefaultCandidateModels = []string{"gpt-4o", "llama3-70b-8192", "o1-mini"}

// Question is one natural-language request.
type Question struct {
	ID    string `json:"question_id,omitempty"`
	Text  string `json:"question"`
	Model string `json:"model,omitempty"`
}

// Answer is the result of running a question through the pipeline.
type Answer struct {
	QuestionID string                 `json:"question_id"`
	Question   string                 `json:"question"`
	Model      string                 `json:"model"`
	Cached     bool                   `json:"cached"`
	Generated  *domain.GeneratedQuery `json:"generated"`
	SQL        string                 `json:"sql"`
}

// BatchResult pairs an answer or failure with its coarse status.
type BatchResult struct {
	QuestionID string  `json:"question_id"`
	Status     int     `json:"status"`
	Answer     *Answer `json:"answer,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Pipeline ties the response cache, pacer, generator and compiler together.
type Pipeline struct {
	generator    domain.Generator
	store        *cache.Store
	pacer        *ratelimit.Pacer
	semantic     *semantic.Service
	logger       *slog.Logger
	candidates   []string
	defaultModel string
	concurrency  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCandidateModels replaces the models consulted for cached answers.
func WithCandidateModels(models ...string) Option {
	return func(p *Pipeline) {
		if len(models) > 0 {
			p.candidates = slices.Clone(models)
		}
	}
}

// WithDefaultModel sets the model used for questions that do not name one.
func WithDefaultModel(model string) Option {
	return func(p *Pipeline) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// WithConcurrency bounds the number of questions AnswerAll runs at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPipeline creates a Pipeline. gen may be nil, in which case only cached
// answers can be served.
func NewPipeline(gen domain.Generator, store *cache.Store, pacer *ratelimit.Pacer, svc *semantic.Service, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		generator:    gen,
		store:        store,
		pacer:        pacer,
		semantic:     svc,
		logger:       logger,
		candidates:   slices.Clone(DefaultCandidateModels),
		defaultModel: DefaultModel,
		concurrency:  4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer returns SQL for q. A cached document under any candidate model is
// preferred over a new generation; fresh documents are cached under the
// requested model. Compile errors are returned unchanged.
func (p *Pipeline) Answer(ctx context.Context, q Question) (*Answer, error) {
	if q.Text == "" {
		return nil, domain.ErrValidation("question is required")
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	model := q.Model
	if model == "" {
		model = p.defaultModel
	}

	ans := &Answer{QuestionID: q.ID, Question: q.Text, Model: model}

	gq, hitModel, err := p.lookup(q.Text, model)
	if err != nil {
		return nil, err
	}
	if gq != nil {
		ans.Cached = true
		ans.Model = hitModel
		p.logger.InfoContext(ctx, "cache hit", "question_id", q.ID, "model", hitModel)
	} else {
		p.logger.InfoContext(ctx, "cache miss", "question_id", q.ID, "model", model)
		gq, err = p.generate(ctx, model, q.Text)
		if err != nil {
			return nil, err
		}
	}
	ans.Generated = gq

	sql, err := p.semantic.Compile(ctx, *gq)
	if err != nil {
		return nil, err
	}
	ans.SQL = sql
	return ans, nil
}

func (p *Pipeline) lookup(question, model string) (*domain.GeneratedQuery, string, error) {
	if p.store == nil {
		return nil, "", nil
	}
	models := p.candidates
	if !slices.Contains(models, model) {
		models = append(slices.Clone(models), model)
	}
	for _, m := range models {
		var gq domain.GeneratedQuery
		ok, err := p.store.GetInto(cache.Key(m, question), &gq)
		if err != nil {
			return nil, "", err
		}
		if ok {
			return &gq, m, nil
		}
	}
	return nil, "", nil
}

func (p *Pipeline) generate(ctx context.Context, model, question string) (*domain.GeneratedQuery, error) {
	if p.generator == nil {
		return nil, domain.ErrNotConfigured("generator")
	}

	call := func(ctx context.Context) (*domain.GeneratedQuery, error) {
		return p.generator.Generate(ctx, model, question)
	}
	var (
		gq  *domain.GeneratedQuery
		err error
	)
	if p.pacer != nil {
		gq, err = ratelimit.Call(ctx, p.pacer, model, call)
	} else {
		gq, err = call(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	if p.store != nil {
		if err := p.store.Set(cache.Key(model, question), gq); err != nil {
			p.logger.WarnContext(ctx, "cache write failed", "model", model, "error", err)
		}
	}
	return gq, nil
}

// AnswerAll answers questions concurrently and returns one result per
// question in input order. Individual failures are reported in the results;
// the error is non-nil only when ctx ends first.
func (p *Pipeline) AnswerAll(ctx context.Context, questions []Question) ([]BatchResult, error) {
	results := make([]BatchResult, len(questions))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{QuestionID: q.ID, Status: Status(err), Error: err.Error()}
				return nil
			}
			ans, err := p.Answer(ctx, q)
			results[i] = BatchResult{QuestionID: q.ID, Status: Status(err), Answer: ans}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Status maps a pipeline outcome to a coarse HTTP status: 200 on success and
// 500 on any failure.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
