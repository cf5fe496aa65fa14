package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	_ ports.Classifier = (*Backend)(nil)
	_ ports.Narrator   = (*Backend)(nil)
)

var ErrEmptyResponse = errors.New("model returned no text")

type Usage struct {
	PromptTokens   int32
	ResponseTokens int32
	TotalTokens    int32
}

// generator sends one system instruction plus one user prompt and returns the text reply.
type generator interface {
	Generate(ctx context.Context, model, system, prompt string) (string, Usage, error)
	Close() error
}

type Config struct {
	APIKey          string
	Model           string
	ClassifierModel string
	// RequestsPerMinute caps calls across classifier and narrator. Zero disables the cap.
	RequestsPerMinute int
	Temperature       float32
}

type Backend struct {
	gen     generator
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	gen, err := newGenaiGenerator(ctx, cfg.APIKey, cfg.Temperature)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newBackend(gen, cfg, logger), nil
}

func newBackend(gen generator, cfg Config, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = cfg.Model
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Backend{gen: gen, cfg: cfg, limiter: limiter, logger: logger}
}

func (b *Backend) Close() error {
	return b.gen.Close()
}

func (b *Backend) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Judgment, error) {
	system, prompt := classifierPrompt(req)
	raw, err := b.generate(ctx, "classify", b.cfg.ClassifierModel, system, prompt)
	if err != nil {
		return domain.Judgment{}, errors.Join(domain.ErrClassificationUnavailable, err)
	}

	var resp classifyResponse
	if err := decode(raw, &resp); err != nil {
		return domain.Judgment{}, errors.Join(domain.ErrClassificationUnavailable, err)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return domain.Judgment{}, fmt.Errorf("%w: confidence %v out of range", domain.ErrClassificationUnavailable, resp.Confidence)
	}

	return domain.Judgment{Admit: resp.Forward, Confidence: resp.Confidence}, nil
}

func (b *Backend) Narrate(ctx context.Context, req domain.NarrationRequest) (domain.Narration, error) {
	system, prompt := narratorPrompt(req)
	raw, err := b.generate(ctx, "narrate", b.cfg.Model, system, prompt)
	if err != nil {
		return domain.Narration{}, errors.Join(domain.ErrNarrationUnavailable, err)
	}

	var resp narrateResponse
	if err := decode(raw, &resp); err != nil {
		return domain.Narration{}, errors.Join(domain.ErrNarrationUnavailable, err)
	}
	if resp.Response == "" {
		return domain.Narration{}, fmt.Errorf("%w: empty response field", domain.ErrNarrationUnavailable)
	}

	return resp.toNarration(req.State, req.Action.Player), nil
}

func (b *Backend) Refuse(ctx context.Context, req domain.RefusalRequest) (string, error) {
	system, prompt := refusalPrompt(req)
	raw, err := b.generate(ctx, "refuse", b.cfg.Model, system, prompt)
	if err != nil {
		return "", errors.Join(domain.ErrNarrationUnavailable, err)
	}

	var resp refuseResponse
	if err := decode(raw, &resp); err != nil {
		return "", errors.Join(domain.ErrNarrationUnavailable, err)
	}
	return resp.Response, nil
}

func (b *Backend) generate(ctx context.Context, call, model, system, prompt string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limit: %w", err)
	}

	started := time.Now()
	text, usage, err := b.gen.Generate(ctx, model, system, prompt)
	if err != nil {
		b.logger.Debug("gemini call failed", zap.String("call", call), zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("generate content: %w", err)
	}
	if text == "" {
		return "", ErrEmptyResponse
	}

	b.logger.Debug("gemini call",
		zap.String("call", call),
		zap.String("model", model),
		zap.Duration("took", time.Since(started)),
		zap.Int32("prompt_tokens", usage.PromptTokens),
		zap.Int32("response_tokens", usage.ResponseTokens),
		zap.Int32("total_tokens", usage.TotalTokens),
	)
	return text, nil
}
