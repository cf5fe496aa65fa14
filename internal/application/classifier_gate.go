package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"go.uber.org/zap"
)

const (
	defaultConfidenceThreshold = 0.5
	defaultClassifierTimeout   = 10 * time.Second
)

type GateConfig struct {
	Examples  domain.ClassifierExamples
	Default   domain.Verdict
	Threshold float64
	Timeout   time.Duration
	// CommandPrefixes mark chat commands, which are never in-game actions.
	CommandPrefixes []string
	// Mentions are handles that always address the game master.
	Mentions []string
}

// ClassifierGate turns a raw chat message into an admit or reject verdict.
// It never fails: any doubt resolves to the configured default.
type ClassifierGate struct {
	backend ports.Classifier
	cfg     GateConfig
	logger  *zap.Logger
	metrics ports.Metrics
}

func NewClassifierGate(backend ports.Classifier, cfg GateConfig, logger *zap.Logger, metrics ports.Metrics) *ClassifierGate {
	if cfg.Default == "" {
		cfg.Default = domain.VerdictAdmit
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultConfidenceThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClassifierTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &ClassifierGate{backend: backend, cfg: cfg, logger: logger, metrics: metrics}
}

func (g *ClassifierGate) Classify(ctx context.Context, text string) domain.Verdict {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return g.record(domain.VerdictReject, false)
	}
	for _, prefix := range g.cfg.CommandPrefixes {
		if prefix != "" && strings.HasPrefix(trimmed, prefix) {
			return g.record(domain.VerdictReject, false)
		}
	}
	lowered := strings.ToLower(trimmed)
	for _, mention := range g.cfg.Mentions {
		if mention != "" && strings.Contains(lowered, strings.ToLower(mention)) {
			return g.record(domain.VerdictAdmit, false)
		}
	}

	if g.backend == nil {
		return g.record(g.cfg.Default, true)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	judgment, err := g.backend.Classify(callCtx, domain.ClassifyRequest{
		Text:     trimmed,
		Examples: g.cfg.Examples,
		Default:  g.cfg.Default,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrClassificationUnavailable) {
			err = errors.Join(domain.ErrClassificationUnavailable, err)
		}
		g.logger.Warn("classifier unavailable, using default verdict",
			zap.String("default", string(g.cfg.Default)),
			zap.Error(err),
		)
		return g.record(g.cfg.Default, true)
	}

	if judgment.Confidence < g.cfg.Threshold {
		g.logger.Debug("inconclusive judgment, using default verdict",
			zap.Float64("confidence", judgment.Confidence),
			zap.String("default", string(g.cfg.Default)),
		)
		return g.record(g.cfg.Default, true)
	}
	if judgment.Admit {
		return g.record(domain.VerdictAdmit, false)
	}

	return g.record(domain.VerdictReject, false)
}

func (g *ClassifierGate) record(verdict domain.Verdict, fallback bool) domain.Verdict {
	g.metrics.Classified(verdict, fallback)
	return verdict
}
