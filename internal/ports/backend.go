package ports

import (
	"context"

	"github.com/bnema/fungame/internal/domain"
)

type Classifier interface {
	Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Judgment, error)
}

type Narrator interface {
	Narrate(ctx context.Context, req domain.NarrationRequest) (domain.Narration, error)
	// Refuse phrases an in-character refusal for a rejected message.
	Refuse(ctx context.Context, req domain.RefusalRequest) (string, error)
}
