package ports

import (
	"context"

	"github.com/bnema/fungame/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, msg domain.Outbound) error
}
