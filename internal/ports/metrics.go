package ports

import (
	"time"

	"github.com/bnema/fungame/internal/domain"
)

type Metrics interface {
	Classified(verdict domain.Verdict, fallback bool)
	WindowClosed(reason domain.CloseReason, bids int)
	TurnCommitted(session domain.SessionID, version uint64)
	NarrationAttempt(ok bool, took time.Duration)
	VersionConflict()
	SessionDegraded()
	ActiveSessions(n int)
}

type NopMetrics struct{}

func (NopMetrics) Classified(domain.Verdict, bool)        {}
func (NopMetrics) WindowClosed(domain.CloseReason, int)   {}
func (NopMetrics) TurnCommitted(domain.SessionID, uint64) {}
func (NopMetrics) NarrationAttempt(bool, time.Duration)   {}
func (NopMetrics) VersionConflict()                       {}
func (NopMetrics) SessionDegraded()                       {}
func (NopMetrics) ActiveSessions(int)                     {}
