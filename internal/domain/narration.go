package domain

// ClassifierExamples are the few-shot exemplars handed to the classifier backend.
type ClassifierExamples struct {
	Accept []string
	Reject []string
}

type ClassifyRequest struct {
	Text     string
	Examples ClassifierExamples
	Default  Verdict
}

// Judgment is the raw backend opinion. Confidence is in [0, 1].
type Judgment struct {
	Admit      bool
	Confidence float64
}

// Rules is narrator context. It is never interpreted by the core.
type Rules struct {
	WorldProperties    []string
	CoreMechanics      []string
	Do                 []string
	Dont               []string
	ResponseGuidelines []string
	// Custom holds the rules operators added to the running session.
	Custom []string
}

// WithCustom returns a copy of r with the session's custom rules appended.
// Secret rules are included; they are hidden from players, not from the narrator.
func (r Rules) WithCustom(rules []CustomRule) Rules {
	out := r
	out.Custom = append([]string(nil), r.Custom...)
	for _, rule := range rules {
		out.Custom = append(out.Custom, rule.Text)
	}
	return out
}

type NarrationRequest struct {
	State  GameState
	Action Bid
	Rules  Rules
	// Recent holds the last played turns, oldest first.
	Recent []Turn
}

type Narration struct {
	Delta    Delta
	Response string
}

type RefusalRequest struct {
	Player PlayerID
	Text   string
	Rules  Rules
}
