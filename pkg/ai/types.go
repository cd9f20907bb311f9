package ai

import "context"

// Media is a raw recording plus its MIME type, passed through to the backend
// without inspection.
type Media struct {
	Data     []byte
	MIMEType string
}

// EvaluationInput carries everything a backend needs for a first-pass
// assessment of an oral exam recording. Audio is the primary modality;
// text-only backends work from Transcript instead.
type EvaluationInput struct {
	Audio        Media
	Video        Media
	Transcript   string
	Instructions string
	Temperature  float32
}

// ReviewInput is the second-round request: the backend sees the other
// backend's first-pass report together with its own original input.
type ReviewInput struct {
	Audio        Media
	Transcript   string
	PeerReport   Report
	Instructions string
	Temperature  float32
}

// Report is the free-form natural-language text a backend returns. It stays
// opaque until it reaches the grade extractor or the peer backend.
type Report struct {
	Provider string
	Text     string
}

// Gateway is a uniform capability wrapper around one remote model provider.
type Gateway interface {
	Provider() string
	Evaluate(ctx context.Context, input EvaluationInput) (Report, error)
	ReviewPeer(ctx context.Context, input ReviewInput) (Report, error)
}

// GradeExtractor converts a free-text evaluation report into a single
// integer grade.
type GradeExtractor interface {
	Extract(ctx context.Context, report Report) (int, error)
}
