package origin

import (
	"context"
)

// Fetcher glues the client factory to the classifier: one call is one
// attempt, and every failure mode comes back as a tagged Outcome instead of
// a raised error
type Fetcher struct {
	f *Factory
}

// NewFetcher wraps a Factory
func NewFetcher(f *Factory) *Fetcher { return &Fetcher{f: f} }

// Fetch issues one GET under the given identity and classifies the result
func (x *Fetcher) Fetch(ctx context.Context, profile, proxyURL, target string) Outcome {
	status, body, err := x.f.Get(ctx, profile, proxyURL, target)
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	return Classify(status, body, errText)
}
