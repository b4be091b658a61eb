// Package memory provides the long-term memory store used for the
// pre-query context lookup and optional risk logging.
package memory

import "context"

// Store is the long-term memory collaborator.
//
// The pipeline uses it in two places: the planning stage runs a small
// top-k context search against the raw prompt, and the risk stage may log
// high-severity findings for future runs. Both calls are advisory - a
// failing store degrades to empty context, never to a pipeline error.
type Store interface {
	// Search returns up to k context strings relevant to the query.
	Search(ctx context.Context, query string, k int) ([]string, error)

	// LogRisk persists one historical risk event for a venue.
	LogRisk(ctx context.Context, venueID, riskType, detail string) error

	// Close releases underlying resources.
	Close() error
}

// Null is a Store for deployments without a memory backend. Search returns
// no context and LogRisk is a no-op.
type Null struct{}

// NewNull returns the no-op store.
func NewNull() *Null {
	return &Null{}
}

// Search implements Store.
func (*Null) Search(ctx context.Context, query string, k int) ([]string, error) {
	return nil, nil
}

// LogRisk implements Store.
func (*Null) LogRisk(ctx context.Context, venueID, riskType, detail string) error {
	return nil
}

// Close implements Store.
func (*Null) Close() error {
	return nil
}
