// Package analysis invokes AI metadata analysis for documents and applies
// accepted suggestions back to the remote repository.
package analysis

import (
	"context"

	"github.com/jonesrussell/godocscan/internal/domain"
)

// AnalyzeRequest carries everything one analysis run needs.
type AnalyzeRequest struct {
	DocumentID string
	BotID      string
	OwnerID    string
	Title      string
	Content    string
	Model      string
	Prompt     string
}

// Analyzer produces metadata suggestions for a document. Implementations
// may take arbitrarily long and may fail; callers own retry policy.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*domain.SuggestionSet, error)
}
