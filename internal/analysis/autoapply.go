package analysis

import (
	"context"
	"fmt"

	"github.com/jonesrussell/godocscan/internal/domain"
	"github.com/jonesrussell/godocscan/internal/paperless"
)

// MetadataApplier writes metadata updates to the remote repository. The
// paperless client satisfies it.
type MetadataApplier interface {
	ApplyMetadata(ctx context.Context, remoteID int64, update *paperless.MetadataUpdate) error
}

// HasAnyAutoApply reports whether at least one auto-apply gate is enabled.
func HasAnyAutoApply(flags domain.AutoApplyFlags) bool {
	return flags.Title || flags.Tags || flags.Correspondent || flags.DocumentType || flags.CreatedDate
}

// ApplySuggestions writes the gated subset of suggestions back to the
// remote document. Fields whose gate is off, or whose suggestion is empty,
// are left untouched.
func ApplySuggestions(
	ctx context.Context,
	applier MetadataApplier,
	remoteID int64,
	suggestions *domain.SuggestionSet,
	flags domain.AutoApplyFlags,
) error {
	if suggestions == nil {
		return nil
	}

	update := &paperless.MetadataUpdate{}

	if flags.Title && suggestions.Title != "" {
		update.Title = &suggestions.Title
	}
	if flags.Tags && len(suggestions.Tags) > 0 {
		update.Tags = suggestions.Tags
	}
	if flags.Correspondent && suggestions.Correspondent != "" {
		update.Correspondent = &suggestions.Correspondent
	}
	if flags.DocumentType && suggestions.DocumentType != "" {
		update.DocumentType = &suggestions.DocumentType
	}
	if flags.CreatedDate && suggestions.CreatedDate != "" {
		update.CreatedDate = &suggestions.CreatedDate
	}

	if update.IsEmpty() {
		return nil
	}

	if err := applier.ApplyMetadata(ctx, remoteID, update); err != nil {
		return fmt.Errorf("failed to apply suggestions to document %d: %w", remoteID, err)
	}

	return nil
}
