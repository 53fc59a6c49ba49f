package service

import (
	"context"
	"fmt"
	"log/slog"

	"editorial_sync/internal/domain"
)

// AuthorResolver maps WordPress author identities onto the shared
// authors table. Lookup order: unique external id, then
// case-insensitive name. A name match without an external id attached
// gets the identity bound to it; a name match already bound to a
// different external id is treated as a separate person.
type AuthorResolver struct {
	authors AuthorStore
	logger  *slog.Logger
}

func NewAuthorResolver(authors AuthorStore, logger *slog.Logger) *AuthorResolver {
	return &AuthorResolver{
		authors: authors,
		logger:  logger,
	}
}

// Resolve returns the local author id for an external author, creating
// one if needed. A nil payload resolves to no author, which is a valid
// outcome rather than an error. With readOnly set (dry runs) no attach
// or create is performed; unresolvable authors come back nil.
func (r *AuthorResolver) Resolve(ctx context.Context, wpAuthorID int64, payload *domain.ExternalAuthor, readOnly bool) (*string, error) {
	if payload == nil {
		return nil, nil
	}

	existing, err := r.authors.GetByWordPressID(ctx, wpAuthorID)
	if err != nil {
		return nil, fmt.Errorf("lookup author by wordpress id %d: %w", wpAuthorID, err)
	}
	if existing != nil {
		return &existing.ID, nil
	}

	byName, err := r.authors.GetByName(ctx, payload.Name)
	if err != nil {
		return nil, fmt.Errorf("lookup author by name %q: %w", payload.Name, err)
	}
	if byName != nil && byName.WordPressAuthorID == nil {
		if readOnly {
			return &byName.ID, nil
		}
		if err := r.authors.AttachWordPressIdentity(ctx, byName.ID, wpAuthorID, payload.Name); err != nil {
			return nil, fmt.Errorf("attach wordpress identity to author %s: %w", byName.ID, err)
		}
		r.logger.Debug("attached wordpress identity to existing author",
			"author_id", byName.ID,
			"wordpress_author_id", wpAuthorID,
		)
		return &byName.ID, nil
	}

	if readOnly {
		return nil, nil
	}

	author := &domain.Author{
		Name:                payload.Name,
		AuthorType:          domain.AuthorTypeExternal,
		WordPressAuthorID:   &wpAuthorID,
		WordPressAuthorName: &payload.Name,
		IsActive:            true,
	}
	if payload.Description != "" {
		bio := payload.Description
		author.Bio = &bio
	}

	id, err := r.authors.Create(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("create author %q: %w", payload.Name, err)
	}
	r.logger.Debug("created author from wordpress payload",
		"author_id", id,
		"wordpress_author_id", wpAuthorID,
	)
	return &id, nil
}
