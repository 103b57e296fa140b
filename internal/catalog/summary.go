package catalog

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/locallibrary/internal/entities"
)

// TitleFragment is the word counted on the home page.
const TitleFragment = "the"

// Summary is the home page overview.
type Summary struct {
	NumBooks              int64 `json:"num_books"`
	NumInstances          int64 `json:"num_instances"`
	NumInstancesAvailable int64 `json:"num_instances_available"`
	NumAuthors            int64 `json:"num_authors"`
	NumGenres             int64 `json:"num_genres"`
	NumBooksContainingThe int64 `json:"num_books_containing_the"`
	NumVisits             int   `json:"num_visits"`
}

// CatalogSummary counts the catalog and bumps the caller's session visit
// counter. A nil counter reports zero visits.
func (s *Service) CatalogSummary(ctx context.Context, visits VisitCounter) (*Summary, error) {
	var (
		sum Summary
		err error
	)

	if sum.NumBooks, err = s.stores.Books.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}
	if sum.NumInstances, err = s.stores.Instances.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count copies: %w", err)
	}
	if sum.NumInstancesAvailable, err = s.stores.Instances.CountByStatus(ctx, entities.LoanStatusAvailable); err != nil {
		return nil, fmt.Errorf("failed to count available copies: %w", err)
	}
	if sum.NumAuthors, err = s.stores.Authors.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count authors: %w", err)
	}
	if sum.NumGenres, err = s.stores.Genres.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count genres: %w", err)
	}
	if sum.NumBooksContainingThe, err = s.stores.Books.CountTitleContaining(ctx, TitleFragment); err != nil {
		return nil, fmt.Errorf("failed to count titles: %w", err)
	}

	if visits != nil {
		n, err := visits.IncrementVisits(ctx)
		if err != nil {
			log.Printf("Failed to update visit counter: %v", err)
		}
		sum.NumVisits = n
	}
	return &sum, nil
}
