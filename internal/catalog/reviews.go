package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/entities"
)

// CreateReview stores a review for a signed-in reader. The reviewer is not
// recorded on the review itself. Grades outside [0, 10] fail with
// ErrOutOfRange. A missing publish date is set to the current time.
func (s *Service) CreateReview(ctx context.Context, id access.Identity, in ReviewInput) (*entities.Review, error) {
	if err := access.Authorize(id, access.CreateReview); err != nil {
		return nil, err
	}

	v := &validator{}
	if err := mergeValidation(v, ValidateReview(in)); err != nil {
		return nil, err
	}
	if in.BookID != 0 {
		if _, err := s.stores.Books.Get(ctx, in.BookID); err != nil {
			if !isNotFound(err) {
				return nil, err
			}
			v.add("book", ErrInvalidChoice, msgInvalidChoice)
		}
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	published := s.now()
	if in.PublishDate != nil {
		published = *in.PublishDate
	}
	review := &entities.Review{
		BookID:      in.BookID,
		PublishDate: &published,
		Content:     in.Content,
		Grade:       in.Grade,
	}
	if err := s.stores.Reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	s.record(ctx, id, entities.AuditEventCreate, "review", strconv.FormatUint(uint64(review.ID), 10),
		fmt.Sprintf("Reviewed book %d with grade %.1f", in.BookID, in.Grade))
	return review, nil
}

func (s *Service) ListReviews(ctx context.Context, bookID uint) ([]entities.Review, error) {
	if _, err := s.stores.Books.Get(ctx, bookID); err != nil {
		return nil, err
	}
	return s.stores.Reviews.ListByBook(ctx, bookID)
}
