// Package catalog implements the library catalog operations: authors, books,
// copies and their loans, reviews, genres and languages.
//
// Every operation that changes data or shows another reader's loans takes an
// access.Identity and checks it before touching a store, so an anonymous
// caller gets access.ErrAuthenticationRequired even for rows that do not exist.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/entities"
	"github.com/mrlokans/locallibrary/internal/pagination"
)

// Listing page sizes.
const (
	AuthorsPageSize = 5
	BooksPageSize   = 10
	LoansPageSize   = 10
)

// Stores groups the repositories the service reads and writes.
type Stores struct {
	Authors   AuthorStore
	Books     BookStore
	Instances InstanceStore
	Reviews   ReviewStore
	Genres    NamedStore[entities.Genre]
	Languages NamedStore[entities.Language]
	Users     UserLookup
}

type Service struct {
	stores Stores
	now    func() time.Time
	audit  AuditRecorder
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests around the renewal window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		s.audit = r
	}
}

func NewService(stores Stores, opts ...Option) *Service {
	s := &Service{
		stores: stores,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the service clock truncated to a calendar day.
func (s *Service) Today() time.Time {
	return Date(s.now())
}

func (s *Service) record(ctx context.Context, id access.Identity, eventType entities.AuditEventType, entityType, entityID, description string) {
	if s.audit == nil {
		return
	}
	s.audit.RecordChange(ctx, id.UserID, eventType, entityType, entityID, description)
}

// pageParams validates a page request; an invalid page is reported as not found.
func pageParams(number, size int, count func() (int64, error)) (pagination.Params, int64, error) {
	p, err := pagination.NewParams(number, size)
	if err != nil {
		return p, 0, fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	total, err := count()
	if err != nil {
		return p, 0, err
	}
	if err := p.Check(total); err != nil {
		return p, 0, fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return p, total, nil
}

// mergeValidation appends the fields of err (a *ValidationError) to v.
// Any other error is returned unchanged.
func mergeValidation(v *validator, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		v.fields = append(v.fields, ve.Fields...)
		return nil
	}
	return err
}
