package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/entities"
	"github.com/mrlokans/locallibrary/internal/pagination"
)

// RenewalForm is the initial state of the renewal workflow.
type RenewalForm struct {
	Instance     entities.BookInstance `json:"instance"`
	ProposedDate time.Time             `json:"proposed_date"`
	HelpText     string                `json:"help_text"`
}

// ListMyLoans returns the caller's copies currently on loan, soonest due first.
func (s *Service) ListMyLoans(ctx context.Context, id access.Identity, page int) (pagination.Page[entities.BookInstance], error) {
	if err := access.Authorize(id, access.ViewOwnLoans); err != nil {
		return pagination.Page[entities.BookInstance]{}, err
	}
	borrower := id.UserID
	return s.listLoans(ctx, LoanFilter{Status: entities.LoanStatusOnLoan, BorrowerID: &borrower}, page)
}

// ListAllLoans returns every copy on loan, soonest due first.
func (s *Service) ListAllLoans(ctx context.Context, id access.Identity, page int) (pagination.Page[entities.BookInstance], error) {
	if err := access.Authorize(id, access.ViewAllLoans); err != nil {
		return pagination.Page[entities.BookInstance]{}, err
	}
	return s.listLoans(ctx, LoanFilter{Status: entities.LoanStatusOnLoan}, page)
}

func (s *Service) listLoans(ctx context.Context, filter LoanFilter, page int) (pagination.Page[entities.BookInstance], error) {
	p, total, err := pageParams(page, LoansPageSize, func() (int64, error) {
		return s.stores.Instances.CountLoans(ctx, filter)
	})
	if err != nil {
		return pagination.Page[entities.BookInstance]{}, err
	}

	loans, err := s.stores.Instances.ListLoans(ctx, filter, p.Offset(), p.Limit())
	if err != nil {
		return pagination.Page[entities.BookInstance]{}, fmt.Errorf("failed to list loans: %w", err)
	}
	return pagination.NewPage(loans, p, total), nil
}

// RenewalForm resolves the copy and proposes a due date three weeks out.
func (s *Service) RenewalForm(ctx context.Context, id access.Identity, instanceID uuid.UUID) (*RenewalForm, error) {
	if err := access.Authorize(id, access.RenewLoan); err != nil {
		return nil, err
	}

	instance, err := s.stores.Instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return &RenewalForm{
		Instance:     *instance,
		ProposedDate: DefaultRenewalDate(s.now()),
		HelpText:     RenewalDateHelp,
	}, nil
}

// SubmitRenewal moves the due date of a copy. Only due_back changes; a date
// outside the renewal window leaves the copy untouched.
func (s *Service) SubmitRenewal(ctx context.Context, id access.Identity, instanceID uuid.UUID, proposed time.Time) (*entities.BookInstance, error) {
	if err := access.Authorize(id, access.RenewLoan); err != nil {
		return nil, err
	}

	instance, err := s.stores.Instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRenewalDate(s.now(), proposed); err != nil {
		return instance, err
	}

	due := Date(proposed)
	if err := s.stores.Instances.UpdateDueBack(ctx, instanceID, due); err != nil {
		return nil, fmt.Errorf("failed to renew %s: %w", instanceID, err)
	}
	instance.DueBack = &due

	s.record(ctx, id, entities.AuditEventLoan, "book_instance", instanceID.String(),
		"Renewed until "+due.Format(RenewalDateLayout))
	return instance, nil
}

// CreateInstance adds a copy of an existing book.
func (s *Service) CreateInstance(ctx context.Context, id access.Identity, in InstanceInput) (*entities.BookInstance, error) {
	if err := access.Authorize(id, access.ManageInventory); err != nil {
		return nil, err
	}

	v := &validator{}
	if err := mergeValidation(v, ValidateInstance(in)); err != nil {
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

	instance := &entities.BookInstance{
		BookID:  in.BookID,
		Imprint: in.Imprint,
		Status:  in.Status,
		DueBack: DatePtr(in.DueBack),
	}
	if err := s.stores.Instances.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to create copy: %w", err)
	}

	s.record(ctx, id, entities.AuditEventCreate, "book_instance", instance.ID.String(), "Added copy "+instance.Imprint)
	return instance, nil
}

// LendInstance puts a copy on loan to borrowerID. A nil due date defaults to
// three weeks out; any due date must fall inside the renewal window.
func (s *Service) LendInstance(ctx context.Context, id access.Identity, instanceID uuid.UUID, borrowerID uint, dueBack *time.Time) (*entities.BookInstance, error) {
	if err := access.Authorize(id, access.ManageInventory); err != nil {
		return nil, err
	}

	instance, err := s.stores.Instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	borrower, err := s.stores.Users.GetByID(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	due := DefaultRenewalDate(s.now())
	if dueBack != nil {
		if err := ValidateRenewalDate(s.now(), *dueBack); err != nil {
			return nil, err
		}
		due = Date(*dueBack)
	}

	if err := s.stores.Instances.UpdateLoan(ctx, instanceID, entities.LoanStatusOnLoan, &borrower.ID, &due); err != nil {
		return nil, fmt.Errorf("failed to lend %s: %w", instanceID, err)
	}
	instance.Status = entities.LoanStatusOnLoan
	instance.BorrowerID = &borrower.ID
	instance.Borrower = borrower
	instance.DueBack = &due

	s.record(ctx, id, entities.AuditEventLoan, "book_instance", instanceID.String(),
		"Lent to "+borrower.Username+" until "+due.Format(RenewalDateLayout))
	return instance, nil
}

// ReturnInstance marks a copy available and clears its borrower and due date.
func (s *Service) ReturnInstance(ctx context.Context, id access.Identity, instanceID uuid.UUID) (*entities.BookInstance, error) {
	if err := access.Authorize(id, access.ManageInventory); err != nil {
		return nil, err
	}

	instance, err := s.stores.Instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Instances.UpdateLoan(ctx, instanceID, entities.LoanStatusAvailable, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to return %s: %w", instanceID, err)
	}
	instance.Status = entities.LoanStatusAvailable
	instance.BorrowerID = nil
	instance.Borrower = nil
	instance.DueBack = nil

	s.record(ctx, id, entities.AuditEventLoan, "book_instance", instanceID.String(), "Marked returned")
	return instance, nil
}
