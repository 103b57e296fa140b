// Package access decides whether an identity may perform a catalog operation.
//
// Every check runs in the same order: an anonymous identity is rejected with
// ErrAuthenticationRequired before any permission is looked at, so callers
// never learn what an anonymous request would have been allowed to do.
package access

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mrlokans/locallibrary/internal/entities"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPermissionDenied       = errors.New("permission denied")
)

type Operation string

const (
	ViewOwnLoans    Operation = "view_own_loans"
	ViewAllLoans    Operation = "view_all_loans"
	RenewLoan       Operation = "renew_loan"
	CreateAuthor    Operation = "create_author"
	UpdateAuthor    Operation = "update_author"
	DeleteAuthor    Operation = "delete_author"
	CreateBook      Operation = "create_book"
	UpdateBook      Operation = "update_book"
	DeleteBook      Operation = "delete_book"
	CreateReview    Operation = "create_review"
	ManageInventory Operation = "manage_inventory"
)

// requiredPermission maps each operation to the permission codename it needs.
// An empty codename means identity alone is enough.
var requiredPermission = map[Operation]string{
	ViewOwnLoans:    "",
	CreateReview:    "",
	ViewAllLoans:    entities.PermCanMarkReturned,
	RenewLoan:       entities.PermCanMarkReturned,
	ManageInventory: entities.PermCanMarkReturned,
	CreateAuthor:    entities.PermAddAuthor,
	UpdateAuthor:    entities.PermChangeAuthor,
	DeleteAuthor:    entities.PermDeleteAuthor,
	CreateBook:      entities.PermAddBook,
	UpdateBook:      entities.PermChangeBook,
	DeleteBook:      entities.PermDeleteBook,
}

// RequiredPermission returns the codename op needs ("" for identity only).
// The second result is false for unknown operations.
func RequiredPermission(op Operation) (string, bool) {
	perm, ok := requiredPermission[op]
	return perm, ok
}

// Identity is who is asking. The zero value is anonymous.
type Identity struct {
	UserID        uint
	Username      string
	IsSuperuser   bool
	authenticated bool
	permissions   map[string]struct{}
}

// Anonymous returns an identity that fails every gated check.
func Anonymous() Identity {
	return Identity{}
}

// NewIdentity builds an authenticated identity holding the given permissions.
func NewIdentity(userID uint, username string, superuser bool, permissions ...string) Identity {
	id := Identity{
		UserID:        userID,
		Username:      username,
		IsSuperuser:   superuser,
		authenticated: true,
		permissions:   make(map[string]struct{}, len(permissions)),
	}
	for _, p := range permissions {
		id.permissions[p] = struct{}{}
	}
	return id
}

// FromUser builds an identity from a user loaded with its permissions.
func FromUser(u *entities.User) Identity {
	return NewIdentity(u.ID, u.Username, u.IsSuperuser, u.PermissionCodenames()...)
}

// System is the identity used by management commands.
func System() Identity {
	return NewIdentity(0, "system", true)
}

func (i Identity) Authenticated() bool {
	return i.authenticated
}

// HasPermission reports whether the identity holds codename. Superusers hold all.
func (i Identity) HasPermission(codename string) bool {
	if !i.authenticated {
		return false
	}
	if i.IsSuperuser {
		return true
	}
	_, ok := i.permissions[codename]
	return ok
}

// Permissions returns the explicitly granted codenames, sorted.
func (i Identity) Permissions() []string {
	perms := make([]string, 0, len(i.permissions))
	for p := range i.permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// Authorize returns nil when id may perform op.
func Authorize(id Identity, op Operation) error {
	if !id.Authenticated() {
		return fmt.Errorf("%s: %w", op, ErrAuthenticationRequired)
	}
	perm, known := requiredPermission[op]
	if !known {
		return fmt.Errorf("unknown operation %q: %w", op, ErrPermissionDenied)
	}
	if perm != "" && !id.HasPermission(perm) {
		return fmt.Errorf("%s requires %s: %w", op, perm, ErrPermissionDenied)
	}
	return nil
}

// Can is Authorize as a predicate, for templates and menus.
func Can(id Identity, op Operation) bool {
	return Authorize(id, op) == nil
}
