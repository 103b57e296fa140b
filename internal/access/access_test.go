package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/locallibrary/internal/entities"
)

func TestAuthorize_Table(t *testing.T) {
	librarian := NewIdentity(1, "librarian", false, entities.PermCanMarkReturned)
	editor := NewIdentity(2, "editor", false,
		entities.PermAddAuthor, entities.PermChangeAuthor, entities.PermDeleteAuthor,
		entities.PermAddBook, entities.PermChangeBook, entities.PermDeleteBook)
	reader := NewIdentity(3, "reader", false)
	admin := NewIdentity(4, "admin", true)

	tests := []struct {
		name    string
		id      Identity
		op      Operation
		wantErr error
	}{
		{"anonymous own loans", Anonymous(), ViewOwnLoans, ErrAuthenticationRequired},
		{"reader own loans", reader, ViewOwnLoans, nil},
		{"reader all loans", reader, ViewAllLoans, ErrPermissionDenied},
		{"librarian all loans", librarian, ViewAllLoans, nil},
		{"librarian renew", librarian, RenewLoan, nil},
		{"editor renew", editor, RenewLoan, ErrPermissionDenied},
		{"editor create author", editor, CreateAuthor, nil},
		{"editor delete book", editor, DeleteBook, nil},
		{"librarian create book", librarian, CreateBook, ErrPermissionDenied},
		{"reader review", reader, CreateReview, nil},
		{"anonymous review", Anonymous(), CreateReview, ErrAuthenticationRequired},
		{"admin anything", admin, DeleteAuthor, nil},
		{"unknown op", admin, Operation("launch"), ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.id, tt.op)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorize_AnonymousNeverReachesPermissionCheck(t *testing.T) {
	for op := range requiredPermission {
		err := Authorize(Anonymous(), op)
		assert.ErrorIs(t, err, ErrAuthenticationRequired, string(op))
		assert.NotErrorIs(t, err, ErrPermissionDenied, string(op))
	}
}

func TestIdentity_Permissions(t *testing.T) {
	id := NewIdentity(7, "u", false, entities.PermDeleteBook, entities.PermAddBook)

	assert.True(t, id.Authenticated())
	assert.True(t, id.HasPermission(entities.PermAddBook))
	assert.False(t, id.HasPermission(entities.PermCanMarkReturned))
	assert.Equal(t, []string{entities.PermAddBook, entities.PermDeleteBook}, id.Permissions())
	assert.False(t, Anonymous().HasPermission(entities.PermAddBook))
}

func TestFromUser(t *testing.T) {
	u := &entities.User{
		ID:       9,
		Username: "staff",
		Permissions: []entities.Permission{
			{Codename: entities.PermCanMarkReturned},
		},
	}

	id := FromUser(u)

	assert.Equal(t, uint(9), id.UserID)
	assert.True(t, Can(id, RenewLoan))
	assert.False(t, Can(id, CreateBook))
}

func TestSystem(t *testing.T) {
	assert.True(t, Can(System(), ManageInventory))
	assert.True(t, Can(System(), DeleteBook))
}
