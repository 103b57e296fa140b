package entities

import "time"

// Permission codenames checked by the access policy.
const (
	PermCanMarkReturned = "can_mark_returned"
	PermAddAuthor       = "add_author"
	PermChangeAuthor    = "change_author"
	PermDeleteAuthor    = "delete_author"
	PermAddBook         = "add_book"
	PermChangeBook      = "change_book"
	PermDeleteBook      = "delete_book"
)

// DefaultPermissions is seeded on every migration.
var DefaultPermissions = []Permission{
	{Codename: PermCanMarkReturned, Name: "Set book as returned"},
	{Codename: PermAddAuthor, Name: "Can add author"},
	{Codename: PermChangeAuthor, Name: "Can change author"},
	{Codename: PermDeleteAuthor, Name: "Can delete author"},
	{Codename: PermAddBook, Name: "Can add book"},
	{Codename: PermChangeBook, Name: "Can change book"},
	{Codename: PermDeleteBook, Name: "Can delete book"},
}

type Permission struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Codename string `gorm:"uniqueIndex;size:100;not null" json:"codename"`
	Name     string `gorm:"size:255" json:"name"`
}

func (Permission) TableName() string {
	return "permissions"
}

// User is a library account. Users are hard deleted so loans can drop their
// borrower link.
type User struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	Username         string       `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email            string       `gorm:"size:255" json:"email"`
	PasswordHash     string       `gorm:"size:255" json:"-"`
	IsSuperuser      bool         `gorm:"not null;default:false" json:"is_superuser"`
	Permissions      []Permission `gorm:"many2many:user_permissions;" json:"permissions,omitempty"`
	LastLoginAt      *time.Time   `json:"last_login_at,omitempty"`
	FailedLoginCount int          `gorm:"not null;default:0" json:"-"`
	LockedUntil      *time.Time   `json:"-"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// PermissionCodenames returns the codenames of the loaded permissions.
func (u User) PermissionCodenames() []string {
	codes := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		codes = append(codes, p.Codename)
	}
	return codes
}
