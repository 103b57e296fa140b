package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoanStatus is the availability code of a single copy.
type LoanStatus string

const (
	LoanStatusMaintenance LoanStatus = "m"
	LoanStatusOnLoan      LoanStatus = "o"
	LoanStatusAvailable   LoanStatus = "a"
	LoanStatusReserved    LoanStatus = "r"
)

var loanStatusLabels = map[LoanStatus]string{
	LoanStatusMaintenance: "Maintenance",
	LoanStatusOnLoan:      "On loan",
	LoanStatusAvailable:   "Available",
	LoanStatusReserved:    "Reserved",
}

// Label returns the human readable status, or the raw code for unknown values.
func (s LoanStatus) Label() string {
	if label, ok := loanStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known status codes.
func (s LoanStatus) Valid() bool {
	_, ok := loanStatusLabels[s]
	return ok
}

// LoanStatuses lists the status codes in display order.
func LoanStatuses() []LoanStatus {
	return []LoanStatus{LoanStatusMaintenance, LoanStatusOnLoan, LoanStatusAvailable, LoanStatusReserved}
}

// FoldName is the key genre and language names are unique on. Upper then
// lower folds scripts with several lowercase forms, e.g. Greek final sigma.
func FoldName(name string) string {
	return strings.ToLower(strings.ToUpper(name))
}

type Genre struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	NameKey   string    `gorm:"size:200;not null;uniqueIndex:genre_name_case_insensitive_unique" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Genre) TableName() string {
	return "genres"
}

func (g *Genre) BeforeCreate(tx *gorm.DB) error {
	g.NameKey = FoldName(g.Name)
	return nil
}

type Language struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	NameKey   string    `gorm:"size:200;not null;uniqueIndex:language_lower_case_insensitive_unique" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Language) TableName() string {
	return "languages"
}

func (l *Language) BeforeCreate(tx *gorm.DB) error {
	l.NameKey = FoldName(l.Name)
	return nil
}

type Author struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	FirstName   string     `gorm:"size:100;not null" json:"first_name"`
	LastName    string     `gorm:"size:100;not null;index:idx_authors_name,priority:1" json:"last_name"`
	DateOfBirth *time.Time `gorm:"type:date" json:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `gorm:"type:date;check:author_date_of_birth_lower_than_date_of_death,date_of_birth < date_of_death" json:"date_of_death,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Author) TableName() string {
	return "authors"
}

// FullName renders the author the way listings show it: "Last, First".
func (a Author) FullName() string {
	return a.LastName + ", " + a.FirstName
}

type Book struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"size:200;not null;index" json:"title"`
	AuthorID  *uint      `gorm:"index" json:"author_id,omitempty"`
	Author    *Author    `gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT" json:"author,omitempty"`
	Summary   string     `gorm:"size:1000" json:"summary"`
	ISBN      string     `gorm:"column:isbn;size:13;uniqueIndex" json:"isbn"`
	Genres    []Genre    `gorm:"many2many:book_genres;" json:"genres,omitempty"`
	Languages []Language `gorm:"many2many:book_languages;" json:"languages,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// GenreNames joins the genre names for compact display.
func (b Book) GenreNames() []string {
	names := make([]string, 0, len(b.Genres))
	for _, g := range b.Genres {
		names = append(names, g.Name)
	}
	return names
}

// BookInstance is one lendable copy of a book. Its identifier is a random UUID
// so copies cannot be enumerated.
type BookInstance struct {
	ID         uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	BookID     uint       `gorm:"not null;index" json:"book_id"`
	Book       *Book      `gorm:"foreignKey:BookID;constraint:OnDelete:RESTRICT" json:"book,omitempty"`
	Imprint    string     `gorm:"size:200" json:"imprint"`
	DueBack    *time.Time `gorm:"type:date;index" json:"due_back,omitempty"`
	BorrowerID *uint      `gorm:"index" json:"borrower_id,omitempty"`
	Borrower   *User      `gorm:"foreignKey:BorrowerID;constraint:OnDelete:SET NULL" json:"borrower,omitempty"`
	Status     LoanStatus `gorm:"size:1;not null;default:m;check:book_instance_status_values,status IN ('m','o','a','r')" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (BookInstance) TableName() string {
	return "book_instances"
}

func (bi *BookInstance) BeforeCreate(tx *gorm.DB) error {
	if bi.ID == uuid.Nil {
		bi.ID = uuid.New()
	}
	if bi.Status == "" {
		bi.Status = LoanStatusMaintenance
	}
	return nil
}

// IsOverdue reports whether the copy was due strictly before today.
func (bi BookInstance) IsOverdue(today time.Time) bool {
	return bi.DueBack != nil && bi.DueBack.Before(today)
}

type Review struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	BookID      uint       `gorm:"not null;index" json:"book_id"`
	Book        *Book      `gorm:"foreignKey:BookID;constraint:OnDelete:RESTRICT" json:"book,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Content     string     `gorm:"size:1000" json:"content"`
	Grade       float64    `gorm:"not null;check:review_grade_min_and_max_limits,grade >= 0 AND grade <= 10" json:"grade"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (Review) TableName() string {
	return "reviews"
}
