package catalog

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mrlokans/locallibrary/internal/entities"
)

// Field limits mirror the column sizes in internal/entities.
const (
	MaxPersonNameLength   = 100
	MaxGenreNameLength    = 200
	MaxLanguageNameLength = 50
	MaxTitleLength        = 200
	MaxImprintLength      = 200
	MaxSummaryLength      = 1000
	MaxContentLength      = 1000
	MaxISBNLength         = 13

	MinGrade = 0.0
	MaxGrade = 10.0
)

type AuthorInput struct {
	FirstName   string     `json:"first_name" form:"first_name"`
	LastName    string     `json:"last_name" form:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `json:"date_of_death,omitempty"`
}

type BookInput struct {
	Title       string `json:"title" form:"title"`
	AuthorID    *uint  `json:"author_id,omitempty"`
	Summary     string `json:"summary" form:"summary"`
	ISBN        string `json:"isbn" form:"isbn"`
	GenreIDs    []uint `json:"genre_ids"`
	LanguageIDs []uint `json:"language_ids"`
}

type ReviewInput struct {
	BookID      uint       `json:"book_id"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Content     string     `json:"content" form:"content"`
	Grade       float64    `json:"grade" form:"grade"`
}

type InstanceInput struct {
	BookID  uint                `json:"book_id"`
	Imprint string              `json:"imprint"`
	Status  entities.LoanStatus `json:"status"`
	DueBack *time.Time          `json:"due_back,omitempty"`
}

// validator accumulates field errors, keeping insertion order.
type validator struct {
	fields []FieldError
}

func (v *validator) add(field string, kind error, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Kind: kind, Message: message})
}

func (v *validator) check(ok bool, field string, kind error, message string) {
	if !ok {
		v.add(field, kind, message)
	}
}

func (v *validator) required(value, field string) bool {
	if strings.TrimSpace(value) == "" {
		v.add(field, ErrRequired, "This field is required.")
		return false
	}
	return true
}

func (v *validator) maxLength(value, field string, limit int) {
	if n := utf8.RuneCountInString(value); n > limit {
		v.add(field, ErrTooLong, fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", limit, n))
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// ValidateGrade enforces the inclusive [0, 10] review grade range. NaN is
// outside every range.
func ValidateGrade(grade float64) error {
	if !(grade >= MinGrade && grade <= MaxGrade) {
		return NewFieldError("grade", ErrOutOfRange,
			fmt.Sprintf("Ensure this value is between %.1f and %.1f.", MinGrade, MaxGrade))
	}
	return nil
}

// ValidateLifespan rejects a birth date that is not strictly before the death date.
// Either date missing is always valid.
func ValidateLifespan(born, died *time.Time) error {
	if born == nil || died == nil {
		return nil
	}
	if !born.Before(*died) {
		return NewFieldError("date_of_death", ErrInvalidDateOrder, "Date of death must be after date of birth.")
	}
	return nil
}

func ValidateAuthor(in AuthorInput) error {
	v := &validator{}
	if v.required(in.FirstName, "first_name") {
		v.maxLength(in.FirstName, "first_name", MaxPersonNameLength)
	}
	if v.required(in.LastName, "last_name") {
		v.maxLength(in.LastName, "last_name", MaxPersonNameLength)
	}
	if err := mergeValidation(v, ValidateLifespan(in.DateOfBirth, in.DateOfDeath)); err != nil {
		return err
	}
	return v.err()
}

func ValidateBook(in BookInput) error {
	v := &validator{}
	if v.required(in.Title, "title") {
		v.maxLength(in.Title, "title", MaxTitleLength)
	}
	if v.required(in.Summary, "summary") {
		v.maxLength(in.Summary, "summary", MaxSummaryLength)
	}
	if v.required(in.ISBN, "isbn") {
		v.maxLength(in.ISBN, "isbn", MaxISBNLength)
	}
	return v.err()
}

func ValidateReview(in ReviewInput) error {
	v := &validator{}
	v.check(in.BookID != 0, "book", ErrRequired, "This field is required.")
	if v.required(in.Content, "content") {
		v.maxLength(in.Content, "content", MaxContentLength)
	}
	if err := mergeValidation(v, ValidateGrade(in.Grade)); err != nil {
		return err
	}
	return v.err()
}

func ValidateInstance(in InstanceInput) error {
	v := &validator{}
	v.check(in.BookID != 0, "book", ErrRequired, "This field is required.")
	if v.required(in.Imprint, "imprint") {
		v.maxLength(in.Imprint, "imprint", MaxImprintLength)
	}
	v.check(in.Status == "" || in.Status.Valid(), "status", ErrInvalidChoice,
		fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", in.Status))
	return v.err()
}

// ValidateName checks a genre or language name before the uniqueness lookup.
func ValidateName(name string, limit int) error {
	v := &validator{}
	if v.required(name, "name") {
		v.maxLength(name, "name", limit)
	}
	return v.err()
}

// normalizeAuthor trims names and truncates dates to calendar days.
func normalizeAuthor(in AuthorInput) AuthorInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.DateOfBirth = DatePtr(in.DateOfBirth)
	in.DateOfDeath = DatePtr(in.DateOfDeath)
	return in
}

func normalizeBook(in BookInput) BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.GenreIDs = uniqueIDs(in.GenreIDs)
	in.LanguageIDs = uniqueIDs(in.LanguageIDs)
	return in
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
