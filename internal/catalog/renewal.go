package catalog

import "time"

const (
	// RenewalWindowDays is how far ahead a due date may be moved, inclusive.
	RenewalWindowDays = 28
	// DefaultRenewalDays is the proposed extension shown on the renewal form.
	DefaultRenewalDays = 21

	RenewalDateField = "renewal_date"

	msgRenewalPast     = "Invalid date - renewal in the past."
	msgRenewalTooFar   = "Invalid date - renewal more than 4 weeks ahead."
	RenewalDateHelp    = "Enter a date between now and 4 weeks (default 3)."
	RenewalDateLayout  = "2006-01-02"
	msgInvalidDateText = "Enter a valid date."
)

// Date truncates t to its calendar day, expressed as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DatePtr is Date for optional values.
func DatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Date(*t)
	return &d
}

// ParseDate parses a YYYY-MM-DD form value. Empty input returns nil.
func ParseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(RenewalDateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InvalidDateError is the field error for an unparsable date input.
func InvalidDateError(field string) error {
	return NewFieldError(field, ErrInvalidFormat, msgInvalidDateText)
}

// DefaultRenewalDate is today plus three weeks.
func DefaultRenewalDate(today time.Time) time.Time {
	return Date(today).AddDate(0, 0, DefaultRenewalDays)
}

// LatestRenewalDate is the last day a loan can be renewed to.
func LatestRenewalDate(today time.Time) time.Time {
	return Date(today).AddDate(0, 0, RenewalWindowDays)
}

// ValidateRenewalDate accepts proposed only inside [today, today+28 days].
func ValidateRenewalDate(today, proposed time.Time) error {
	day := Date(proposed)
	if day.Before(Date(today)) {
		return NewFieldError(RenewalDateField, ErrPastDate, msgRenewalPast)
	}
	if day.After(LatestRenewalDate(today)) {
		return NewFieldError(RenewalDateField, ErrTooFarAhead, msgRenewalTooFar)
	}
	return nil
}
