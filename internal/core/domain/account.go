package domain

import (
	"time"
	"unicode/utf8"
)

const (
	HandleMinLen = 5
	HandleMaxLen = 20

	// MinAccountAgeYears is how far before creation an account must have been opened.
	MinAccountAgeYears = 18
)

// Account is a catalog entry identified by its handle.
type Account struct {
	Handle    string    `json:"handle"`
	OpenedAt  time.Time `json:"opened_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidHandle reports whether handle is 5 to 20 characters long.
func ValidHandle(handle string) bool {
	n := utf8.RuneCountInString(handle)
	return n >= HandleMinLen && n <= HandleMaxLen
}

// OpenedLongEnoughAgo reports whether openedAt lies at least
// MinAccountAgeYears before now.
func OpenedLongEnoughAgo(openedAt, now time.Time) bool {
	return !openedAt.After(now.AddDate(-MinAccountAgeYears, 0, 0))
}
