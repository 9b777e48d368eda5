package domain

// DateLayout is the storage format of calendar dates (read, started).
const DateLayout = "2006-01-02"

// Book is a library entry as the handlers see it.
type Book struct {
	ID               int
	Title            string
	Author           string
	Genre            string
	Pages            int
	Rating           int    // 0 = unrated
	Read             string // finish date, "" = unread
	CurrentlyReading bool
	StartedAt        string
	CurrentPage      int
	Progress         int // percent
}

// IsRead reports whether the book has a finish date.
func (b Book) IsRead() bool { return b.Read != "" }

// BookUpdate is a partial update; nil fields are left untouched.
type BookUpdate struct {
	Title            *string
	Author           *string
	Genre            *string
	Pages            *int
	Rating           *int
	Read             *string
	CurrentlyReading *bool
	StartedAt        *string
	CurrentPage      *int
	Progress         *int
}

// IsEmpty reports whether the update changes nothing.
func (u BookUpdate) IsEmpty() bool {
	return u.Title == nil && u.Author == nil && u.Genre == nil && u.Pages == nil &&
		u.Rating == nil && u.Read == nil && u.CurrentlyReading == nil &&
		u.StartedAt == nil && u.CurrentPage == nil && u.Progress == nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
