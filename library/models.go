package library

import "time"

// Book represents metadata and current availability of a book in the library.
// Available is false exactly while an unreturned borrow record references the
// book; the circulation and import code keeps the two in sync.
type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title" validate:"required,max=200"`
	Author    string    `json:"author" validate:"required,max=100"`
	Year      int       `json:"year"`
	Available bool      `json:"available"`
	DateAdded time.Time `json:"date_added"`
}

// BorrowRecord tracks one loan of a book. ReturnDate is set together with
// IsReturned when the loan is closed.
type BorrowRecord struct {
	ID            int64      `json:"id"`
	BookID        int64      `json:"book_id"`
	BorrowerName  string     `json:"borrower_name" validate:"required,max=100"`
	BorrowerEmail string     `json:"borrower_email" validate:"max=50"`
	BorrowerPhone string     `json:"borrower_phone" validate:"max=20"`
	BorrowDate    time.Time  `json:"borrow_date"`
	DueDate       time.Time  `json:"due_date"`
	ReturnDate    *time.Time `json:"return_date,omitempty"`
	IsReturned    bool       `json:"is_returned"`
	Notes         string     `json:"notes" validate:"max=500"`

	// Book is populated by queries that join the books table. It is nil on
	// records loaded without the join.
	Book *Book `json:"-"`
}

// ImportSummary is the result of one CSV import call: how many entities were
// created or updated, plus every per-row error in file order.
type ImportSummary struct {
	BooksImported    int      `json:"books_imported"`
	BorrowsImported  int      `json:"borrows_imported"`
	ReturnsProcessed int      `json:"returns_processed"`
	Errors           []string `json:"errors"`
}

// Statistics summarizes the current inventory and circulation state.
type Statistics struct {
	TotalBooks     int `json:"total_books"`
	AvailableBooks int `json:"available_books"`
	BorrowedBooks  int `json:"borrowed_books"`
	TotalBorrows   int `json:"total_borrows"`
	ActiveBorrows  int `json:"active_borrows"`
	OverdueBorrows int `json:"overdue_borrows"`
}
