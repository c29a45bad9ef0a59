package library

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// LibraryManager is a thin façade over the Database, keeping CLI code simple.
// It validates entity field constraints before anything reaches storage.
type LibraryManager struct {
	db       *Database
	validate *validator.Validate

	// LoanPeriod is the due date offset for manual borrows without an
	// explicit due date.
	LoanPeriod time.Duration
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{
		db:         db,
		validate:   validator.New(),
		LoanPeriod: defaultLoanPeriod,
	}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// ------------------ Book helpers ------------------

// AddBook validates and stores a new book, returning its id.
func (lm *LibraryManager) AddBook(title, author string, year int) (int64, error) {
	book := &Book{
		Title:     title,
		Author:    author,
		Year:      year,
		Available: true,
		DateAdded: time.Now(),
	}
	if err := lm.validate.Struct(book); err != nil {
		return 0, fmt.Errorf("invalid book: %w", err)
	}
	return lm.db.AddBook(book)
}

// UpdateBook validates and rewrites a book's metadata.
func (lm *LibraryManager) UpdateBook(b *Book) error {
	if err := lm.validate.Struct(b); err != nil {
		return fmt.Errorf("invalid book: %w", err)
	}
	return lm.db.UpdateBook(b)
}

func (lm *LibraryManager) DeleteBook(id int64) error          { return lm.db.DeleteBook(id) }
func (lm *LibraryManager) GetBook(id int64) (*Book, error)    { return lm.db.GetBook(id) }
func (lm *LibraryManager) GetAllBooks() ([]*Book, error)      { return lm.db.GetAllBooks() }
func (lm *LibraryManager) GetAvailableBooks() ([]*Book, error) {
	return lm.db.GetAvailableBooks()
}

// ------------------ Search ------------------

func (lm *LibraryManager) SearchBooks(term string) ([]*Book, error) {
	return lm.db.SearchBooks(term)
}

func (lm *LibraryManager) SearchRecommendations(term string) ([]string, error) {
	return lm.db.SearchRecommendations(term)
}

// ------------------ Circulation ------------------

// BorrowBook validates and records a new loan. A nil dueDate defaults to the
// configured loan period from now.
func (lm *LibraryManager) BorrowBook(bookID int64, borrowerName, email, phone string, dueDate *time.Time, notes string) (int64, error) {
	now := time.Now()
	due := now.Add(lm.LoanPeriod)
	if dueDate != nil {
		due = *dueDate
	}
	rec := &BorrowRecord{
		BookID:        bookID,
		BorrowerName:  borrowerName,
		BorrowerEmail: email,
		BorrowerPhone: phone,
		BorrowDate:    now,
		DueDate:       due,
		Notes:         notes,
	}
	if err := lm.validate.Struct(rec); err != nil {
		return 0, fmt.Errorf("invalid borrow record: %w", err)
	}
	return lm.db.BorrowBook(bookID, rec)
}

// ReturnBook closes the loan identified by recordID.
func (lm *LibraryManager) ReturnBook(recordID int64) error {
	return lm.db.ReturnBook(recordID)
}

func (lm *LibraryManager) GetActiveBorrows() ([]*BorrowRecord, error) {
	return lm.db.GetActiveBorrows()
}

func (lm *LibraryManager) GetAllBorrowRecords() ([]*BorrowRecord, error) {
	return lm.db.GetAllBorrowRecords()
}

// ------------------ Statistics ------------------

func (lm *LibraryManager) GetStatistics() (*Statistics, error) {
	return lm.db.GetStatistics()
}

// ------------------ Bulk transfer ------------------

// ImportCSV merges an externally produced CSV file into the library state.
// See Database.ImportCSV for the reconciliation semantics.
func (lm *LibraryManager) ImportCSV(ctx context.Context, path string) (*ImportSummary, error) {
	return lm.db.ImportCSV(ctx, path)
}

// ExportCSV writes the catalog and borrow history as CSV files next to
// basePath.
func (lm *LibraryManager) ExportCSV(basePath string) (booksPath, borrowsPath string, err error) {
	return lm.db.ExportCSV(basePath)
}
