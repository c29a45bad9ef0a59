package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sql.DB

	addBookStmt   *sql.Stmt
	addRecordStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.addRecordStmt != nil {
		d.addRecordStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            year INTEGER NOT NULL DEFAULT 0,
            available BOOLEAN NOT NULL DEFAULT 1,
            date_added DATETIME
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);`,
		`CREATE INDEX IF NOT EXISTS idx_books_author ON books(author);`,
		`CREATE TABLE IF NOT EXISTS borrow_records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
            borrower_name TEXT NOT NULL,
            borrower_email TEXT NOT NULL DEFAULT '',
            borrower_phone TEXT NOT NULL DEFAULT '',
            borrow_date DATETIME NOT NULL,
            due_date DATETIME,
            return_date DATETIME,
            is_returned BOOLEAN NOT NULL DEFAULT 0,
            notes TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_records_book ON borrow_records(book_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(
		`INSERT INTO books(title,author,year,available,date_added) VALUES(?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addRecordStmt, err = d.db.Prepare(
		`INSERT INTO borrow_records(book_id,borrower_name,borrower_email,borrower_phone,borrow_date,due_date,return_date,is_returned,notes)
         VALUES(?,?,?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// AddBook inserts a book and returns its assigned id. A zero DateAdded is
// replaced with the current time.
func (d *Database) AddBook(b *Book) (int64, error) {
	if b.DateAdded.IsZero() {
		b.DateAdded = time.Now()
	}
	res, err := d.addBookStmt.Exec(b.Title, b.Author, b.Year, b.Available, b.DateAdded)
	if err != nil {
		return 0, err
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return 0, err
	}
	return b.ID, nil
}

func (d *Database) GetBook(id int64) (*Book, error) {
	var b Book
	var added sql.NullTime
	err := d.db.QueryRow(`SELECT id,title,author,year,available,date_added FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.Year, &b.Available, &added)
	if err != nil {
		return nil, err
	}
	b.DateAdded = added.Time
	return &b, nil
}

// GetAllBooks returns every book ordered by title.
func (d *Database) GetAllBooks() ([]*Book, error) {
	return d.queryBooks(`SELECT id,title,author,year,available,date_added FROM books ORDER BY title`)
}

// GetAvailableBooks returns books not currently lent out, ordered by title.
func (d *Database) GetAvailableBooks() ([]*Book, error) {
	return d.queryBooks(`SELECT id,title,author,year,available,date_added FROM books WHERE available=1 ORDER BY title`)
}

func (d *Database) queryBooks(query string, args ...any) ([]*Book, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		var added sql.NullTime
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Year, &b.Available, &added); err != nil {
			return nil, err
		}
		b.DateAdded = added.Time
		books = append(books, &b)
	}
	return books, rows.Err()
}

// UpdateBook rewrites a book's metadata and availability.
func (d *Database) UpdateBook(b *Book) error {
	res, err := d.db.Exec(`UPDATE books SET title=?, author=?, year=?, available=? WHERE id=?`,
		b.Title, b.Author, b.Year, b.Available, b.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d does not exist", b.ID)
	}
	return nil
}

// DeleteBook removes a book; its borrow history goes with it via the foreign
// key cascade.
func (d *Database) DeleteBook(id int64) error {
	res, err := d.db.Exec(`DELETE FROM books WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d does not exist", id)
	}
	return nil
}

// SearchBooks does a case-insensitive substring match over title and author.
// The filter runs in memory: SQLite's LIKE folds case for ASCII only, so the
// fold happens in Go where it is consistent.
func (d *Database) SearchBooks(term string) ([]*Book, error) {
	term = strings.TrimSpace(term)
	books, err := d.GetAllBooks()
	if err != nil {
		return nil, err
	}
	if term == "" {
		return books, nil
	}

	var results []*Book
	for _, b := range books {
		if containsFold(b.Title, term) || containsFold(b.Author, term) {
			results = append(results, b)
		}
	}
	return results, nil
}

// SearchRecommendations returns up to ten distinct titles and author names
// matching the term, sorted case-insensitively.
func (d *Database) SearchRecommendations(term string) ([]string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	books, err := d.GetAllBooks()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	for _, b := range books {
		if containsFold(b.Title, term) {
			seen[strings.ToLower(b.Title)] = b.Title
		}
		if containsFold(b.Author, term) {
			seen[strings.ToLower(b.Author)] = b.Author
		}
	}

	recs := make([]string, 0, len(seen))
	for _, v := range seen {
		recs = append(recs, v)
	}
	sort.Slice(recs, func(i, j int) bool {
		return strings.ToLower(recs[i]) < strings.ToLower(recs[j])
	})
	if len(recs) > 10 {
		recs = recs[:10]
	}
	return recs, nil
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// BorrowBook records a new loan and flips availability in one transaction.
// The record's BookID is taken from bookID; borrow and due dates must already
// be set by the caller.
func (d *Database) BorrowBook(bookID int64, rec *BorrowRecord) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var avail bool
	err = tx.QueryRow(`SELECT available FROM books WHERE id=?`, bookID).Scan(&avail)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("book %d does not exist", bookID)
	}
	if err != nil {
		return 0, err
	}
	if !avail {
		return 0, fmt.Errorf("book %d is already borrowed", bookID)
	}

	res, err := tx.Exec(`INSERT INTO borrow_records(book_id,borrower_name,borrower_email,borrower_phone,borrow_date,due_date,return_date,is_returned,notes)
        VALUES(?,?,?,?,?,?,?,?,?)`,
		bookID, rec.BorrowerName, rec.BorrowerEmail, rec.BorrowerPhone,
		rec.BorrowDate, rec.DueDate, rec.ReturnDate, rec.IsReturned, rec.Notes)
	if err != nil {
		return 0, err
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return 0, err
	}
	rec.BookID = bookID

	if _, err := tx.Exec(`UPDATE books SET available=0 WHERE id=?`, bookID); err != nil {
		return 0, err
	}
	return rec.ID, tx.Commit()
}

// ReturnBook closes the loan identified by recordID: sets the returned flag
// and return timestamp together and makes the book available again.
func (d *Database) ReturnBook(recordID int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bookID int64
	var returned bool
	err = tx.QueryRow(`SELECT book_id, is_returned FROM borrow_records WHERE id=?`, recordID).
		Scan(&bookID, &returned)
	if err == sql.ErrNoRows {
		return fmt.Errorf("borrow record %d does not exist", recordID)
	}
	if err != nil {
		return err
	}
	if returned {
		return fmt.Errorf("borrow record %d is already returned", recordID)
	}

	if _, err := tx.Exec(`UPDATE borrow_records SET is_returned=1, return_date=? WHERE id=?`, time.Now(), recordID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE books SET available=1 WHERE id=?`, bookID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetActiveBorrows returns unreturned records, newest loan first, with the
// book joined in.
func (d *Database) GetActiveBorrows() ([]*BorrowRecord, error) {
	return d.queryRecords(`WHERE r.is_returned=0`)
}

// GetAllBorrowRecords returns the full borrow history, newest loan first,
// with the book joined in.
func (d *Database) GetAllBorrowRecords() ([]*BorrowRecord, error) {
	return d.queryRecords(``)
}

func (d *Database) queryRecords(where string) ([]*BorrowRecord, error) {
	query := `SELECT r.id, r.book_id, r.borrower_name, r.borrower_email, r.borrower_phone,
            r.borrow_date, r.due_date, r.return_date, r.is_returned, r.notes,
            b.id, b.title, b.author, b.year, b.available, b.date_added
        FROM borrow_records r
        JOIN books b ON b.id = r.book_id ` + where + ` ORDER BY r.borrow_date DESC, r.id DESC`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*BorrowRecord
	for rows.Next() {
		var r BorrowRecord
		var b Book
		var due, ret, added sql.NullTime
		if err := rows.Scan(&r.ID, &r.BookID, &r.BorrowerName, &r.BorrowerEmail, &r.BorrowerPhone,
			&r.BorrowDate, &due, &ret, &r.IsReturned, &r.Notes,
			&b.ID, &b.Title, &b.Author, &b.Year, &b.Available, &added); err != nil {
			return nil, err
		}
		r.DueDate = due.Time
		if ret.Valid {
			t := ret.Time
			r.ReturnDate = &t
		}
		b.DateAdded = added.Time
		r.Book = &b
		records = append(records, &r)
	}
	return records, rows.Err()
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// GetStatistics counts inventory and circulation state, including overdue
// loans (due before now and not yet returned).
func (d *Database) GetStatistics() (*Statistics, error) {
	var s Statistics
	counts := []struct {
		query string
		dest  *int
		args  []any
	}{
		{`SELECT COUNT(*) FROM books`, &s.TotalBooks, nil},
		{`SELECT COUNT(*) FROM books WHERE available=1`, &s.AvailableBooks, nil},
		{`SELECT COUNT(*) FROM borrow_records`, &s.TotalBorrows, nil},
		{`SELECT COUNT(*) FROM borrow_records WHERE is_returned=0`, &s.ActiveBorrows, nil},
		{`SELECT COUNT(*) FROM borrow_records WHERE is_returned=0 AND due_date < ?`, &s.OverdueBorrows, []any{time.Now()}},
	}
	for _, c := range counts {
		if err := d.db.QueryRow(c.query, c.args...).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	s.BorrowedBooks = s.TotalBooks - s.AvailableBooks
	return &s, nil
}
