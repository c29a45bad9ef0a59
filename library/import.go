package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultLoanPeriod is the due date offset applied when an imported borrow
// row carries no DueDate column.
const defaultLoanPeriod = 14 * 24 * time.Hour

// csvImport is the working state of one import call: an in-memory snapshot of
// existing entities loaded once up front, the entities created by earlier rows
// of the same file, and the mutations staged for the final commit. Rows are
// processed strictly in file order, so a borrow created by row i is visible to
// a return on row j>i through this shared state. Nothing touches the database
// until commit.
type csvImport struct {
	books     []*Book
	records   []*BorrowRecord
	booksByID map[int64]*Book

	newBooks     []*Book
	newRecords   []*BorrowRecord
	dirtyBooks   map[int64]*Book
	dirtyRecords map[int64]*BorrowRecord

	summary ImportSummary
}

// ImportCSV reads the CSV file at path and merges it into the inventory and
// borrow state. The header row decides whether the file is a book catalog or
// a borrow/return file; rows failing individually are reported in the summary
// without aborting the rest. All staged creations and mutations are persisted
// in a single transaction at the end — on commit failure nothing is persisted
// and the failure is reported as one summary error.
//
// Cancellation is honored at whole-call granularity: either the import runs
// to commit, or it is abandoned with no state persisted.
func (d *Database) ImportCSV(ctx context.Context, path string) (*ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	imp := &csvImport{
		booksByID:    make(map[int64]*Book),
		dirtyBooks:   make(map[int64]*Book),
		dirtyRecords: make(map[int64]*BorrowRecord),
	}

	lines := splitLines(string(data))
	if len(lines) < 2 {
		imp.summary.Errors = append(imp.summary.Errors,
			"CSV file must have at least a header row and one data row.")
		return &imp.summary, nil
	}

	header := parseCSVLine(lines[0])
	format, hasReturnData := classifyHeader(header)

	switch format {
	case formatCatalog:
		if err := d.loadBookSnapshot(imp); err != nil {
			return nil, err
		}
		imp.importCatalogRows(lines)

	case formatBorrows:
		if err := d.loadBookSnapshot(imp); err != nil {
			return nil, err
		}
		if err := d.loadRecordSnapshot(imp); err != nil {
			return nil, err
		}
		imp.importBorrowRows(lines, header, hasReturnData)

	default:
		imp.summary.Errors = append(imp.summary.Errors,
			"CSV file format not recognized. Expected books or borrows/returns format.")
		return &imp.summary, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.commitImport(ctx, imp); err != nil {
		imp.summary.Errors = append(imp.summary.Errors,
			fmt.Sprintf("Failed to save imported data: %v", err))
	}
	return &imp.summary, nil
}

// loadBookSnapshot fetches every book once; all matching during the call runs
// against this copy.
func (d *Database) loadBookSnapshot(imp *csvImport) error {
	books, err := d.GetAllBooks()
	if err != nil {
		return fmt.Errorf("load books: %w", err)
	}
	imp.books = books
	for _, b := range books {
		imp.booksByID[b.ID] = b
	}
	return nil
}

// loadRecordSnapshot fetches the unreturned records once and rebinds each
// record's Book to the snapshot instance, so availability flips made through
// a record are seen by later rows resolving the same book.
func (d *Database) loadRecordSnapshot(imp *csvImport) error {
	records, err := d.GetActiveBorrows()
	if err != nil {
		return fmt.Errorf("load borrow records: %w", err)
	}
	for _, r := range records {
		r.Book = imp.booksByID[r.BookID]
	}
	imp.records = records
	return nil
}

// rowError records a failure for one data row. line is the 1-based source
// line number, header included.
func (imp *csvImport) rowError(line int, msg string) {
	imp.summary.Errors = append(imp.summary.Errors, fmt.Sprintf("Line %d: %s", line, msg))
}

// ---------------------------------------------------------------------------
// Catalog rows
// ---------------------------------------------------------------------------

// importCatalogRows merges Title,Author,Year rows into the book collection,
// silently skipping (title, author) pairs already known. Newly created books
// join the snapshot so later rows of the same file dedup against them too.
func (imp *csvImport) importCatalogRows(lines []string) {
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if err := imp.catalogRow(lines[i]); err != nil {
			imp.rowError(i+1, err.Error())
		}
	}
}

func (imp *csvImport) catalogRow(line string) error {
	values := parseCSVLine(line)
	if len(values) < 3 {
		return errors.New("Insufficient columns")
	}

	title := cleanField(values[0])
	author := cleanField(values[1])
	year, err := strconv.Atoi(strings.TrimSpace(values[2]))
	if err != nil {
		return errors.New("Invalid year format")
	}

	for _, b := range imp.books {
		if strings.EqualFold(b.Title, title) && strings.EqualFold(b.Author, author) {
			return nil // already known, skip without error
		}
	}

	book := &Book{
		Title:     title,
		Author:    author,
		Year:      year,
		Available: true,
		DateAdded: time.Now(),
	}
	imp.newBooks = append(imp.newBooks, book)
	imp.books = append(imp.books, book)
	imp.summary.BooksImported++
	return nil
}

// ---------------------------------------------------------------------------
// Borrow/return rows
// ---------------------------------------------------------------------------

// importBorrowRows classifies each row as a return of an existing active
// borrow or a new borrow and applies the matching mutation to the snapshot.
func (imp *csvImport) importBorrowRows(lines, header []string, hasReturnData bool) {
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if err := imp.borrowRow(lines[i], header, hasReturnData); err != nil {
			imp.rowError(i+1, err.Error())
		}
	}
}

func (imp *csvImport) borrowRow(line string, header []string, hasReturnData bool) error {
	values := parseCSVLine(line)
	if len(values) < 4 {
		return errors.New("Insufficient columns")
	}

	bookTitle := cleanField(values[0])
	borrowerName := cleanField(values[1])
	borrowerEmail := cleanField(values[2])
	borrowerPhone := cleanField(values[3])

	book := imp.findBook(bookTitle)
	if book == nil {
		return fmt.Errorf("Book '%s' not found", bookTitle)
	}

	// Decide whether this row closes a loan. A row counts as a return only
	// when the returned flag is set AND a parseable return date is present;
	// returned-without-date rows deliberately fall through to the new-borrow
	// path below, matching the long-standing import behavior.
	isReturned := false
	var returnDate *time.Time
	if hasReturnData {
		if idx := headerIndex(header, "IsReturned"); idx >= 0 && idx < len(values) {
			switch strings.ToLower(cleanField(values[idx])) {
			case "yes", "true", "1":
				isReturned = true
			}
		}
		if idx := headerIndex(header, "ReturnDate"); idx >= 0 && idx < len(values) {
			if t, ok := parseDate(cleanField(values[idx])); ok {
				returnDate = &t
				isReturned = true
			}
		}
	}

	if isReturned && returnDate != nil {
		return imp.applyReturn(bookTitle, borrowerName, returnDate)
	}
	return imp.applyBorrow(book, values, header, borrowerName, borrowerEmail, borrowerPhone, isReturned, returnDate)
}

// applyReturn closes the active record matching the row's book title and
// borrower name.
func (imp *csvImport) applyReturn(bookTitle, borrowerName string, returnDate *time.Time) error {
	rec := imp.findActiveRecord(bookTitle, borrowerName)
	if rec == nil {
		return errors.New("No active borrow record found for return")
	}

	rec.IsReturned = true
	rec.ReturnDate = returnDate
	imp.markRecordDirty(rec)
	if rec.Book != nil {
		rec.Book.Available = true
		imp.markBookDirty(rec.Book)
	}
	imp.summary.ReturnsProcessed++
	return nil
}

// applyBorrow stages a new borrow record for an available book, defaulting
// the borrow date to now and the due date to now plus the loan period unless
// the row overrides them.
func (imp *csvImport) applyBorrow(book *Book, values, header []string,
	borrowerName, borrowerEmail, borrowerPhone string, isReturned bool, returnDate *time.Time) error {

	if !book.Available {
		return fmt.Errorf("Book '%s' is already borrowed", book.Title)
	}

	now := time.Now()
	borrowDate := now
	dueDate := now.Add(defaultLoanPeriod)
	if idx := headerIndex(header, "BorrowDate"); idx >= 0 && idx < len(values) {
		if t, ok := parseDate(cleanField(values[idx])); ok {
			borrowDate = t
		}
	}
	if idx := headerIndex(header, "DueDate"); idx >= 0 && idx < len(values) {
		if t, ok := parseDate(cleanField(values[idx])); ok {
			dueDate = t
		}
	}
	notes := ""
	if idx := headerIndex(header, "Notes"); idx >= 0 && idx < len(values) {
		notes = cleanField(values[idx])
	}

	rec := &BorrowRecord{
		BookID:        book.ID,
		BorrowerName:  borrowerName,
		BorrowerEmail: borrowerEmail,
		BorrowerPhone: borrowerPhone,
		BorrowDate:    borrowDate,
		DueDate:       dueDate,
		ReturnDate:    returnDate,
		IsReturned:    isReturned,
		Notes:         notes,
		Book:          book,
	}

	// A row that claimed to be returned but had no parseable date lands here:
	// the record is stored already closed, so the book stays available. A
	// genuine new borrow makes the book unavailable.
	book.Available = isReturned
	imp.markBookDirty(book)

	imp.newRecords = append(imp.newRecords, rec)
	imp.records = append(imp.records, rec)
	imp.summary.BorrowsImported++
	return nil
}

// findBook resolves a title against the snapshot, first match wins.
func (imp *csvImport) findBook(title string) *Book {
	for _, b := range imp.books {
		if strings.EqualFold(b.Title, title) {
			return b
		}
	}
	return nil
}

// findActiveRecord locates an unreturned record whose book title and borrower
// name both match, including records staged earlier in the same file.
func (imp *csvImport) findActiveRecord(bookTitle, borrowerName string) *BorrowRecord {
	for _, r := range imp.records {
		if r.IsReturned || r.Book == nil {
			continue
		}
		if strings.EqualFold(r.Book.Title, bookTitle) && strings.EqualFold(r.BorrowerName, borrowerName) {
			return r
		}
	}
	return nil
}

// Staged entities have no id yet and are written in full at commit, so only
// persisted entities need an UPDATE recorded.

func (imp *csvImport) markBookDirty(b *Book) {
	if b.ID != 0 {
		imp.dirtyBooks[b.ID] = b
	}
}

func (imp *csvImport) markRecordDirty(r *BorrowRecord) {
	if r.ID != 0 {
		imp.dirtyRecords[r.ID] = r
	}
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// commitImport applies everything the import staged — new books, new borrow
// records, return updates, availability flips — in one transaction.
func (d *Database) commitImport(ctx context.Context, imp *csvImport) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range imp.newBooks {
		res, err := tx.Exec(`INSERT INTO books(title,author,year,available,date_added) VALUES(?,?,?,?,?)`,
			b.Title, b.Author, b.Year, b.Available, b.DateAdded)
		if err != nil {
			return fmt.Errorf("insert book %q: %w", b.Title, err)
		}
		if b.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	for _, r := range imp.newRecords {
		res, err := tx.Exec(`INSERT INTO borrow_records(book_id,borrower_name,borrower_email,borrower_phone,borrow_date,due_date,return_date,is_returned,notes)
            VALUES(?,?,?,?,?,?,?,?,?)`,
			r.BookID, r.BorrowerName, r.BorrowerEmail, r.BorrowerPhone,
			r.BorrowDate, r.DueDate, r.ReturnDate, r.IsReturned, r.Notes)
		if err != nil {
			return fmt.Errorf("insert borrow record for %q: %w", r.BorrowerName, err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	for id, r := range imp.dirtyRecords {
		if _, err := tx.Exec(`UPDATE borrow_records SET is_returned=?, return_date=? WHERE id=?`,
			r.IsReturned, r.ReturnDate, id); err != nil {
			return fmt.Errorf("update borrow record %d: %w", id, err)
		}
	}

	for id, b := range imp.dirtyBooks {
		if _, err := tx.Exec(`UPDATE books SET available=? WHERE id=?`, b.Available, id); err != nil {
			return fmt.Errorf("update book %d: %w", id, err)
		}
	}

	return tx.Commit()
}
