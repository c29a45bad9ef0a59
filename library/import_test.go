package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func importFile(t *testing.T, db *Database, content string) *ImportSummary {
	t.Helper()
	summary, err := db.ImportCSV(context.Background(), writeCSV(t, content))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return summary
}

func assertCounts(t *testing.T, s *ImportSummary, books, borrows, returns int) {
	t.Helper()
	if s.BooksImported != books || s.BorrowsImported != borrows || s.ReturnsProcessed != returns {
		t.Fatalf("counts = (%d, %d, %d), want (%d, %d, %d); errors: %v",
			s.BooksImported, s.BorrowsImported, s.ReturnsProcessed, books, borrows, returns, s.Errors)
	}
}

// ---------------------------------------------------------------------------
// Catalog files
// ---------------------------------------------------------------------------

func TestImportCatalogSingleRow(t *testing.T) {
	db := tempDB(t)
	summary := importFile(t, db, "Title,Author,Year\n\"Dune\",\"Frank Herbert\",1965\n")

	assertCounts(t, summary, 1, 0, 0)
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}

	books, _ := db.GetAllBooks()
	if len(books) != 1 {
		t.Fatalf("want 1 book, got %d", len(books))
	}
	b := books[0]
	if b.Title != "Dune" || b.Author != "Frank Herbert" || b.Year != 1965 || !b.Available {
		t.Fatalf("unexpected book: %+v", b)
	}
}

func TestImportCatalogIdempotent(t *testing.T) {
	db := tempDB(t)
	csv := "Title,Author,Year\n\"Dune\",\"Frank Herbert\",1965\n\"Hyperion\",\"Dan Simmons\",1989\n"

	first := importFile(t, db, csv)
	assertCounts(t, first, 2, 0, 0)

	// Re-importing the same file creates nothing and reports nothing.
	second := importFile(t, db, csv)
	assertCounts(t, second, 0, 0, 0)
	if len(second.Errors) != 0 {
		t.Fatalf("re-import should be silent, got %v", second.Errors)
	}

	books, _ := db.GetAllBooks()
	if len(books) != 2 {
		t.Fatalf("want 2 books after re-import, got %d", len(books))
	}
}

func TestImportCatalogDuplicatesCaseInsensitive(t *testing.T) {
	db := tempDB(t)
	addTestBook(t, db, "Dune", "Frank Herbert", 1965)

	// Same pair in different case, plus an in-file duplicate of a new book.
	summary := importFile(t, db, strings.Join([]string{
		"Title,Author,Year",
		`"DUNE","FRANK HERBERT",1965`,
		`"Hyperion","Dan Simmons",1989`,
		`"hyperion","dan simmons",1989`,
	}, "\n")+"\n")

	assertCounts(t, summary, 1, 0, 0)
	books, _ := db.GetAllBooks()
	if len(books) != 2 {
		t.Fatalf("want 2 books, got %d", len(books))
	}
}

func TestImportCatalogRowErrors(t *testing.T) {
	db := tempDB(t)
	summary := importFile(t, db, strings.Join([]string{
		"Title,Author,Year",
		`"Dune","Frank Herbert"`, // line 2: too few columns
		`"Hyperion","Dan Simmons",MCMLXXXIX`, // line 3: bad year
		`"Solaris","Stanislaw Lem",1961`,
	}, "\n")+"\n")

	assertCounts(t, summary, 1, 0, 0)
	if len(summary.Errors) != 2 {
		t.Fatalf("want 2 errors, got %v", summary.Errors)
	}
	if !strings.Contains(summary.Errors[0], "Line 2") || !strings.Contains(summary.Errors[0], "Insufficient columns") {
		t.Fatalf("unexpected first error: %q", summary.Errors[0])
	}
	if !strings.Contains(summary.Errors[1], "Line 3") || !strings.Contains(summary.Errors[1], "Invalid year format") {
		t.Fatalf("unexpected second error: %q", summary.Errors[1])
	}
}

func TestImportCatalogSkipsBlankLines(t *testing.T) {
	db := tempDB(t)
	summary := importFile(t, db, "Title,Author,Year\n\n\"Dune\",\"Frank Herbert\",1965\n\n")
	assertCounts(t, summary, 1, 0, 0)
	if len(summary.Errors) != 0 {
		t.Fatalf("blank lines must not error: %v", summary.Errors)
	}
}

// ---------------------------------------------------------------------------
// Borrow/return files
// ---------------------------------------------------------------------------

func TestImportNewBorrow(t *testing.T) {
	db := tempDB(t)
	bookID := addTestBook(t, db, "Dune", "Frank Herbert", 1965)

	summary := importFile(t, db,
		"BookTitle,BorrowerName,Email,Phone\n\"Dune\",\"Alice\",\"a@x.com\",\"555\"\n")
	assertCounts(t, summary, 0, 1, 0)
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}

	b, _ := db.GetBook(bookID)
	if b.Available {
		t.Fatalf("book should be unavailable after imported borrow")
	}

	active, _ := db.GetActiveBorrows()
	if len(active) != 1 {
		t.Fatalf("want 1 active record, got %d", len(active))
	}
	r := active[0]
	if r.BorrowerName != "Alice" || r.BorrowerEmail != "a@x.com" || r.BorrowerPhone != "555" {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.IsReturned || r.ReturnDate != nil {
		t.Fatalf("new borrow must be unreturned: %+v", r)
	}
	// Default due date is the loan period from now.
	if until := time.Until(r.DueDate); until < 13*24*time.Hour || until > 15*24*time.Hour {
		t.Fatalf("default due date off: %v", r.DueDate)
	}
}

func TestImportBorrowWithExplicitDates(t *testing.T) {
	db := tempDB(t)
	addTestBook(t, db, "Dune", "Frank Herbert", 1965)

	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,BorrowDate,DueDate,Notes",
		`"Dune","Alice","","","2024-01-01","2024-01-15","handle with care"`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 1, 0)

	active, _ := db.GetActiveBorrows()
	r := active[0]
	if r.BorrowDate.Format("2006-01-02") != "2024-01-01" {
		t.Fatalf("borrow date = %v", r.BorrowDate)
	}
	if r.DueDate.Format("2006-01-02") != "2024-01-15" {
		t.Fatalf("due date = %v", r.DueDate)
	}
	if r.Notes != "handle with care" {
		t.Fatalf("notes = %q", r.Notes)
	}
}

func TestImportReturn(t *testing.T) {
	db := tempDB(t)
	bookID := addTestBook(t, db, "Dune", "Frank Herbert", 1965)
	if _, err := db.BorrowBook(bookID, &BorrowRecord{BorrowerName: "Alice", BorrowDate: time.Now()}); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,IsReturned,ReturnDate",
		`"Dune","Alice","","","Yes","2024-01-10"`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 0, 1)
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}

	b, _ := db.GetBook(bookID)
	if !b.Available {
		t.Fatalf("book should be available after return")
	}
	records, _ := db.GetAllBorrowRecords()
	r := records[0]
	if !r.IsReturned || r.ReturnDate == nil {
		t.Fatalf("record should be returned: %+v", r)
	}
	if r.ReturnDate.Format("2006-01-02") != "2024-01-10" {
		t.Fatalf("return date = %v", r.ReturnDate)
	}
}

func TestImportReturnMatchesCaseInsensitive(t *testing.T) {
	db := tempDB(t)
	bookID := addTestBook(t, db, "Dune", "Frank Herbert", 1965)
	if _, err := db.BorrowBook(bookID, &BorrowRecord{BorrowerName: "Alice", BorrowDate: time.Now()}); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,IsReturned,ReturnDate",
		`"DUNE","ALICE","","","yes","2024-01-10"`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 0, 1)
}

func TestImportBookNotFound(t *testing.T) {
	db := tempDB(t)
	summary := importFile(t, db,
		"BookTitle,BorrowerName,Email,Phone\n\"Missing\",\"Alice\",\"\",\"\"\n")
	assertCounts(t, summary, 0, 0, 0)
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "Book 'Missing' not found") {
		t.Fatalf("want single not-found error, got %v", summary.Errors)
	}
}

func TestImportAlreadyBorrowed(t *testing.T) {
	db := tempDB(t)
	addTestBook(t, db, "Dune", "Frank Herbert", 1965)

	// Second borrow of the same book in the same file must fail on the staged
	// availability, not the stored one.
	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone",
		`"Dune","Alice","",""`,
		`"Dune","Bob","",""`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 1, 0)
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "Book 'Dune' is already borrowed") {
		t.Fatalf("want already-borrowed error, got %v", summary.Errors)
	}
	if !strings.Contains(summary.Errors[0], "Line 3") {
		t.Fatalf("error should cite line 3: %v", summary.Errors)
	}
}

func TestImportReturnWithoutActiveRecord(t *testing.T) {
	db := tempDB(t)
	addTestBook(t, db, "Dune", "Frank Herbert", 1965)

	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,IsReturned,ReturnDate",
		`"Dune","Alice","","","Yes","2024-01-10"`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 0, 0)
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "No active borrow record found for return") {
		t.Fatalf("want no-active-record error, got %v", summary.Errors)
	}
}

func TestImportBorrowInsufficientColumns(t *testing.T) {
	db := tempDB(t)
	addTestBook(t, db, "Dune", "Frank Herbert", 1965)

	summary := importFile(t, db,
		"BookTitle,BorrowerName,Email,Phone\n\"Dune\",\"Alice\"\n")
	assertCounts(t, summary, 0, 0, 0)
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "Insufficient columns") {
		t.Fatalf("want insufficient-columns error, got %v", summary.Errors)
	}
}

// A borrow and its return in the same file resolve against the shared
// snapshot: one record ends up created and closed with the return row's date.
func TestImportBorrowThenReturnSameFile(t *testing.T) {
	db := tempDB(t)
	bookID := addTestBook(t, db, "Dune", "Frank Herbert", 1965)
	addTestBook(t, db, "Hyperion", "Dan Simmons", 1989)

	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,IsReturned,ReturnDate",
		`"Dune","Alice","","","No",""`,
		`"Hyperion","Bob","","","No",""`,
		`"Dune","Alice","","","Yes","2024-01-10"`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 2, 1)
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}

	b, _ := db.GetBook(bookID)
	if !b.Available {
		t.Fatalf("book should be available after in-file return")
	}

	records, _ := db.GetAllBorrowRecords()
	var duneRecords []*BorrowRecord
	for _, r := range records {
		if r.Book.Title == "Dune" {
			duneRecords = append(duneRecords, r)
		}
	}
	if len(duneRecords) != 1 {
		t.Fatalf("want exactly one Dune record, got %d", len(duneRecords))
	}
	r := duneRecords[0]
	if !r.IsReturned || r.ReturnDate == nil || r.ReturnDate.Format("2006-01-02") != "2024-01-10" {
		t.Fatalf("Dune record should be closed with the return row's date: %+v", r)
	}
}

// After a return frees the book, a later row in the same file may borrow it
// again.
func TestImportReturnThenReborrowSameFile(t *testing.T) {
	db := tempDB(t)
	bookID := addTestBook(t, db, "Dune", "Frank Herbert", 1965)
	if _, err := db.BorrowBook(bookID, &BorrowRecord{BorrowerName: "Alice", BorrowDate: time.Now()}); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,IsReturned,ReturnDate",
		`"Dune","Alice","","","Yes","2024-01-10"`,
		`"Dune","Bob","","","No",""`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 1, 1)
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}

	b, _ := db.GetBook(bookID)
	if b.Available {
		t.Fatalf("book should be unavailable after re-borrow")
	}
	active, _ := db.GetActiveBorrows()
	if len(active) != 1 || active[0].BorrowerName != "Bob" {
		t.Fatalf("Bob should hold the active loan: %+v", active)
	}
}

// A row claiming IsReturned without a parseable date is handled as a new
// borrow whose record is created already closed, leaving the book available.
func TestImportReturnedWithoutDateCornerCase(t *testing.T) {
	db := tempDB(t)
	bookID := addTestBook(t, db, "Dune", "Frank Herbert", 1965)

	summary := importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,IsReturned,ReturnDate",
		`"Dune","Alice","","","Yes","not-a-date"`,
	}, "\n")+"\n")
	assertCounts(t, summary, 0, 1, 0)
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}

	b, _ := db.GetBook(bookID)
	if !b.Available {
		t.Fatalf("book should stay available in the returned-without-date case")
	}
	records, _ := db.GetAllBorrowRecords()
	if len(records) != 1 || !records[0].IsReturned || records[0].ReturnDate != nil {
		t.Fatalf("record should be created already marked returned with no date: %+v", records[0])
	}
}

// ---------------------------------------------------------------------------
// Coordinator-level behavior
// ---------------------------------------------------------------------------

func TestImportHeaderOnlyFile(t *testing.T) {
	db := tempDB(t)
	summary := importFile(t, db, "Title,Author,Year\n")
	assertCounts(t, summary, 0, 0, 0)
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "at least a header row and one data row") {
		t.Fatalf("want header-only error, got %v", summary.Errors)
	}
}

func TestImportEmptyFile(t *testing.T) {
	db := tempDB(t)
	summary := importFile(t, db, "")
	assertCounts(t, summary, 0, 0, 0)
	if len(summary.Errors) != 1 {
		t.Fatalf("want single error, got %v", summary.Errors)
	}
}

func TestImportUnrecognizedFormat(t *testing.T) {
	db := tempDB(t)
	summary := importFile(t, db, "Foo,Bar\n1,2\n")
	assertCounts(t, summary, 0, 0, 0)
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "not recognized") {
		t.Fatalf("want format error, got %v", summary.Errors)
	}
	books, _ := db.GetAllBooks()
	if len(books) != 0 {
		t.Fatalf("nothing should be imported from an unrecognized file")
	}
}

func TestImportMissingFile(t *testing.T) {
	db := tempDB(t)
	if _, err := db.ImportCSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected hard error for unreadable file")
	}
}

func TestImportCancelledBeforeCommit(t *testing.T) {
	db := tempDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.ImportCSV(ctx, writeCSV(t, "Title,Author,Year\n\"Dune\",\"Frank Herbert\",1965\n"))
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	books, _ := db.GetAllBooks()
	if len(books) != 0 {
		t.Fatalf("cancelled import must persist nothing, got %d books", len(books))
	}
}

// Availability always matches "no unreturned record references the book" for
// every book the import touched.
func TestImportAvailabilityInvariant(t *testing.T) {
	db := tempDB(t)
	addTestBook(t, db, "Dune", "Frank Herbert", 1965)
	addTestBook(t, db, "Hyperion", "Dan Simmons", 1989)
	addTestBook(t, db, "Solaris", "Stanislaw Lem", 1961)

	importFile(t, db, strings.Join([]string{
		"BookTitle,BorrowerName,Email,Phone,IsReturned,ReturnDate",
		`"Dune","Alice","","","No",""`,
		`"Hyperion","Bob","","","No",""`,
		`"Dune","Alice","","","Yes","2024-01-10"`,
		`"Solaris","Carol","","","Yes","bad-date"`, // corner case: closed record, book untouched
	}, "\n")+"\n")

	books, err := db.GetAllBooks()
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	active, err := db.GetActiveBorrows()
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	activeByBook := make(map[int64]bool)
	for _, r := range active {
		activeByBook[r.BookID] = true
	}
	for _, b := range books {
		if b.Available == activeByBook[b.ID] {
			t.Fatalf("availability invariant violated for %q: available=%v, active loan=%v",
				b.Title, b.Available, activeByBook[b.ID])
		}
	}
}

// ---------------------------------------------------------------------------
// Round-trip with export
// ---------------------------------------------------------------------------

func TestExportImportRoundTrip(t *testing.T) {
	db := tempDB(t)
	b1 := addTestBook(t, db, "Dune", "Frank Herbert", 1965)
	b2 := addTestBook(t, db, "Hyperion", "Dan Simmons", 1989)
	addTestBook(t, db, "Solaris, Revisited", "Stanislaw Lem", 1961) // comma in title

	recID, err := db.BorrowBook(b1, &BorrowRecord{BorrowerName: "Alice", BorrowDate: time.Now(), DueDate: time.Now().Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := db.ReturnBook(recID); err != nil {
		t.Fatalf("return: %v", err)
	}
	if _, err := db.BorrowBook(b2, &BorrowRecord{BorrowerName: "Bob", BorrowDate: time.Now(), DueDate: time.Now().Add(24 * time.Hour)}); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	booksPath, borrowsPath, err := db.ExportCSV(filepath.Join(t.TempDir(), "LibraryData.csv"))
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	// Re-importing the catalog creates nothing and reports nothing.
	summary, err := db.ImportCSV(context.Background(), booksPath)
	if err != nil {
		t.Fatalf("re-import books: %v", err)
	}
	assertCounts(t, summary, 0, 0, 0)
	if len(summary.Errors) != 0 {
		t.Fatalf("catalog round-trip should be clean, got %v", summary.Errors)
	}

	// Re-importing the borrow history creates no new entities either: closed
	// loans have no active record to match and active loans hit the
	// availability check.
	summary, err = db.ImportCSV(context.Background(), borrowsPath)
	if err != nil {
		t.Fatalf("re-import borrows: %v", err)
	}
	assertCounts(t, summary, 0, 0, 0)

	books, _ := db.GetAllBooks()
	if len(books) != 3 {
		t.Fatalf("round-trip grew the catalog: %d books", len(books))
	}
	records, _ := db.GetAllBorrowRecords()
	if len(records) != 2 {
		t.Fatalf("round-trip grew the borrow history: %d records", len(records))
	}
}
