package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// exportDateLayout matches the first layout the importer accepts, so exported
// files round-trip through ImportCSV without creating duplicates.
const exportDateLayout = "2006-01-02"

// ExportCSV writes the current library state as two CSV files next to
// basePath: <name>_Books<ext> with the catalog and <name>_Borrows<ext> with
// the full borrow history. It returns the two paths written.
func (d *Database) ExportCSV(basePath string) (booksPath, borrowsPath string, err error) {
	dir := filepath.Dir(basePath)
	ext := filepath.Ext(basePath)
	name := strings.TrimSuffix(filepath.Base(basePath), ext)
	if ext == "" {
		ext = ".csv"
	}
	booksPath = filepath.Join(dir, name+"_Books"+ext)
	borrowsPath = filepath.Join(dir, name+"_Borrows"+ext)

	books, err := d.GetAllBooks()
	if err != nil {
		return "", "", fmt.Errorf("load books: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("Title,Author,Year\n")
	for _, b := range books {
		fmt.Fprintf(&sb, "%q,%q,%d\n", b.Title, b.Author, b.Year)
	}
	if err := os.WriteFile(booksPath, []byte(sb.String()), 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", booksPath, err)
	}

	records, err := d.GetAllBorrowRecords()
	if err != nil {
		return "", "", fmt.Errorf("load borrow records: %w", err)
	}
	sb.Reset()
	sb.WriteString("BookTitle,BorrowerName,Email,Phone,BorrowDate,DueDate,ReturnDate,IsReturned,Notes\n")
	for _, r := range records {
		returned := "No"
		returnDate := ""
		if r.IsReturned {
			returned = "Yes"
		}
		if r.ReturnDate != nil {
			returnDate = r.ReturnDate.Format(exportDateLayout)
		}
		fmt.Fprintf(&sb, "%q,%q,%q,%q,%q,%q,%q,%q,%q\n",
			r.Book.Title, r.BorrowerName, r.BorrowerEmail, r.BorrowerPhone,
			r.BorrowDate.Format(exportDateLayout), r.DueDate.Format(exportDateLayout),
			returnDate, returned, r.Notes)
	}
	if err := os.WriteFile(borrowsPath, []byte(sb.String()), 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", borrowsPath, err)
	}

	return booksPath, borrowsPath, nil
}
