package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import books, borrows, or returns from a CSV file",
	Long: `Import merges an externally produced CSV file into the library.

The header row decides the format: a catalog file (Title,Author,Year) adds
books, skipping ones already present; a borrow/return file
(BookTitle,BorrowerName,Email,Phone[,BorrowDate,DueDate,ReturnDate,IsReturned,Notes])
creates loans and processes returns of active loans. Rows that fail are
reported individually without stopping the import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		slog.Debug("importing csv", "file", args[0])
		summary, err := mgr.ImportCSV(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Println("Import completed!")
		fmt.Printf("Books imported: %d\n", summary.BooksImported)
		fmt.Printf("Borrow records imported: %d\n", summary.BorrowsImported)
		fmt.Printf("Returns processed: %d\n", summary.ReturnsProcessed)

		if len(summary.Errors) > 0 {
			fmt.Printf("\nErrors (%d):\n", len(summary.Errors))
			shown := summary.Errors
			if len(shown) > cfg.MaxErrorDisplay {
				shown = shown[:cfg.MaxErrorDisplay]
			}
			for _, e := range shown {
				fmt.Printf("  - %s\n", e)
			}
			if extra := len(summary.Errors) - cfg.MaxErrorDisplay; extra > 0 {
				fmt.Printf("  ... and %d more errors\n", extra)
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [base.csv]",
	Short: "Export the catalog and borrow history to CSV files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := "LibraryData.csv"
		if len(args) == 1 {
			base = args[0]
		}
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		booksPath, borrowsPath, err := mgr.ExportCSV(base)
		if err != nil {
			return err
		}
		fmt.Println("Data exported successfully!")
		fmt.Printf("Books: %s\n", booksPath)
		fmt.Printf("Borrow records: %s\n", borrowsPath)
		return nil
	},
}
