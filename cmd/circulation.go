package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"library-tracking/library"
)

var (
	borrowName  string
	borrowEmail string
	borrowPhone string
	borrowDue   string
	borrowNotes string
)

var borrowCmd = &cobra.Command{
	Use:   "borrow <book-id>",
	Short: "Lend a book to a borrower",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid book id %q", args[0])
		}

		var due *time.Time
		if borrowDue != "" {
			t, err := time.Parse("2006-01-02", borrowDue)
			if err != nil {
				return fmt.Errorf("invalid due date %q, want YYYY-MM-DD", borrowDue)
			}
			due = &t
		}

		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		recID, err := mgr.BorrowBook(id, borrowName, borrowEmail, borrowPhone, due, borrowNotes)
		if err != nil {
			return err
		}
		fmt.Printf("Borrow record %d created for book %d (%s)\n", recID, id, borrowName)
		return nil
	},
}

var returnCmd = &cobra.Command{
	Use:   "return <record-id>",
	Short: "Mark a borrow record as returned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record id %q", args[0])
		}
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.ReturnBook(id); err != nil {
			return err
		}
		fmt.Printf("Record %d returned\n", id)
		return nil
	},
}

var borrowsAll bool

var borrowsCmd = &cobra.Command{
	Use:   "borrows",
	Short: "List borrow records (active by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		var records []*library.BorrowRecord
		if borrowsAll {
			records, err = mgr.GetAllBorrowRecords()
		} else {
			records, err = mgr.GetActiveBorrows()
		}
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No borrow records found.")
			return nil
		}

		fmt.Printf("%-5s %-35s %-20s %-12s %-12s %s\n", "ID", "Book", "Borrower", "Borrowed", "Due", "Returned")
		fmt.Println(strings.Repeat("-", 95))
		for _, r := range records {
			returned := "no"
			if r.IsReturned && r.ReturnDate != nil {
				returned = r.ReturnDate.Format("2006-01-02")
			} else if r.IsReturned {
				returned = "yes"
			}
			fmt.Printf("%-5d %-35s %-20s %-12s %-12s %s\n",
				r.ID, truncate(r.Book.Title, 35), truncate(r.BorrowerName, 20),
				r.BorrowDate.Format("2006-01-02"), r.DueDate.Format("2006-01-02"), returned)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show inventory and circulation statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		s, err := mgr.GetStatistics()
		if err != nil {
			return err
		}
		fmt.Printf("Total books:     %d\n", s.TotalBooks)
		fmt.Printf("Available books: %d\n", s.AvailableBooks)
		fmt.Printf("Borrowed books:  %d\n", s.BorrowedBooks)
		fmt.Printf("Total borrows:   %d\n", s.TotalBorrows)
		fmt.Printf("Active borrows:  %d\n", s.ActiveBorrows)
		fmt.Printf("Overdue borrows: %d\n", s.OverdueBorrows)
		return nil
	},
}

func init() {
	borrowCmd.Flags().StringVar(&borrowName, "name", "", "Borrower name (required)")
	borrowCmd.Flags().StringVar(&borrowEmail, "email", "", "Borrower email")
	borrowCmd.Flags().StringVar(&borrowPhone, "phone", "", "Borrower phone")
	borrowCmd.Flags().StringVar(&borrowDue, "due", "", "Due date (YYYY-MM-DD, default loan period from now)")
	borrowCmd.Flags().StringVar(&borrowNotes, "notes", "", "Notes")
	borrowCmd.MarkFlagRequired("name")

	borrowsCmd.Flags().BoolVar(&borrowsAll, "all", false, "Include returned records")
}
