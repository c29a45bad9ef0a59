package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-tracking/library"
)

var addCmd = &cobra.Command{
	Use:   "add <title> <author> <year>",
	Short: "Add a book to the inventory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid year %q", args[2])
		}
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		id, err := mgr.AddBook(args[0], args[1], year)
		if err != nil {
			return err
		}
		fmt.Printf("Added book %d: %s by %s (%d)\n", id, args[0], args[1], year)
		return nil
	},
}

var listAvailableOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List books in the inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		var books []*library.Book
		if listAvailableOnly {
			books, err = mgr.GetAvailableBooks()
		} else {
			books, err = mgr.GetAllBooks()
		}
		if err != nil {
			return err
		}
		printBooks(books)
		return nil
	},
}

var searchSuggest bool

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search books by title or author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if searchSuggest {
			recs, err := mgr.SearchRecommendations(args[0])
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Println(r)
			}
			return nil
		}

		books, err := mgr.SearchBooks(args[0])
		if err != nil {
			return err
		}
		printBooks(books)
		return nil
	},
}

var (
	updateTitle  string
	updateAuthor string
	updateYear   int
)

var updateCmd = &cobra.Command{
	Use:   "update <book-id>",
	Short: "Update a book's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid book id %q", args[0])
		}
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		book, err := mgr.GetBook(id)
		if err != nil {
			return fmt.Errorf("book %d not found", id)
		}
		if cmd.Flags().Changed("title") {
			book.Title = updateTitle
		}
		if cmd.Flags().Changed("author") {
			book.Author = updateAuthor
		}
		if cmd.Flags().Changed("year") {
			book.Year = updateYear
		}
		if err := mgr.UpdateBook(book); err != nil {
			return err
		}
		fmt.Printf("Updated book %d\n", id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <book-id>",
	Short: "Delete a book and its borrow history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid book id %q", args[0])
		}
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.DeleteBook(id); err != nil {
			return err
		}
		fmt.Printf("Deleted book %d\n", id)
		return nil
	},
}

func printBooks(books []*library.Book) {
	if len(books) == 0 {
		fmt.Println("No books found.")
		return
	}
	fmt.Printf("%-5s %-40s %-25s %-6s %s\n", "ID", "Title", "Author", "Year", "Available")
	fmt.Println(strings.Repeat("-", 85))
	for _, b := range books {
		avail := "yes"
		if !b.Available {
			avail = "no"
		}
		fmt.Printf("%-5d %-40s %-25s %-6d %s\n", b.ID, truncate(b.Title, 40), truncate(b.Author, 25), b.Year, avail)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func init() {
	listCmd.Flags().BoolVar(&listAvailableOnly, "available", false, "Only show books not currently borrowed")
	searchCmd.Flags().BoolVar(&searchSuggest, "suggest", false, "Print matching title/author suggestions instead of full rows")
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVar(&updateAuthor, "author", "", "New author")
	updateCmd.Flags().IntVar(&updateYear, "year", 0, "New publication year")
}
