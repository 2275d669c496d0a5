package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/home"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/localstore"
	"github.com/jackzampolin/rentshelf/internal/tui"
)

var readFile string

var readCmd = &cobra.Command{
	Use:   "read [book-id]",
	Short: "Read a rented book in the terminal",
	Long: `Open a book in the terminal reader.

With a book ID the reader streams pages from the server and saves your place,
bookmarks, and quotes there. A rental that has ended still opens, read-only.
With --file it reads a local PDF and keeps everything in ~/.rentshelf/local.db.

Keys: j/k scroll, n/p next/previous page, +/- zoom, v select, b bookmark,
q quote, y copy, B list bookmarks, ? help, ctrl+c quit.

Examples:
  rentshelf read bae-7f3c...                # Read a rented book
  rentshelf read --file ~/books/dune.pdf    # Read a local PDF offline`,
	Args: func(cmd *cobra.Command, args []string) error {
		if readFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		settings, err := cfg.ReaderSettings()
		if err != nil {
			return err
		}

		// The terminal belongs to the reader; logs go to a file.
		logFile, err := os.OpenFile(h.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		logger := newLogger(logFile)

		var opts tui.Options
		if readFile != "" {
			local, store, err := openLocalBook(h, readFile)
			if err != nil {
				return err
			}
			defer store.Close()
			defer local.Close()
			opts = tui.Options{
				Backend: local,
				Ref:     readFile,
				Title:   filepath.Base(readFile),
				Open:    cfg.OpenOptions(false),
			}
		} else {
			bookID := args[0]
			client := api.NewClient(getServerURL())
			remote := tui.NewRemote(client)

			access, err := remote.Access(cmd.Context(), bookID)
			if err != nil {
				var se *api.StatusError
				if errors.As(err, &se) && se.Code == http.StatusNotFound {
					return fmt.Errorf("no rental of %s for %s (rent it with 'rentshelf api rentals create %s')", bookID, userName, bookID)
				}
				return err
			}
			title := bookID
			var book library.Book
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(bookID), &book); err == nil && book.Title != "" {
				title = book.Title
			}
			opts = tui.Options{
				Backend: remote,
				Ref:     bookID,
				Title:   title,
				Open:    cfg.OpenOptions(access.ReadOnly),
			}
		}
		opts.Config = settings
		opts.Logger = logger.With("ref", opts.Ref)

		m, err := tui.New(opts)
		if err != nil {
			return err
		}
		defer m.Close()

		logger.Info("reader opened", "ref", opts.Ref, "read_only", opts.Open.ReadOnly)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		logger.Info("reader closed", "ref", opts.Ref)
		return nil
	},
}

// openLocalBook opens the offline store and a text layer for path.
func openLocalBook(h *home.Dir, path string) (*tui.Local, *localstore.Store, error) {
	store, err := localstore.Open(h.LocalDBPath())
	if err != nil {
		return nil, nil, err
	}
	local, err := tui.OpenLocal(path, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return local, store, nil
}

func init() {
	readCmd.Flags().StringVar(&readFile, "file", "", "Read a local PDF instead of a rented book")

	rootCmd.AddCommand(readCmd)
}
