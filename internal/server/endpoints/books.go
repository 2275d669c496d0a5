package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/config"
	"github.com/jackzampolin/rentshelf/internal/ingest"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/svcctx"
)

// libraryFrom returns the catalog or writes 503.
func libraryFrom(w http.ResponseWriter, r *http.Request) (*library.Library, bool) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusServiceUnavailable, "library not initialized")
		return nil, false
	}
	return lib, true
}

// ListBooksResponse is the response for listing books.
type ListBooksResponse struct {
	Books []library.Book `json:"books"`
}

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

var _ api.Endpoint = (*ListBooksEndpoint)(nil)

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

func (e *ListBooksEndpoint) Group() string { return "books" }

// handler godoc
//
//	@Summary		List books
//	@Description	List every book in the catalog, newest first
//	@Tags			books
//	@Produce		json
//	@Success		200	{object}	ListBooksResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	books, err := lib.ListBooks(r.Context())
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListBooksResponse{Books: books})
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List books in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListBooksResponse
			if err := client.Get(cmd.Context(), "/api/books", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetBookEndpoint handles GET /api/books/{book_id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

func (e *GetBookEndpoint) Group() string { return "books" }

// handler godoc
//
//	@Summary		Get book by ID
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	library.Book
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/books/{book_id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	book, err := lib.GetBook(r.Context(), r.PathValue("book_id"))
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <book-id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var book library.Book
			if err := client.Get(cmd.Context(), "/api/books/"+args[0], &book); err != nil {
				return err
			}
			return api.Output(book)
		},
	}
}

// UploadBookEndpoint handles POST /api/books with a multipart PDF upload.
type UploadBookEndpoint struct{}

func (e *UploadBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books", e.handler
}

func (e *UploadBookEndpoint) RequiresInit() bool { return true }

func (e *UploadBookEndpoint) Group() string { return "books" }

// handler godoc
//
//	@Summary		Upload a book
//	@Description	Upload a PDF and add it to the catalog
//	@Tags			books
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"PDF file"
//	@Param			title	formData	string	false	"Book title (derived from filename if not provided)"
//	@Param			author	formData	string	false	"Book author"
//	@Success		201		{object}	ingest.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Router			/api/books [post]
func (e *UploadBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 32 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	client := svcctx.DefraClientFrom(r.Context())
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "defra client not initialized")
		return
	}
	homeDir := svcctx.HomeFrom(r.Context())
	if homeDir == nil {
		writeError(w, http.StatusServiceUnavailable, "home directory not initialized")
		return
	}

	cfg := svcctx.ConfigFrom(r.Context())
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	result, err := ingest.Ingest(r.Context(), client, homeDir, ingest.Request{
		Source:   file,
		Filename: header.Filename,
		Title:    r.FormValue("title"),
		Author:   r.FormValue("author"),
		MaxBytes: int64(cfg.Storage.MaxUploadMB) << 20,
		Logger:   svcctx.LoggerFrom(r.Context()),
	})
	var dup *ingest.DuplicateError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, result)
	case errors.As(err, &dup):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ingest.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ingest.ErrInvalidPDF):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("ingest failed: %v", err))
	}
}

func (e *UploadBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var title, author string
	cmd := &cobra.Command{
		Use:   "upload <pdf-file>",
		Short: "Add a PDF to the catalog",
		Long: `Upload a PDF file as a new book.

Title is derived from the filename if not provided.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			fields := map[string]string{}
			if title != "" {
				fields["title"] = title
			}
			if author != "" {
				fields["author"] = author
			}

			client := api.NewClient(getServerURL())
			var result ingest.Result
			if err := client.Upload(cmd.Context(), "/api/books", "file", filepath.Base(args[0]), f, fields, &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Book title (derived from filename if not provided)")
	cmd.Flags().StringVar(&author, "author", "", "Book author")
	return cmd
}
