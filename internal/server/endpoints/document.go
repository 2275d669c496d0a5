package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/pdfdoc"
	"github.com/jackzampolin/rentshelf/internal/svcctx"
)

// openBook resolves the requesting user's access to the book in the path.
// Read-only access is enough. On failure the response has been written.
func openBook(w http.ResponseWriter, r *http.Request) (bookID string, access *library.Access, ok bool) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return "", nil, false
	}
	user, err := userFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	bookID = r.PathValue("book_id")
	access, err = lib.Access(r.Context(), user, bookID)
	if err != nil {
		writeLibraryError(w, err)
		return "", nil, false
	}
	return bookID, access, true
}

func documentsFrom(w http.ResponseWriter, r *http.Request) (*pdfdoc.Store, bool) {
	docs := svcctx.DocumentsFrom(r.Context())
	if docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return nil, false
	}
	return docs, true
}

// DocumentEndpoint handles GET /api/books/{book_id}/document.
type DocumentEndpoint struct{}

func (e *DocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/document", e.handler
}

func (e *DocumentEndpoint) RequiresInit() bool { return true }

func (e *DocumentEndpoint) Group() string { return "books" }

// handler godoc
//
//	@Summary		Download a rented book
//	@Description	Stream the PDF. Requires a current or lapsed rental.
//	@Tags			books
//	@Produce		application/pdf
//	@Param			book_id	path	string	true	"Book ID"
//	@Success		200
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/books/{book_id}/document [get]
func (e *DocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID, _, ok := openBook(w, r)
	if !ok {
		return
	}
	docs, ok := documentsFrom(w, r)
	if !ok {
		return
	}

	f, err := os.Open(docs.Path(bookID))
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, bookID+".pdf", info.ModTime(), f)
}

func (e *DocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <book-id>",
		Short: "Download a rented book's PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[0] + ".pdf"
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			n, err := client.Download(cmd.Context(), "/api/books/"+args[0]+"/document", f)
			if err != nil {
				os.Remove(out)
				return err
			}
			fmt.Printf("Saved %s (%d bytes)\n", out, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default <book-id>.pdf)")
	return cmd
}

// LayoutResponse is a book's page geometry.
type LayoutResponse struct {
	BookID   string `json:"book_id"`
	ReadOnly bool   `json:"read_only"`
	*pdfdoc.Layout
}

// LayoutEndpoint handles GET /api/books/{book_id}/layout.
type LayoutEndpoint struct{}

func (e *LayoutEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/layout", e.handler
}

func (e *LayoutEndpoint) RequiresInit() bool { return true }

func (e *LayoutEndpoint) Group() string { return "books" }

// handler godoc
//
//	@Summary		Get page geometry
//	@Description	Page count and per-page sizes in PDF points
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	LayoutResponse
//	@Failure		403		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/layout [get]
func (e *LayoutEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID, access, ok := openBook(w, r)
	if !ok {
		return
	}
	docs, ok := documentsFrom(w, r)
	if !ok {
		return
	}
	layout, err := docs.Layout(bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LayoutResponse{BookID: bookID, ReadOnly: access.ReadOnly, Layout: layout})
}

func (e *LayoutEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "layout <book-id>",
		Short: "Show page count and page sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LayoutResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/layout", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PageTextResponse is the extracted text of one page.
type PageTextResponse struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// PageTextEndpoint handles GET /api/books/{book_id}/pages/{page}/text.
type PageTextEndpoint struct{}

func (e *PageTextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/pages/{page}/text", e.handler
}

func (e *PageTextEndpoint) RequiresInit() bool { return true }

func (e *PageTextEndpoint) Group() string { return "books" }

func (e *PageTextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	bookID, _, ok := openBook(w, r)
	if !ok {
		return
	}
	docs, ok := documentsFrom(w, r)
	if !ok {
		return
	}
	layout, err := docs.Layout(bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if page > layout.PageCount {
		writeError(w, http.StatusNotFound, fmt.Sprintf("page %d out of range 1..%d", page, layout.PageCount))
		return
	}

	text, err := docs.PageText(bookID, page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PageTextResponse{Page: page, Text: text})
}

func (e *PageTextEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "text <book-id> <page>",
		Short: "Print the extracted text of a page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PageTextResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/pages/"+args[1]+"/text", &resp); err != nil {
				return err
			}
			fmt.Println(resp.Text)
			return nil
		},
	}
}
