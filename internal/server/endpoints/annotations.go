package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

// segment returns the URL segment and command group for kind.
func segment(kind library.Kind) string {
	return strings.ToLower(string(kind)) + "s"
}

// AnnotationsResponse lists a user's bookmarks or quotes for one book.
type AnnotationsResponse struct {
	Items []library.Entry `json:"items"`
}

// ListAnnotationsEndpoint handles GET /api/books/{book_id}/bookmarks and
// /api/books/{book_id}/quotes.
type ListAnnotationsEndpoint struct {
	Kind library.Kind
}

func (e *ListAnnotationsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/" + segment(e.Kind), e.handler
}

func (e *ListAnnotationsEndpoint) RequiresInit() bool { return true }

func (e *ListAnnotationsEndpoint) Group() string { return segment(e.Kind) }

func (e *ListAnnotationsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	bookID, access, ok := openBook(w, r)
	if !ok {
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := lib.AnnotationPage(r.Context(), e.Kind, access.User, bookID, offset, limit)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnotationsResponse{Items: items})
}

// queryInt reads a non-negative integer query parameter. Absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func (e *ListAnnotationsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list <book-id>",
		Short: "List your " + segment(e.Kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/books/" + args[0] + "/" + segment(e.Kind)
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			client := api.NewClient(getServerURL())
			var resp AnnotationsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many entries")
	cmd.Flags().IntVar(&limit, "limit", 0, "Return at most this many entries (0 for all)")
	return cmd
}

// CreateAnnotationEndpoint handles POST /api/books/{book_id}/bookmarks and
// /api/books/{book_id}/quotes.
type CreateAnnotationEndpoint struct {
	Kind library.Kind
}

func (e *CreateAnnotationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/" + segment(e.Kind), e.handler
}

func (e *CreateAnnotationEndpoint) RequiresInit() bool { return true }

func (e *CreateAnnotationEndpoint) Group() string { return segment(e.Kind) }

// handler godoc
//
//	@Summary		Save a bookmark or quote
//	@Description	Appends to the caller's list. Requires an active rental.
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			book_id	path		string				true	"Book ID"
//	@Param			request	body		reader.Annotation	true	"Annotation"
//	@Success		201		{object}	library.Entry
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/quotes [post]
func (e *CreateAnnotationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	user, err := userFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var a reader.Annotation
	if err := decodeBody(r, annotationSchema, &a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := lib.AddAnnotation(r.Context(), e.Kind, user, r.PathValue("book_id"), a)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (e *CreateAnnotationEndpoint) Command(getServerURL func() string) *cobra.Command {
	var start, end int
	cmd := &cobra.Command{
		Use:   "add <book-id> <page> <text...>",
		Short: "Save a " + strings.ToLower(string(e.Kind)),
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid page %q", args[1])
			}
			a := reader.Annotation{Page: page, Text: strings.Join(args[2:], " ")}
			if end > start {
				a.Selection = &reader.SelectionRange{Start: start, End: end}
			}
			client := api.NewClient(getServerURL())
			var entry library.Entry
			if err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/"+segment(e.Kind), a, &entry); err != nil {
				return err
			}
			return api.Output(entry)
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "Selection start offset within the page text")
	cmd.Flags().IntVar(&end, "end", 0, "Selection end offset within the page text")
	return cmd
}

// DeleteAnnotationEndpoint handles DELETE
// /api/books/{book_id}/bookmarks/{index} and /api/books/{book_id}/quotes/{index}.
type DeleteAnnotationEndpoint struct {
	Kind library.Kind
}

func (e *DeleteAnnotationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book_id}/" + segment(e.Kind) + "/{index}", e.handler
}

func (e *DeleteAnnotationEndpoint) RequiresInit() bool { return true }

func (e *DeleteAnnotationEndpoint) Group() string { return segment(e.Kind) }

func (e *DeleteAnnotationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	user, err := userFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := lib.DeleteAnnotation(r.Context(), e.Kind, user, r.PathValue("book_id"), index); err != nil {
		writeLibraryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteAnnotationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <book-id> <index>",
		Short: "Delete a " + strings.ToLower(string(e.Kind)) + " by its list index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Delete(cmd.Context(), "/api/books/"+args[0]+"/"+segment(e.Kind)+"/"+args[1])
		},
	}
}
