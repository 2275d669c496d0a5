package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

// PositionResponse carries the last reading position, null when none.
type PositionResponse struct {
	Position *reader.Position `json:"position"`
}

// GetPositionEndpoint handles GET /api/books/{book_id}/position.
type GetPositionEndpoint struct{}

func (e *GetPositionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/position", e.handler
}

func (e *GetPositionEndpoint) RequiresInit() bool { return true }

func (e *GetPositionEndpoint) Group() string { return "position" }

func (e *GetPositionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	bookID, access, ok := openBook(w, r)
	if !ok {
		return
	}
	pos, err := lib.Position(r.Context(), access.User, bookID)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PositionResponse{Position: pos})
}

func (e *GetPositionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <book-id>",
		Short: "Show your last reading position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PositionResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/position", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SavePositionEndpoint handles PUT /api/books/{book_id}/position.
type SavePositionEndpoint struct{}

func (e *SavePositionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/books/{book_id}/position", e.handler
}

func (e *SavePositionEndpoint) RequiresInit() bool { return true }

func (e *SavePositionEndpoint) Group() string { return "position" }

// handler godoc
//
//	@Summary		Save reading position
//	@Description	Requires an active rental. Writes are coalesced per user and book.
//	@Tags			position
//	@Accept			json
//	@Param			book_id	path	string			true	"Book ID"
//	@Param			request	body	reader.Position	true	"Position"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Router			/api/books/{book_id}/position [put]
func (e *SavePositionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	user, err := userFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var pos reader.Position
	if err := decodeBody(r, positionSchema, &pos); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookID := r.PathValue("book_id")
	if err := lib.RequireWritable(r.Context(), user, bookID); err != nil {
		writeLibraryError(w, err)
		return
	}
	if err := lib.SavePosition(r.Context(), user, bookID, pos); err != nil {
		writeLibraryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *SavePositionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <book-id> <page> [scroll-offset]",
		Short: "Save a reading position",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid page %q", args[1])
			}
			pos := reader.Position{Page: page}
			if len(args) == 3 {
				if pos.ScrollOffset, err = strconv.ParseFloat(args[2], 64); err != nil {
					return fmt.Errorf("invalid scroll offset %q", args[2])
				}
			}
			client := api.NewClient(getServerURL())
			return client.Put(cmd.Context(), "/api/books/"+args[0]+"/position", pos, nil)
		},
	}
}
