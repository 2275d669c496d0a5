package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/library"
)

// RentRequest is the request body for renting a book.
type RentRequest struct {
	BookID string `json:"book_id"`
	Days   int    `json:"days,omitempty"`
}

// RentEndpoint handles POST /api/rentals.
type RentEndpoint struct{}

func (e *RentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/rentals", e.handler
}

func (e *RentEndpoint) RequiresInit() bool { return true }

func (e *RentEndpoint) Group() string { return "rentals" }

// handler godoc
//
//	@Summary		Rent a book
//	@Description	Start a rental, or extend the caller's current one
//	@Tags			rentals
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RentRequest	true	"Rental"
//	@Success		201		{object}	library.Rental
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/rentals [post]
func (e *RentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	user, err := userFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req RentRequest
	if err := decodeBody(r, rentalSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rental, err := lib.Rent(r.Context(), user, req.BookID, req.Days)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rental)
}

func (e *RentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "create <book-id>",
		Short: "Rent a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var rental library.Rental
			if err := client.Post(cmd.Context(), "/api/rentals", RentRequest{BookID: args[0], Days: days}, &rental); err != nil {
				return err
			}
			return api.Output(rental)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Rental length in days (server default when 0)")
	return cmd
}

// ReturnEndpoint handles DELETE /api/books/{book_id}/rental.
type ReturnEndpoint struct{}

func (e *ReturnEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book_id}/rental", e.handler
}

func (e *ReturnEndpoint) RequiresInit() bool { return true }

func (e *ReturnEndpoint) Group() string { return "rentals" }

func (e *ReturnEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib, ok := libraryFrom(w, r)
	if !ok {
		return
	}
	user, err := userFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := lib.Return(r.Context(), user, r.PathValue("book_id")); err != nil {
		writeLibraryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *ReturnEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "return <book-id>",
		Short: "End a rental early",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/books/"+args[0]+"/rental"); err != nil {
				return err
			}
			fmt.Println("Returned", args[0])
			return nil
		},
	}
}

// AccessEndpoint handles GET /api/books/{book_id}/access.
type AccessEndpoint struct{}

func (e *AccessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/access", e.handler
}

func (e *AccessEndpoint) RequiresInit() bool { return true }

func (e *AccessEndpoint) Group() string { return "rentals" }

// handler godoc
//
//	@Summary		Check access to a book
//	@Tags			rentals
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	library.Access
//	@Failure		403		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/access [get]
func (e *AccessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	_, access, ok := openBook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, access)
}

func (e *AccessEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "access <book-id>",
		Short: "Show whether you can read or annotate a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var access library.Access
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/access", &access); err != nil {
				return err
			}
			return api.Output(access)
		},
	}
}
