package endpoints

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/home"
	"github.com/jackzampolin/rentshelf/internal/ingest"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/pdfdoc"
	"github.com/jackzampolin/rentshelf/internal/reader"
	"github.com/jackzampolin/rentshelf/internal/svcctx"
	"github.com/jackzampolin/rentshelf/internal/testutil"
)

var mobyDick = testutil.MinimalPDF(612, 792, "Call me Ishmael", "Some years ago")

type testEnv struct {
	db     *testutil.MemDefra
	client *api.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, url := testutil.NewMemDefra(t)
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := defra.NewClient(url)
	docs := pdfdoc.NewStore(h)
	t.Cleanup(func() { docs.Close() })

	services := &svcctx.Services{
		DefraClient: client,
		Library:     library.New(library.Config{Client: client, Logger: logger}),
		Documents:   docs,
		Logger:      logger,
		Home:        h,
	}

	registry := api.NewRegistry()
	for _, ep := range All(Config{}) {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	}))
	t.Cleanup(srv.Close)

	return &testEnv{db: db, client: api.NewClient(srv.URL).WithUser("ana")}
}

// upload adds mobyDick to the catalog and returns its ID.
func (e *testEnv) upload(t *testing.T) string {
	t.Helper()
	var result ingest.Result
	err := e.client.Upload(context.Background(), "/api/books", "file", "moby-dick.pdf",
		bytes.NewReader(mobyDick), map[string]string{"author": "Melville"}, &result)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	return result.BookID
}

func (e *testEnv) rent(t *testing.T, bookID string) {
	t.Helper()
	var rental library.Rental
	if err := e.client.Post(context.Background(), "/api/rentals", RentRequest{BookID: bookID}, &rental); err != nil {
		t.Fatalf("rent error = %v", err)
	}
	if !rental.Active || rental.User != "ana" {
		t.Fatalf("rental = %+v, want active rental for ana", rental)
	}
}

func statusOf(err error) int {
	var se *api.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var resp HealthResponse
	if err := env.client.Get(context.Background(), "/health", &resp); err != nil {
		t.Fatalf("Get(/health) error = %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestBooks_UploadListGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bookID := env.upload(t)

	var list ListBooksResponse
	if err := env.client.Get(ctx, "/api/books", &list); err != nil {
		t.Fatalf("list error = %v", err)
	}
	if len(list.Books) != 1 || list.Books[0].ID != bookID {
		t.Fatalf("books = %+v, want just %s", list.Books, bookID)
	}

	var book library.Book
	if err := env.client.Get(ctx, "/api/books/"+bookID, &book); err != nil {
		t.Fatalf("get error = %v", err)
	}
	if book.Title != "moby dick" || book.Author != "Melville" || book.PageCount != 2 {
		t.Errorf("book = %+v", book)
	}
	if book.FirstPage != (reader.PageSize{Width: 612, Height: 792}) {
		t.Errorf("first page = %+v, want 612x792", book.FirstPage)
	}

	err := env.client.Get(ctx, "/api/books/bae-missing", &book)
	if statusOf(err) != http.StatusNotFound {
		t.Errorf("missing book error = %v, want 404", err)
	}
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.upload(t)

	err := env.client.Upload(ctx, "/api/books", "file", "again.pdf", bytes.NewReader(mobyDick), nil, nil)
	if statusOf(err) != http.StatusConflict {
		t.Errorf("duplicate upload error = %v, want 409", err)
	}

	err = env.client.Upload(ctx, "/api/books", "file", "notes.pdf", strings.NewReader("not a pdf"), nil, nil)
	if statusOf(err) != http.StatusBadRequest {
		t.Errorf("invalid upload error = %v, want 400", err)
	}
}

func TestReading_RequiresRental(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bookID := env.upload(t)

	var layout LayoutResponse
	err := env.client.Get(ctx, "/api/books/"+bookID+"/layout", &layout)
	if statusOf(err) != http.StatusForbidden {
		t.Fatalf("layout without rental error = %v, want 403", err)
	}

	env.rent(t, bookID)

	if err := env.client.Get(ctx, "/api/books/"+bookID+"/layout", &layout); err != nil {
		t.Fatalf("layout error = %v", err)
	}
	if layout.ReadOnly || layout.Layout == nil || layout.PageCount != 2 {
		t.Errorf("layout = %+v, want 2 writable pages", layout)
	}

	var text PageTextResponse
	if err := env.client.Get(ctx, "/api/books/"+bookID+"/pages/1/text", &text); err != nil {
		t.Fatalf("text error = %v", err)
	}
	if !strings.Contains(text.Text, "Ishmael") {
		t.Errorf("page 1 text = %q, want it to contain Ishmael", text.Text)
	}

	tests := []struct {
		page string
		want int
	}{
		{"3", http.StatusNotFound},
		{"0", http.StatusBadRequest},
		{"one", http.StatusBadRequest},
	}
	for _, tt := range tests {
		err := env.client.Get(ctx, "/api/books/"+bookID+"/pages/"+tt.page+"/text", &text)
		if statusOf(err) != tt.want {
			t.Errorf("page %s error = %v, want %d", tt.page, err, tt.want)
		}
	}

	var buf bytes.Buffer
	n, err := env.client.Download(ctx, "/api/books/"+bookID+"/document", &buf)
	if err != nil {
		t.Fatalf("download error = %v", err)
	}
	if n != int64(len(mobyDick)) || !bytes.Equal(buf.Bytes(), mobyDick) {
		t.Errorf("downloaded %d bytes, want the uploaded %d", n, len(mobyDick))
	}
}

func TestUserHeader(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bookID := env.upload(t)
	env.rent(t, bookID)

	var access library.Access
	err := env.client.WithUser("bob").Get(ctx, "/api/books/"+bookID+"/access", &access)
	if statusOf(err) != http.StatusForbidden {
		t.Errorf("other user's access error = %v, want 403", err)
	}

	err = env.client.WithUser("bad user!").Get(ctx, "/api/books/"+bookID+"/access", &access)
	if statusOf(err) != http.StatusBadRequest {
		t.Errorf("invalid user error = %v, want 400", err)
	}

	if err := env.client.Get(ctx, "/api/books/"+bookID+"/access", &access); err != nil {
		t.Fatalf("access error = %v", err)
	}
	if access.User != "ana" || !access.Active || access.ReadOnly {
		t.Errorf("access = %+v, want active writable access for ana", access)
	}
}

func TestRent_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bookID := env.upload(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing book", map[string]any{"days": 3}, http.StatusBadRequest},
		{"too long", RentRequest{BookID: bookID, Days: 400}, http.StatusBadRequest},
		{"unknown book", RentRequest{BookID: "bae-missing"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.client.Post(ctx, "/api/rentals", tt.body, nil)
			if statusOf(err) != tt.want {
				t.Errorf("error = %v, want %d", err, tt.want)
			}
		})
	}
}

func TestPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bookID := env.upload(t)
	path := "/api/books/" + bookID + "/position"

	err := env.client.Put(ctx, path, reader.Position{Page: 1}, nil)
	if statusOf(err) != http.StatusForbidden {
		t.Fatalf("save without rental error = %v, want 403", err)
	}

	env.rent(t, bookID)

	var resp PositionResponse
	if err := env.client.Get(ctx, path, &resp); err != nil {
		t.Fatalf("get error = %v", err)
	}
	if resp.Position != nil {
		t.Errorf("position = %+v, want none", resp.Position)
	}

	want := reader.Position{Page: 2, ScrollOffset: 120.5}
	if err := env.client.Put(ctx, path, want, nil); err != nil {
		t.Fatalf("save error = %v", err)
	}
	if err := env.client.Get(ctx, path, &resp); err != nil {
		t.Fatalf("get error = %v", err)
	}
	if resp.Position == nil || *resp.Position != want {
		t.Errorf("position = %+v, want %+v", resp.Position, want)
	}

	for _, body := range []any{
		map[string]any{"page": 0, "scroll_offset": 0},
		map[string]any{"page": 1, "scroll_offset": -4},
		map[string]any{"page": 1},
	} {
		if err := env.client.Put(ctx, path, body, nil); statusOf(err) != http.StatusBadRequest {
			t.Errorf("save %v error = %v, want 400", body, err)
		}
	}
}

func TestAnnotations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bookID := env.upload(t)
	env.rent(t, bookID)
	quotes := "/api/books/" + bookID + "/quotes"
	bookmarks := "/api/books/" + bookID + "/bookmarks"

	var entry library.Entry
	quote := reader.Annotation{Page: 1, Text: "Call me Ishmael", Selection: &reader.SelectionRange{Start: 0, End: 15}}
	if err := env.client.Post(ctx, quotes, quote, &entry); err != nil {
		t.Fatalf("create quote error = %v", err)
	}
	if entry.Index != 0 || entry.Text != "Call me Ishmael" || entry.Selection == nil || entry.Selection.End != 15 {
		t.Errorf("entry = %+v", entry)
	}
	if err := env.client.Post(ctx, bookmarks, reader.Annotation{Page: 2, Text: "Some years ago"}, &entry); err != nil {
		t.Fatalf("create bookmark error = %v", err)
	}

	var list AnnotationsResponse
	if err := env.client.Get(ctx, bookmarks, &list); err != nil {
		t.Fatalf("list bookmarks error = %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Page != 2 {
		t.Errorf("bookmarks = %+v, want one on page 2", list.Items)
	}

	if err := env.client.Post(ctx, bookmarks, reader.Annotation{Page: 1, Text: "Loomings"}, nil); err != nil {
		t.Fatalf("create second bookmark error = %v", err)
	}
	if err := env.client.Get(ctx, bookmarks+"?offset=1&limit=1", &list); err != nil {
		t.Fatalf("list bookmark page error = %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Index != 1 || list.Items[0].Text != "Loomings" {
		t.Errorf("bookmark page = %+v, want the second bookmark at index 1", list.Items)
	}
	if err := env.client.Get(ctx, bookmarks+"?limit=ten", nil); statusOf(err) != http.StatusBadRequest {
		t.Errorf("list with bad limit error = %v, want 400", err)
	}

	invalid := []reader.Annotation{
		{Page: 1, Text: ""},
		{Page: 0, Text: "x"},
		{Page: 9, Text: "x"},
	}
	for _, a := range invalid {
		if err := env.client.Post(ctx, quotes, a, nil); statusOf(err) != http.StatusBadRequest {
			t.Errorf("create %+v error = %v, want 400", a, err)
		}
	}

	if err := env.client.Delete(ctx, quotes+"/5"); statusOf(err) != http.StatusNotFound {
		t.Errorf("delete out of range error = %v, want 404", err)
	}
	if err := env.client.Delete(ctx, quotes+"/first"); statusOf(err) != http.StatusBadRequest {
		t.Errorf("delete bad index error = %v, want 400", err)
	}
	if err := env.client.Delete(ctx, quotes+"/0"); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if err := env.client.Get(ctx, quotes, &list); err != nil {
		t.Fatalf("list quotes error = %v", err)
	}
	if len(list.Items) != 0 {
		t.Errorf("quotes = %+v, want none", list.Items)
	}
}

func TestAnnotations_ReadOnlyAfterReturn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bookID := env.upload(t)
	env.rent(t, bookID)
	quotes := "/api/books/" + bookID + "/quotes"

	if err := env.client.Post(ctx, quotes, reader.Annotation{Page: 1, Text: "Ishmael"}, nil); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if err := env.client.Delete(ctx, "/api/books/"+bookID+"/rental"); err != nil {
		t.Fatalf("return error = %v", err)
	}

	var list AnnotationsResponse
	if err := env.client.Get(ctx, quotes, &list); err != nil {
		t.Fatalf("list after return error = %v", err)
	}
	if len(list.Items) != 1 {
		t.Errorf("quotes = %+v, want the saved one", list.Items)
	}

	var layout LayoutResponse
	if err := env.client.Get(ctx, "/api/books/"+bookID+"/layout", &layout); err != nil {
		t.Fatalf("layout after return error = %v", err)
	}
	if !layout.ReadOnly {
		t.Error("layout.ReadOnly = false after return")
	}

	if err := env.client.Post(ctx, quotes, reader.Annotation{Page: 1, Text: "more"}, nil); statusOf(err) != http.StatusForbidden {
		t.Errorf("create after return error = %v, want 403", err)
	}
	if err := env.client.Delete(ctx, quotes+"/0"); statusOf(err) != http.StatusForbidden {
		t.Errorf("delete after return error = %v, want 403", err)
	}
}
