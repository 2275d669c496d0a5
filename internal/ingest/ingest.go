// Package ingest adds uploaded PDFs to the rental catalog.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/home"
	"github.com/jackzampolin/rentshelf/internal/pdfdoc"
)

var (
	// ErrTooLarge is returned when the upload exceeds Request.MaxBytes.
	ErrTooLarge = errors.New("pdf exceeds upload limit")

	// ErrInvalidPDF is returned when the upload cannot be read as a PDF.
	ErrInvalidPDF = errors.New("invalid pdf")
)

// DuplicateError is returned when an identical PDF is already in the catalog.
type DuplicateError struct {
	BookID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("pdf already in catalog as %s", e.BookID)
}

// Request contains the parameters for ingesting one PDF.
type Request struct {
	Source   io.Reader    // PDF bytes
	Filename string       // Original file name, used to derive a title
	Title    string       // Book title (optional, derived from filename if empty)
	Author   string       // Book author (optional)
	MaxBytes int64        // Upload limit; 0 means unlimited
	Logger   *slog.Logger // Optional logger for progress updates
}

// Result contains the result of a successful ingest operation.
type Result struct {
	BookID    string `json:"book_id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	PageCount int    `json:"page_count"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Ingest stores the PDF under the home directory and creates a Book record
// in DefraDB.
func Ingest(ctx context.Context, client *defra.Client, homeDir *home.Dir, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}
	if req.Source == nil {
		return nil, fmt.Errorf("no PDF provided")
	}

	// Stage under a temporary ID until DefraDB assigns the document ID.
	stageID := "staging-" + uuid.New().String()
	if err := homeDir.EnsureBookDir(stageID); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	stageDir := homeDir.BookDir(stageID)
	cleanup := func() { os.RemoveAll(stageDir) }

	size, sum, err := stage(homeDir.BookPDFPath(stageID), req.Source, req.MaxBytes)
	if err != nil {
		cleanup()
		return nil, err
	}
	log.Debug("staged upload", "file", req.Filename, "bytes", size)

	layout, err := pdfdoc.InspectFile(homeDir.BookPDFPath(stageID))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	if existing, err := findBySHA(ctx, client, sum); err != nil {
		cleanup()
		return nil, err
	} else if existing != "" {
		cleanup()
		return nil, &DuplicateError{BookID: existing}
	}

	title := req.Title
	if title == "" {
		title = deriveTitle(req.Filename)
	}

	first := layout.FirstPage()
	input := map[string]any{
		"title":             title,
		"page_count":        layout.PageCount,
		"first_page_width":  first.Width,
		"first_page_height": first.Height,
		"size_bytes":        size,
		"sha256":            sum,
		"created_at":        time.Now().UTC().Format(time.RFC3339),
	}
	if req.Author != "" {
		input["author"] = req.Author
	}

	docID, err := client.Create(ctx, "Book", input)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create Book record: %w", err)
	}

	// Rename directory from staging ID to docID
	if err := os.Rename(stageDir, homeDir.BookDir(docID)); err != nil {
		return nil, fmt.Errorf("failed to rename directory: %w", err)
	}

	log.Info("ingest complete", "book_id", docID, "pages", layout.PageCount, "bytes", size)

	return &Result{
		BookID:    docID,
		Title:     title,
		Author:    req.Author,
		PageCount: layout.PageCount,
		SizeBytes: size,
		SHA256:    sum,
	}, nil
}

// stage copies src to path, enforcing maxBytes, and returns the size and
// hex SHA-256 of what was written.
func stage(path string, src io.Reader, maxBytes int64) (int64, string, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create staged file: %w", err)
	}
	defer f.Close()

	if maxBytes > 0 {
		src = io.LimitReader(src, maxBytes+1)
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if err != nil {
		return 0, "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		return 0, "", ErrTooLarge
	}
	if n == 0 {
		return 0, "", fmt.Errorf("%w: empty upload", ErrInvalidPDF)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func findBySHA(ctx context.Context, client *defra.Client, sum string) (string, error) {
	resp, err := defra.SafeQuery(ctx, client, "Book", "sha256", sum, "_docID")
	if err != nil {
		return "", fmt.Errorf("failed to look up existing book: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return "", fmt.Errorf("failed to look up existing book: %s", errMsg)
	}
	for _, doc := range resp.Docs("Book") {
		if id, ok := doc["_docID"].(string); ok {
			return id, nil
		}
	}
	return "", nil
}

// deriveTitle extracts a title from a PDF filename.
// e.g., "moby-dick.pdf" -> "moby dick"
// e.g., "war_and_peace-2.pdf" -> "war and peace"
func deriveTitle(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	// Remove numeric suffix like "-1", "-2", etc.
	re := regexp.MustCompile(`-\d+$`)
	name = re.ReplaceAllString(name, "")

	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || name == "." {
		return "Untitled"
	}
	return name
}
