package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackzampolin/rentshelf/internal/defra"
)

// Rental grants one user access to one book until ExpiresAt.
type Rental struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	BookID    string    `json:"book_id"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// Access is what a user may do with a book right now. A lapsed or returned
// rental still opens the book, read-only.
type Access struct {
	BookID    string    `json:"book_id"`
	User      string    `json:"user"`
	Active    bool      `json:"active"`
	ReadOnly  bool      `json:"read_only"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Rent starts a rental of days (the configured default when zero). Renting a
// book that is already on loan extends the current rental instead.
func (l *Library) Rent(ctx context.Context, user, bookID string, days int) (*Rental, error) {
	if days == 0 {
		days = l.defaultDays()
	}
	if days < 0 || days > MaxRentalDays {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidRental, days)
	}
	if _, err := l.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	expires := now.AddDate(0, 0, days)

	current, err := l.latestRental(ctx, user, bookID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Active && current.ExpiresAt.After(now) {
		if expires.After(current.ExpiresAt) {
			if err := l.client.Update(ctx, collRental, current.ID, map[string]any{
				"expires_at": formatTime(expires),
			}); err != nil {
				return nil, fmt.Errorf("failed to extend rental: %w", err)
			}
			current.ExpiresAt = expires
			l.logger.Info("rental extended", "user", user, "book_id", bookID, "expires_at", expires)
		}
		return current, nil
	}

	docID, err := l.client.Create(ctx, collRental, map[string]any{
		"user":       user,
		"book_id":    bookID,
		"started_at": formatTime(now),
		"expires_at": formatTime(expires),
		"active":     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rental: %w", err)
	}
	l.logger.Info("book rented", "user", user, "book_id", bookID, "expires_at", expires)

	return &Rental{
		ID:        docID,
		User:      user,
		BookID:    bookID,
		StartedAt: now,
		ExpiresAt: expires,
		Active:    true,
	}, nil
}

// Return ends the user's rental early. The book stays readable, read-only.
func (l *Library) Return(ctx context.Context, user, bookID string) error {
	current, err := l.latestRental(ctx, user, bookID)
	if err != nil {
		return err
	}
	if current == nil || !current.Active {
		return ErrNoRental
	}
	now := l.now().UTC()
	input := map[string]any{"active": false}
	if current.ExpiresAt.After(now) {
		input["expires_at"] = formatTime(now)
	}
	if err := l.client.Update(ctx, collRental, current.ID, input); err != nil {
		return fmt.Errorf("failed to return rental: %w", err)
	}
	return nil
}

// Access reports the user's access to a book. It returns ErrNoRental when the
// user never rented it.
func (l *Library) Access(ctx context.Context, user, bookID string) (*Access, error) {
	current, err := l.latestRental(ctx, user, bookID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNoRental
	}
	active := current.Active && current.ExpiresAt.After(l.now())
	return &Access{
		BookID:    bookID,
		User:      user,
		Active:    active,
		ReadOnly:  !active,
		ExpiresAt: current.ExpiresAt,
	}, nil
}

// RequireWritable returns nil when the user holds an active rental, and
// ErrRentalExpired or ErrNoRental otherwise.
func (l *Library) RequireWritable(ctx context.Context, user, bookID string) error {
	access, err := l.Access(ctx, user, bookID)
	if err != nil {
		return err
	}
	if access.ReadOnly {
		return ErrRentalExpired
	}
	return nil
}

// latestRental returns the rental with the latest expiry, or nil.
func (l *Library) latestRental(ctx context.Context, user, bookID string) (*Rental, error) {
	if err := defra.ValidateID(bookID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	resp, err := defra.NewQuery(collRental).
		Filter("user", user).
		Filter("book_id", bookID).
		Fields("_docID", "started_at", "expires_at", "active").
		Execute(ctx, l.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("failed to query rentals: %s", errMsg)
	}

	var latest *Rental
	for _, doc := range resp.Docs(collRental) {
		r := Rental{
			ID:        docString(doc, "_docID"),
			User:      user,
			BookID:    bookID,
			StartedAt: docTime(doc, "started_at"),
			ExpiresAt: docTime(doc, "expires_at"),
			Active:    docBool(doc, "active"),
		}
		if latest == nil || r.ExpiresAt.After(latest.ExpiresAt) {
			latest = &r
		}
	}
	return latest, nil
}

// IsAccessError reports whether err denies access rather than failing.
func IsAccessError(err error) bool {
	return errors.Is(err, ErrNoRental) || errors.Is(err, ErrRentalExpired)
}
