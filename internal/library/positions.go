package library

import (
	"context"
	"fmt"
	"math"

	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

func positionKey(user, bookID string) string {
	return user + "/" + bookID
}

// Position returns the user's last reading position in a book, or nil when
// none was saved.
func (l *Library) Position(ctx context.Context, user, bookID string) (*reader.Position, error) {
	if err := defra.ValidateID(bookID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	key := positionKey(user, bookID)

	l.mu.Lock()
	p, ok := l.pending[key]
	l.mu.Unlock()
	if ok {
		return &p.pos, nil
	}

	resp, err := defra.SafeQuery(ctx, l.client, collPosition, "key", key, "page", "scroll_offset")
	if err != nil {
		return nil, fmt.Errorf("failed to query position: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("failed to query position: %s", errMsg)
	}
	docs := resp.Docs(collPosition)
	if len(docs) == 0 {
		return nil, nil
	}
	return &reader.Position{
		Page:         docInt(docs[0], "page"),
		ScrollOffset: docFloat(docs[0], "scroll_offset"),
	}, nil
}

// SavePosition records the user's reading position. With a sink the write is
// queued, and queued writes for the same user and book collapse into the
// latest one.
func (l *Library) SavePosition(ctx context.Context, user, bookID string, pos reader.Position) error {
	if pos.Page < 1 || pos.ScrollOffset < 0 || math.IsNaN(pos.ScrollOffset) || math.IsInf(pos.ScrollOffset, 0) {
		return fmt.Errorf("%w: page %d offset %v", ErrInvalidPosition, pos.Page, pos.ScrollOffset)
	}
	if err := defra.ValidateID(bookID); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	key := positionKey(user, bookID)

	update := map[string]any{
		"page":          pos.Page,
		"scroll_offset": pos.ScrollOffset,
		"updated_at":    formatTime(l.now()),
	}
	create := map[string]any{
		"key":     key,
		"user":    user,
		"book_id": bookID,
	}
	for k, v := range update {
		create[k] = v
	}
	filter := map[string]any{"key": map[string]any{"_eq": key}}

	if l.sink == nil {
		if _, err := l.client.Upsert(ctx, collPosition, filter, create, update); err != nil {
			return fmt.Errorf("failed to save position: %w", err)
		}
		return nil
	}

	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.pending[key] = pendingPosition{pos: pos, seq: seq}
	l.mu.Unlock()

	l.sink.Send(defra.WriteOp{
		Collection: collPosition,
		Op:         defra.OpUpsert,
		Key:        key,
		Filter:     filter,
		Document:   update,
		Create:     create,
		OnDone: func(r defra.WriteResult) {
			l.positionWritten(key, seq, pos, r.Err)
		},
	})
	return nil
}

// positionWritten forgets a pending position once the sink reports on it.
// After a failure reads fall back to the last stored position.
func (l *Library) positionWritten(key string, seq uint64, pos reader.Position, err error) {
	l.mu.Lock()
	if p, ok := l.pending[key]; ok && p.seq == seq {
		delete(l.pending, key)
	}
	l.mu.Unlock()
	if err != nil {
		l.logger.Warn("position save failed", "key", key, "page", pos.Page, "error", err)
	}
}
