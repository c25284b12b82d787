// Package history persists consultation transcripts so a returning
// seeker's earlier exchanges can season the astrologer's context.
package history

import (
	"context"
	"time"
)

// Utterance is one persisted transcript line.
type Utterance struct {
	ID          string
	SubjectID   string
	SessionID   string
	SessionKind string
	Speaker     string
	Text        string
	CreatedAt   time.Time
}

type Store interface {
	Save(ctx context.Context, u Utterance) error
	// Recent returns up to limit utterances for the subject, oldest first.
	Recent(ctx context.Context, subjectID string, limit int) ([]Utterance, error)
	Close() error
}

// NoopStore drops everything; used when no database is configured.
type NoopStore struct{}

func (NoopStore) Save(context.Context, Utterance) error { return nil }

func (NoopStore) Recent(context.Context, string, int) ([]Utterance, error) {
	return nil, nil
}

func (NoopStore) Close() error { return nil }
