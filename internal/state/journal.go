// Package state defines the durable event journal. Every fill and risk
// event the engine emits is appended so a restarted operator can
// reconstruct what the strategy did while they were not watching.
package state

import (
	"context"
	"time"
)

type Entry struct {
	Time    time.Time
	Kind    string
	Payload string
}

type Journal interface {
	Append(ctx context.Context, entry Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
