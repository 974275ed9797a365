// Package storage defines the object-store contract the pipeline runs
// against. The store behaves as a key-value repository of objects with
// versioned datastreams and an ordered relation record.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/proarc/proarc-api/pkg/mapper"
)

// DatastreamID names one versioned stream of an object.
type DatastreamID string

const (
	DsMods    DatastreamID = "BIBLIO_MODS"
	DsDC      DatastreamID = "DC"
	DsContent DatastreamID = "FULL"
	DsRaw     DatastreamID = "RAW"
)

var (
	// ErrNotFound marks a missing object.
	ErrNotFound = errors.New("object not found")
	// ErrDatastreamNotFound marks a missing datastream on an existing object.
	ErrDatastreamNotFound = errors.New("datastream not found")
	// ErrConcurrentModification marks an optimistic-lock mismatch on commit.
	// Callers may retry the single object.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Relations is the structural record of an object: its model, place in the
// hierarchy and the declared order of its children. The member order is part
// of the external contract and is preserved into exported manifests.
type Relations struct {
	Model       mapper.ModelID
	ParentPID   string
	OwnerID     string
	State       string
	Label       string
	ExportFlags []string
	Members     []string
}

// DatastreamInfo describes one stream without its content.
type DatastreamInfo struct {
	ID   DatastreamID
	MIME string
}

// Object is one stored digital object. All writes carry the last-modified
// timestamp the caller read; a mismatch yields ErrConcurrentModification.
type Object interface {
	PID() string
	Datastreams() ([]DatastreamInfo, error)
	Datastream(id DatastreamID) ([]byte, time.Time, error)
	WriteDatastream(id DatastreamID, mime string, content []byte, expected time.Time) (time.Time, error)
	Relations() (Relations, time.Time, error)
	WriteRelations(rel Relations, expected time.Time) (time.Time, error)
}

// Store resolves pids to objects. Transact runs fn under per-pid mutual
// exclusion and rolls every write back when fn fails, giving migration and
// metadata commits their single commit-or-abort unit per object.
type Store interface {
	Find(ctx context.Context, pid string) (Object, error)
	Transact(ctx context.Context, pid string, fn func(Object) error) error
}
