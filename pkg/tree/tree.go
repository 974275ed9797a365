// Package tree materializes a digital object and its structural descendants
// into an in-memory element tree. Trees are built per request, are read-only
// and are discarded after traversal.
package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/mods"
	"github.com/proarc/proarc-api/pkg/storage"
)

// Element is one node of the object graph. The tree owns its children; the
// parent pointer is a back-reference for context lookup only.
type Element struct {
	PID         string
	Model       mapper.ModelID
	Record      *mods.Record
	Relations   storage.Relations
	Datastreams []storage.DatastreamInfo

	parent   *Element
	children []*Element
	filled   bool
}

// Parent returns the parent element or nil for the root.
func (e *Element) Parent() *Element { return e.parent }

// Children returns the child elements in declared relation order. Call
// Builder.FillChildren first when the tree was built shallow.
func (e *Element) Children() []*Element { return e.children }

// HasDatastream reports whether the element references the given stream.
func (e *Element) HasDatastream(id storage.DatastreamID) bool {
	for _, info := range e.Datastreams {
		if info.ID == id {
			return true
		}
	}
	return false
}

// DatastreamMIME returns the MIME type of the given stream or an empty string.
func (e *Element) DatastreamMIME(id storage.DatastreamID) string {
	for _, info := range e.Datastreams {
		if info.ID == id {
			return info.MIME
		}
	}
	return ""
}

// Builder loads elements from the object store.
type Builder struct {
	store storage.Store
}

func NewBuilder(store storage.Store) *Builder {
	return &Builder{store: store}
}

// Build materializes the object at pid. With deep set all descendants are
// populated up front; otherwise children are filled lazily via FillChildren.
// A missing object surfaces as an error naming the requesting pid.
func (b *Builder) Build(ctx context.Context, pid string, deep bool) (*Element, error) {
	e, err := b.load(ctx, pid)
	if err != nil {
		return nil, err
	}
	if deep {
		if err := b.FillChildren(ctx, e, true); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (b *Builder) load(ctx context.Context, pid string) (*Element, error) {
	obj, err := b.store.Find(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("cannot build element for %s: %w", pid, err)
	}

	rel, _, err := obj.Relations()
	if err != nil {
		return nil, fmt.Errorf("cannot read relations of %s: %w", pid, err)
	}

	streams, err := obj.Datastreams()
	if err != nil {
		return nil, fmt.Errorf("cannot list datastreams of %s: %w", pid, err)
	}

	// a missing metadata stream yields an empty record, a failing read does not
	record := &mods.Record{}
	data, _, err := obj.Datastream(storage.DsMods)
	switch {
	case err == nil:
		record, err = mods.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("cannot parse metadata of %s: %w", pid, err)
		}
	case !errors.Is(err, storage.ErrDatastreamNotFound):
		return nil, fmt.Errorf("cannot read metadata of %s: %w", pid, err)
	}

	return &Element{
		PID:         pid,
		Model:       rel.Model,
		Record:      record,
		Relations:   rel,
		Datastreams: streams,
	}, nil
}

// FillChildren populates the element's children in declared member order.
// It is idempotent; a second call is a no-op.
func (b *Builder) FillChildren(ctx context.Context, e *Element, deep bool) error {
	if !e.filled {
		for _, childPID := range e.Relations.Members {
			if err := ctx.Err(); err != nil {
				return err
			}
			child, err := b.load(ctx, childPID)
			if err != nil {
				return err
			}
			child.parent = e
			e.children = append(e.children, child)
		}
		e.filled = true
	}
	if deep {
		for _, child := range e.children {
			if err := b.FillChildren(ctx, child, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Walk visits the element and its populated descendants pre-order, children
// in declared order. The walk stops on the first error.
func Walk(e *Element, fn func(*Element) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, child := range e.children {
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}
