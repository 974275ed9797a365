package tree

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/storage"
)

func fixtureStore(t *testing.T) *storage.MemStore {
	t.Helper()
	s := storage.NewMemStore()
	s.AddObject("uuid:title", storage.Relations{
		Model:   mapper.NdkMonographTitle,
		Members: []string{"uuid:vol"},
	})
	s.AddObject("uuid:vol", storage.Relations{
		Model:     mapper.NdkMonographVolume,
		ParentPID: "uuid:title",
		Members:   []string{"uuid:p1", "uuid:p2"},
	})
	s.AddObject("uuid:p1", storage.Relations{Model: mapper.NdkPage, ParentPID: "uuid:vol"})
	s.AddObject("uuid:p2", storage.Relations{Model: mapper.NdkPage, ParentPID: "uuid:vol"})
	s.AddDatastream("uuid:p1", storage.DsMods, "text/xml",
		[]byte(`<mods><part type="normalPage"><detail type="pageNumber"><number>1</number></detail></part></mods>`))
	s.AddDatastream("uuid:p1", storage.DsContent, "image/jp2", []byte("jp2"))
	return s
}

func TestBuildDeep(t *testing.T) {
	b := NewBuilder(fixtureStore(t))
	root, err := b.Build(context.Background(), "uuid:title", true)
	require.NoError(t, err)

	assert.Equal(t, mapper.NdkMonographTitle, root.Model)
	require.Len(t, root.Children(), 1)

	vol := root.Children()[0]
	assert.Equal(t, root, vol.Parent())
	require.Len(t, vol.Children(), 2)
	assert.Equal(t, "uuid:p1", vol.Children()[0].PID)
	assert.Equal(t, "uuid:p2", vol.Children()[1].PID)

	p1 := vol.Children()[0]
	assert.Equal(t, "1", p1.Record.Detail("pageNumber"))
	assert.True(t, p1.HasDatastream(storage.DsContent))
	assert.Equal(t, "image/jp2", p1.DatastreamMIME(storage.DsContent))
}

func TestBuildLazy(t *testing.T) {
	b := NewBuilder(fixtureStore(t))
	root, err := b.Build(context.Background(), "uuid:title", false)
	require.NoError(t, err)
	assert.Empty(t, root.Children())

	require.NoError(t, b.FillChildren(context.Background(), root, false))
	require.Len(t, root.Children(), 1)
	assert.Empty(t, root.Children()[0].Children(), "lazy fill stops at one level")

	// idempotent: a second fill adds nothing
	require.NoError(t, b.FillChildren(context.Background(), root, false))
	assert.Len(t, root.Children(), 1)
}

// unreliableStore wraps a working store with objects whose datastream reads
// fail, as a broken backend connection would.
type unreliableStore struct {
	storage.Store
	readErr error
}

func (s *unreliableStore) Find(ctx context.Context, pid string) (storage.Object, error) {
	obj, err := s.Store.Find(ctx, pid)
	if err != nil {
		return nil, err
	}
	return &unreliableObject{Object: obj, readErr: s.readErr}, nil
}

type unreliableObject struct {
	storage.Object
	readErr error
}

func (o *unreliableObject) Datastream(id storage.DatastreamID) ([]byte, time.Time, error) {
	return nil, time.Time{}, o.readErr
}

func TestBuildFailsOnMetadataReadError(t *testing.T) {
	boom := errors.New("connection reset by peer")
	b := NewBuilder(&unreliableStore{Store: fixtureStore(t), readErr: boom})

	_, err := b.Build(context.Background(), "uuid:p1", false)
	require.Error(t, err, "a failing read must not pass as missing metadata")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "uuid:p1")
}

func TestBuildMissingMetadataYieldsEmptyRecord(t *testing.T) {
	b := NewBuilder(fixtureStore(t))
	el, err := b.Build(context.Background(), "uuid:p2", false)
	require.NoError(t, err)
	assert.Empty(t, el.Record.Titles)
}

func TestBuildMissingObject(t *testing.T) {
	b := NewBuilder(fixtureStore(t))
	_, err := b.Build(context.Background(), "uuid:nope", false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "uuid:nope")
}

func TestWalkOrder(t *testing.T) {
	b := NewBuilder(fixtureStore(t))
	root, err := b.Build(context.Background(), "uuid:title", true)
	require.NoError(t, err)

	var order []string
	require.NoError(t, Walk(root, func(e *Element) error {
		order = append(order, e.PID)
		return nil
	}))
	assert.Equal(t, []string{"uuid:title", "uuid:vol", "uuid:p1", "uuid:p2"}, order)
}
