package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proarc/proarc-api/pkg/mapper"
)

func TestFindNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.Find(context.Background(), "uuid:missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "uuid:missing")
}

func TestOptimisticConcurrency(t *testing.T) {
	s := NewMemStore()
	s.AddObject("uuid:1", Relations{Model: mapper.NdkPage})
	s.AddDatastream("uuid:1", DsMods, "text/xml", []byte("<mods/>"))

	obj, err := s.Find(context.Background(), "uuid:1")
	require.NoError(t, err)

	_, modified, err := obj.Datastream(DsMods)
	require.NoError(t, err)

	next, err := obj.WriteDatastream(DsMods, "text/xml", []byte("<mods>a</mods>"), modified)
	require.NoError(t, err)
	assert.True(t, next.After(modified))

	// stale timestamp is rejected
	_, err = obj.WriteDatastream(DsMods, "text/xml", []byte("<mods>b</mods>"), modified)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	// creating a stream requires a zero expected timestamp
	_, err = obj.WriteDatastream(DsRaw, "application/json", []byte("{}"), time.Unix(0, 99))
	assert.ErrorIs(t, err, ErrConcurrentModification)
	_, err = obj.WriteDatastream(DsRaw, "application/json", []byte("{}"), time.Time{})
	assert.NoError(t, err)
}

func TestRelationsRoundTrip(t *testing.T) {
	s := NewMemStore()
	s.AddObject("uuid:1", Relations{Model: mapper.NdkMonographVolume, Members: []string{"uuid:2", "uuid:3"}})

	obj, err := s.Find(context.Background(), "uuid:1")
	require.NoError(t, err)

	rel, modified, err := obj.Relations()
	require.NoError(t, err)
	assert.Equal(t, []string{"uuid:2", "uuid:3"}, rel.Members)

	rel.Label = "vol. 2"
	_, err = obj.WriteRelations(rel, modified)
	require.NoError(t, err)

	_, err = obj.WriteRelations(rel, modified)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestTransactRollsBack(t *testing.T) {
	s := NewMemStore()
	s.AddObject("uuid:1", Relations{Model: mapper.Page, Label: "before"})

	boom := errors.New("boom")
	err := s.Transact(context.Background(), "uuid:1", func(obj Object) error {
		rel, modified, err := obj.Relations()
		require.NoError(t, err)
		rel.Label = "after"
		if _, err := obj.WriteRelations(rel, modified); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	obj, err := s.Find(context.Background(), "uuid:1")
	require.NoError(t, err)
	rel, _, err := obj.Relations()
	require.NoError(t, err)
	assert.Equal(t, "before", rel.Label, "failed transaction must leave no partial writes")
}

func TestTransactHonorsCancellation(t *testing.T) {
	s := NewMemStore()
	s.AddObject("uuid:1", Relations{Model: mapper.Page})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Transact(ctx, "uuid:1", func(Object) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
