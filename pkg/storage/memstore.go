package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proarc/proarc-api/pkg/mapper"
)

// MemStore is an in-process Store used by tests and fixtures. It honors the
// full optimistic-concurrency and transaction contract.
type MemStore struct {
	mu    sync.Mutex
	clock int64
	objs  map[string]*memObject
	locks map[string]*sync.Mutex
}

type memObject struct {
	store       *MemStore
	pid         string
	streams     map[DatastreamID]*memStream
	streamOrder []DatastreamID
	rel         Relations
	relModified time.Time
}

type memStream struct {
	mime     string
	content  []byte
	modified time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		objs:  make(map[string]*memObject),
		locks: make(map[string]*sync.Mutex),
	}
}

// tick returns a strictly increasing timestamp so successive writes never
// share a version.
func (s *MemStore) tick() time.Time {
	s.clock++
	return time.Unix(0, s.clock)
}

// AddObject registers a new object with its relations. Fixture helper.
func (s *MemStore) AddObject(pid string, rel Relations) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[pid] = &memObject{
		store:       s,
		pid:         pid,
		streams:     make(map[DatastreamID]*memStream),
		rel:         rel,
		relModified: s.tick(),
	}
}

// AddDatastream sets a datastream on an existing object. Fixture helper.
func (s *MemStore) AddDatastream(pid string, id DatastreamID, mime string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objs[pid]
	if !ok {
		panic(fmt.Sprintf("memstore: no such object %s", pid))
	}
	if _, exists := o.streams[id]; !exists {
		o.streamOrder = append(o.streamOrder, id)
	}
	o.streams[id] = &memStream{mime: mime, content: content, modified: s.tick()}
}

func (s *MemStore) Find(ctx context.Context, pid string) (Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objs[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pid)
	}
	return o, nil
}

func (s *MemStore) pidLock(pid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[pid]
	if !ok {
		l = &sync.Mutex{}
		s.locks[pid] = l
	}
	return l
}

// Transact locks the pid, snapshots the object and restores it when fn
// fails, so a failing commit leaves no partial writes behind.
func (s *MemStore) Transact(ctx context.Context, pid string, fn func(Object) error) error {
	l := s.pidLock(pid)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	o, ok := s.objs[pid]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, pid)
	}
	snapshot := o.snapshot()
	s.mu.Unlock()

	if err := fn(o); err != nil {
		s.mu.Lock()
		s.objs[pid] = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (o *memObject) snapshot() *memObject {
	c := &memObject{
		store:       o.store,
		pid:         o.pid,
		streams:     make(map[DatastreamID]*memStream, len(o.streams)),
		streamOrder: append([]DatastreamID(nil), o.streamOrder...),
		rel:         cloneRelations(o.rel),
		relModified: o.relModified,
	}
	for id, st := range o.streams {
		c.streams[id] = &memStream{
			mime:     st.mime,
			content:  append([]byte(nil), st.content...),
			modified: st.modified,
		}
	}
	return c
}

func cloneRelations(rel Relations) Relations {
	rel.ExportFlags = append([]string(nil), rel.ExportFlags...)
	rel.Members = append([]string(nil), rel.Members...)
	return rel
}

func (o *memObject) PID() string { return o.pid }

func (o *memObject) Datastreams() ([]DatastreamInfo, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	infos := make([]DatastreamInfo, 0, len(o.streamOrder))
	for _, id := range o.streamOrder {
		infos = append(infos, DatastreamInfo{ID: id, MIME: o.streams[id].mime})
	}
	return infos, nil
}

func (o *memObject) Datastream(id DatastreamID) ([]byte, time.Time, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	st, ok := o.streams[id]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: %s/%s", ErrDatastreamNotFound, o.pid, id)
	}
	return append([]byte(nil), st.content...), st.modified, nil
}

func (o *memObject) WriteDatastream(id DatastreamID, mime string, content []byte, expected time.Time) (time.Time, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	st, ok := o.streams[id]
	if ok {
		if !st.modified.Equal(expected) {
			return time.Time{}, fmt.Errorf("%w: %s/%s", ErrConcurrentModification, o.pid, id)
		}
	} else {
		if !expected.IsZero() {
			return time.Time{}, fmt.Errorf("%w: %s/%s", ErrConcurrentModification, o.pid, id)
		}
		st = &memStream{}
		o.streams[id] = st
		o.streamOrder = append(o.streamOrder, id)
	}
	st.mime = mime
	st.content = append([]byte(nil), content...)
	st.modified = o.store.tick()
	return st.modified, nil
}

func (o *memObject) Relations() (Relations, time.Time, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return cloneRelations(o.rel), o.relModified, nil
}

func (o *memObject) WriteRelations(rel Relations, expected time.Time) (time.Time, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	if !o.relModified.Equal(expected) {
		return time.Time{}, fmt.Errorf("%w: %s relations", ErrConcurrentModification, o.pid)
	}
	o.rel = cloneRelations(rel)
	o.relModified = o.store.tick()
	return o.relModified, nil
}

// ModelOf is a fixture convenience returning the stored model of a pid.
func (s *MemStore) ModelOf(pid string) mapper.ModelID {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objs[pid]
	if !ok {
		return ""
	}
	return o.rel.Model
}
