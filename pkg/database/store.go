package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/storage"
)

// Store adapts the relational tables to the object-store contract. Writes go
// through optimistic last-modified checks; Transact wraps one object in a
// database transaction with a row lock, so a failed mutation rolls back as a
// unit.
type Store struct {
	db *gorm.DB
}

func NewStore() *Store {
	return &Store{db: DB}
}

func (s *Store) Find(ctx context.Context, pid string) (storage.Object, error) {
	db := s.db.WithContext(ctx)
	var row DigitalObject
	if err := db.First(&row, "pid = ?", pid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, pid)
		}
		return nil, fmt.Errorf("failed to load object %s: %w", pid, err)
	}
	return &dbObject{db: db, pid: pid}, nil
}

func (s *Store) Transact(ctx context.Context, pid string, fn func(storage.Object) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row DigitalObject
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "pid = ?", pid).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pid)
		}
		if err != nil {
			return fmt.Errorf("failed to lock object %s: %w", pid, err)
		}
		return fn(&dbObject{db: tx, pid: pid})
	})
}

// CreateObject inserts a new object row. It is used by ingest and by tests.
func (s *Store) CreateObject(ctx context.Context, pid string, rel storage.Relations) error {
	row := DigitalObject{
		PID:         pid,
		ObjectModel: string(rel.Model),
		ParentPID:   rel.ParentPID,
		OwnerID:     rel.OwnerID,
		State:       rel.State,
		Label:       rel.Label,
		ExportFlags: rel.ExportFlags,
		Members:     rel.Members,
		RelModified: stamp(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create object %s: %w", pid, err)
	}
	return nil
}

// CountByModel returns object counts grouped by model.
func (s *Store) CountByModel(ctx context.Context) ([]TypeCount, error) {
	var counts []TypeCount
	err := s.db.WithContext(ctx).Model(&DigitalObject{}).
		Select("object_model as type, COUNT(*) as count").
		Group("object_model").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count objects by model: %w", err)
	}
	return counts, nil
}

// stamp returns the write timestamp. Postgres stores timestamps at
// microsecond precision; a finer stamp handed to the caller would never
// equal the value read back for the next optimistic check.
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type dbObject struct {
	db  *gorm.DB
	pid string
}

func (o *dbObject) PID() string { return o.pid }

func (o *dbObject) Datastreams() ([]storage.DatastreamInfo, error) {
	var rows []Datastream
	if err := o.db.Select("ds_id", "mime").Order("ds_id").
		Find(&rows, "pid = ?", o.pid).Error; err != nil {
		return nil, fmt.Errorf("failed to list datastreams of %s: %w", o.pid, err)
	}
	infos := make([]storage.DatastreamInfo, len(rows))
	for i, r := range rows {
		infos[i] = storage.DatastreamInfo{ID: storage.DatastreamID(r.DSID), MIME: r.MIME}
	}
	return infos, nil
}

func (o *dbObject) Datastream(id storage.DatastreamID) ([]byte, time.Time, error) {
	var row Datastream
	err := o.db.First(&row, "pid = ? AND ds_id = ?", o.pid, string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, fmt.Errorf("%w: %s/%s", storage.ErrDatastreamNotFound, o.pid, id)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read datastream %s/%s: %w", o.pid, id, err)
	}
	return row.Content, row.LastModified, nil
}

func (o *dbObject) WriteDatastream(id storage.DatastreamID, mime string, content []byte, expected time.Time) (time.Time, error) {
	now := stamp()

	if expected.IsZero() {
		row := Datastream{
			PID:          o.pid,
			DSID:         string(id),
			MIME:         mime,
			Content:      content,
			LastModified: now,
		}
		res := o.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pid"}, {Name: "ds_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return time.Time{}, fmt.Errorf("failed to create datastream %s/%s: %w", o.pid, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return time.Time{}, fmt.Errorf("%w: %s/%s already exists", storage.ErrConcurrentModification, o.pid, id)
		}
		return now, nil
	}

	res := o.db.Model(&Datastream{}).
		Where("pid = ? AND ds_id = ? AND last_modified = ?", o.pid, string(id), expected).
		Updates(map[string]interface{}{
			"mime":          mime,
			"content":       content,
			"last_modified": now,
		})
	if res.Error != nil {
		return time.Time{}, fmt.Errorf("failed to update datastream %s/%s: %w", o.pid, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return time.Time{}, fmt.Errorf("%w: %s/%s", storage.ErrConcurrentModification, o.pid, id)
	}
	return now, nil
}

func (o *dbObject) Relations() (storage.Relations, time.Time, error) {
	var row DigitalObject
	if err := o.db.First(&row, "pid = ?", o.pid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.Relations{}, time.Time{}, fmt.Errorf("%w: %s", storage.ErrNotFound, o.pid)
		}
		return storage.Relations{}, time.Time{}, fmt.Errorf("failed to read relations of %s: %w", o.pid, err)
	}
	rel := storage.Relations{
		Model:       mapper.ModelID(row.ObjectModel),
		ParentPID:   row.ParentPID,
		OwnerID:     row.OwnerID,
		State:       row.State,
		Label:       row.Label,
		ExportFlags: row.ExportFlags,
		Members:     row.Members,
	}
	return rel, row.RelModified, nil
}

func (o *dbObject) WriteRelations(rel storage.Relations, expected time.Time) (time.Time, error) {
	now := stamp()
	res := o.db.Model(&DigitalObject{}).
		Where("pid = ? AND rel_modified = ?", o.pid, expected).
		Updates(map[string]interface{}{
			"object_model": string(rel.Model),
			"parent_pid":   rel.ParentPID,
			"owner_id":     rel.OwnerID,
			"state":        rel.State,
			"label":        rel.Label,
			"export_flags": pq.StringArray(rel.ExportFlags),
			"members":      pq.StringArray(rel.Members),
			"rel_modified": now,
		})
	if res.Error != nil {
		return time.Time{}, fmt.Errorf("failed to update relations of %s: %w", o.pid, res.Error)
	}
	if res.RowsAffected == 0 {
		return time.Time{}, fmt.Errorf("%w: %s", storage.ErrConcurrentModification, o.pid)
	}
	return now, nil
}
