// Package migrate changes the declared model of an object subtree and
// repairs the metadata of every affected object to satisfy the target
// model's mapper.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/proarc/proarc-api/pkg/feed"
	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/mods"
	"github.com/proarc/proarc-api/pkg/storage"
	"github.com/proarc/proarc-api/pkg/tree"
)

// Result reports how far a migration batch got. A nil error with Total zero
// means nothing matched the old model.
type Result struct {
	Succeeded int      `json:"succeeded"`
	Total     int      `json:"total"`
	PIDs      []string `json:"pids,omitempty"`
}

// Engine rewrites models and metadata. All collaborators are injected; the
// engine holds no ambient state.
type Engine struct {
	store    storage.Store
	builder  *tree.Builder
	registry *mapper.Registry
	feeder   feed.Feeder
}

func New(store storage.Store, registry *mapper.Registry, feeder feed.Feeder) *Engine {
	return &Engine{
		store:    store,
		builder:  tree.NewBuilder(store),
		registry: registry,
		feeder:   feeder,
	}
}

// FindObjects collects the pids of the object at rootPID and every
// descendant whose current model equals oldModel, parents before children.
func (e *Engine) FindObjects(ctx context.Context, rootPID string, oldModel mapper.ModelID) ([]string, error) {
	root, err := e.builder.Build(ctx, rootPID, true)
	if err != nil {
		return nil, err
	}
	var pids []string
	err = tree.Walk(root, func(el *tree.Element) error {
		if el.Model == oldModel {
			pids = append(pids, el.PID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pids, nil
}

// ChangeModels migrates every matching object under rootPID from oldModel to
// newModel. Objects are committed one by one; the first failing commit aborts
// the batch and the result carries the exact count of objects already
// changed. Objects after the failure are never attempted.
func (e *Engine) ChangeModels(ctx context.Context, rootPID string, oldModel, newModel mapper.ModelID, parentPID string) (Result, error) {
	fix, err := fixForModel(newModel)
	if err != nil {
		return Result{}, err
	}
	m, err := e.registry.Get(newModel)
	if err != nil {
		return Result{}, err
	}

	pids, err := e.FindObjects(ctx, rootPID, oldModel)
	if err != nil {
		return Result{}, err
	}
	if len(pids) == 0 {
		slog.Warn("No objects matched the old model, nothing to migrate",
			"root", rootPID, "oldModel", oldModel, "newModel", newModel)
		return Result{}, nil
	}

	res := Result{Total: len(pids)}
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("migration interrupted after %d of %d objects: %w",
				res.Succeeded, res.Total, err)
		}
		if err := e.changeOne(ctx, pid, newModel, m, fix, parentPID); err != nil {
			return res, fmt.Errorf("changed %d of %d objects, failed at %s: %w",
				res.Succeeded, res.Total, pid, err)
		}
		res.Succeeded++
		res.PIDs = append(res.PIDs, pid)
	}
	slog.Info("Migration finished", "root", rootPID, "oldModel", oldModel,
		"newModel", newModel, "changed", res.Succeeded)
	return res, nil
}

// changeOne rewrites one object inside a per-pid transaction: model
// relation, fixed and renormalized MODS, recomputed DC summary and label.
func (e *Engine) changeOne(ctx context.Context, pid string, newModel mapper.ModelID, m mapper.Mapper, fix fixFunc, parentPID string) error {
	err := e.store.Transact(ctx, pid, func(obj storage.Object) error {
		rel, relModified, err := obj.Relations()
		if err != nil {
			return err
		}

		data, modsModified, err := obj.Datastream(storage.DsMods)
		if err != nil {
			if !errors.Is(err, storage.ErrDatastreamNotFound) {
				return err
			}
			data, modsModified = nil, time.Time{}
		}
		record, err := mods.Unmarshal(data)
		if err != nil {
			return err
		}

		if err := fix(ctx, e, record, parentPID); err != nil {
			return err
		}
		mctx := mapper.Context{PID: pid, Model: newModel}
		m.Normalize(record, mctx)

		modsData, err := mods.Marshal(record)
		if err != nil {
			return err
		}
		if _, err := obj.WriteDatastream(storage.DsMods, "text/xml", modsData, modsModified); err != nil {
			return err
		}

		dcData, err := mods.MarshalSummary(m.ToSummary(record, mctx))
		if err != nil {
			return err
		}
		_, dcModified, err := obj.Datastream(storage.DsDC)
		if err != nil && !errors.Is(err, storage.ErrDatastreamNotFound) {
			return err
		}
		if _, err := obj.WriteDatastream(storage.DsDC, "text/xml", dcData, dcModified); err != nil {
			return err
		}

		rel.Model = newModel
		rel.Label = m.ToLabel(record)
		if _, err := obj.WriteRelations(rel, relModified); err != nil {
			return err
		}

		if ferr := e.feeder.Feed(ctx, pid, feed.Fields{
			Model: string(newModel),
			Label: rel.Label,
			State: rel.State,
			Owner: rel.OwnerID,
		}); ferr != nil {
			slog.Warn("Index feed failed after migration", "pid", pid, "error", ferr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}
