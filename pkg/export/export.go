// Package export walks element trees and emits self-contained archival
// packages: original content files, per-object metadata descriptors and a
// validated manifest.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/proarc/proarc-api/pkg/ident"
	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/mods"
	"github.com/proarc/proarc-api/pkg/storage"
	"github.com/proarc/proarc-api/pkg/tree"
)

// State is the per-package job state.
type State string

const (
	StatePending   State = "PENDING"
	StateLoading   State = "LOADING"
	StateLoaded    State = "LOADED"
	StateExporting State = "EXPORTING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// ResultStatus is the outcome of one root export.
type ResultStatus string

const (
	StatusOK      ResultStatus = "OK"
	StatusWarning ResultStatus = "WARNING"
	StatusFailed  ResultStatus = "FAILED"
)

// Error is one collected problem, attached to the result instead of aborting
// sibling processing.
type Error struct {
	PID              string   `json:"pid"`
	Message          string   `json:"message"`
	Warning          bool     `json:"warning,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	Err              error    `json:"-"`
}

// Result is the immutable outcome of exporting one root pid.
type Result struct {
	PID          string       `json:"pid"`
	Status       ResultStatus `json:"status"`
	Errors       []Error      `json:"errors,omitempty"`
	OutputFolder string       `json:"outputFolder"`
	StartedAt    time.Time    `json:"startedAt"`
	EndedAt      time.Time    `json:"endedAt"`
}

// Options configure one export request.
type Options struct {
	TargetDir string
	// PackageID overrides the derived identifier when a single root is
	// exported.
	PackageID string
	Profile   Profile
	Creator   string
	// DeletePackageIfIncomplete removes partially written packages after an
	// EXPORTING failure. LOADING failures always discard the folder.
	DeletePackageIfIncomplete bool
	// OnState observes per-root state transitions (job persistence).
	OnState func(pid string, state State)
}

// Exporter serializes element trees into packages.
type Exporter struct {
	store    storage.Store
	builder  *tree.Builder
	registry *mapper.Registry
}

func New(store storage.Store, registry *mapper.Registry) *Exporter {
	return &Exporter{
		store:    store,
		builder:  tree.NewBuilder(store),
		registry: registry,
	}
}

// Export produces one package per root pid. Roots are independent: a failing
// root is reported in its result and the remaining roots still run. Only a
// configuration error (unknown model, unusable target folder) aborts the
// whole batch.
func (ex *Exporter) Export(ctx context.Context, opts Options, pids []string) ([]Result, error) {
	if opts.Profile == nil {
		opts.Profile = NDKProfile{}
	}
	results := make([]Result, 0, len(pids))
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("export interrupted after %d of %d roots: %w",
				len(results), len(pids), err)
		}
		res, err := ex.exportOne(ctx, opts, pid, len(pids) == 1)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (ex *Exporter) exportOne(ctx context.Context, opts Options, pid string, single bool) (Result, error) {
	res := Result{PID: pid, StartedAt: time.Now()}
	setState := func(s State) {
		if opts.OnState != nil {
			opts.OnState(pid, s)
		}
	}
	fail := func(e Error) Result {
		res.Errors = append(res.Errors, e)
		res.Status = StatusFailed
		res.EndedAt = time.Now()
		setState(StateFailed)
		return res
	}

	setState(StatePending)

	packageID := packageIDFromPID(pid)
	if single && opts.PackageID != "" {
		packageID = opts.PackageID
	}
	folder := filepath.Join(opts.TargetDir, packageID)
	res.OutputFolder = folder

	for _, sub := range []string{"original", "metadata"} {
		if err := os.MkdirAll(filepath.Join(folder, sub), 0o755); err != nil {
			return fail(Error{PID: pid, Message: "cannot create package folder", Err: err}),
				fmt.Errorf("cannot create package folder %s: %w", folder, err)
		}
	}

	setState(StateLoading)
	root, err := ex.builder.Build(ctx, pid, true)
	if err != nil {
		// no partial package is left behind when the source cannot be read
		if rmErr := os.RemoveAll(folder); rmErr != nil {
			slog.Warn("Cannot discard incomplete package folder", "folder", folder, "error", rmErr)
		}
		res.OutputFolder = ""
		return fail(Error{PID: pid, Message: err.Error(), Err: err}), nil
	}
	setState(StateLoaded)

	selected := opts.Profile.Select(root)
	items := make([]string, 0, len(selected))

	setState(StateExporting)
	var exportErr error
	for _, el := range selected {
		if err := ctx.Err(); err != nil {
			exportErr = err
			res.Errors = append(res.Errors, Error{PID: el.PID, Message: "export interrupted", Err: err})
			break
		}

		m, err := ex.registry.Get(el.Model)
		if err != nil {
			// unregistered model is a configuration error, abort the batch
			return fail(Error{PID: el.PID, Message: err.Error(), Err: err}), err
		}

		// the ordinal equals the manifest position, failed objects leave no gap
		if err := ex.writeObject(ctx, opts, folder, packageID, len(items)+1, el, m, &res); err != nil {
			res.Errors = append(res.Errors, Error{PID: el.PID, Message: err.Error(), Err: err})
			continue
		}
		items = append(items, el.PID)
	}

	info := newInfo(packageID, titleID(root), opts.Creator, items)
	infoData, err := marshalInfo(info)
	if err != nil {
		res.Errors = append(res.Errors, Error{PID: pid, Message: err.Error(), Err: err})
	} else if err := os.WriteFile(filepath.Join(folder, "info_"+packageID+".xml"), infoData, 0o644); err != nil {
		res.Errors = append(res.Errors, Error{PID: pid, Message: "cannot write package info", Err: err})
	}
	if problems := validateInfo(info); len(problems) > 0 {
		res.Errors = append(res.Errors, Error{PID: pid, Message: "package info validation failed",
			Warning: true, ValidationErrors: problems})
	}

	res.Status = StatusOK
	for _, e := range res.Errors {
		if e.Warning {
			if res.Status == StatusOK {
				res.Status = StatusWarning
			}
		} else {
			res.Status = StatusFailed
		}
	}
	res.EndedAt = time.Now()

	if res.Status == StatusFailed {
		if opts.DeletePackageIfIncomplete {
			if rmErr := os.RemoveAll(folder); rmErr != nil {
				slog.Warn("Cannot delete incomplete package", "folder", folder, "error", rmErr)
			}
		}
		setState(StateFailed)
	} else {
		setState(StateDone)
	}
	if exportErr != nil {
		return res, fmt.Errorf("export of %s interrupted: %w", pid, exportErr)
	}
	slog.Info("Package exported", "pid", pid, "folder", folder,
		"status", res.Status, "items", len(items))
	return res, nil
}

// writeObject emits the metadata descriptor and, when the profile says so,
// the original content file of one element.
func (ex *Exporter) writeObject(ctx context.Context, opts Options, folder, packageID string, seq int, el *tree.Element, m mapper.Mapper, res *Result) error {
	mctx := mapper.Context{PID: el.PID, Model: el.Model}
	record := m.Normalize(el.Record.Clone(), mctx)

	if problems := validateRecord(el.Model, record); len(problems) > 0 {
		res.Errors = append(res.Errors, Error{PID: el.PID, Message: "metadata validation failed",
			Warning: true, ValidationErrors: problems})
	}

	data, err := mods.Marshal(record)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("mods_%s_%04d.xml", opts.Profile.FileRole(el.Model), seq)
	if err := os.WriteFile(filepath.Join(folder, "metadata", name), data, 0o644); err != nil {
		return fmt.Errorf("cannot write metadata file: %w", err)
	}

	if !opts.Profile.HasContent(el.Model) || !el.HasDatastream(storage.DsContent) {
		return nil
	}

	obj, err := ex.store.Find(ctx, el.PID)
	if err != nil {
		return err
	}
	content, _, err := obj.Datastream(storage.DsContent)
	if err != nil {
		return err
	}
	contentName := fmt.Sprintf("oc_%s_%04d%s", packageID, seq,
		extensionForMIME(el.DatastreamMIME(storage.DsContent)))
	if err := os.WriteFile(filepath.Join(folder, "original", contentName), content, 0o644); err != nil {
		return fmt.Errorf("cannot write content file: %w", err)
	}
	return nil
}

// validateRecord checks required-field completeness after normalization.
func validateRecord(model mapper.ModelID, r *mods.Record) []string {
	var problems []string
	if len(r.Genres) == 0 {
		problems = append(problems, "genre is missing")
	}
	if !mapper.IsPage(model) && r.MainTitle() == "" {
		problems = append(problems, "title is missing")
	}
	if mapper.IsPage(model) && r.Detail(mods.DetailPageNumber) == "" {
		problems = append(problems, "page number is missing")
	}
	for _, id := range r.Identifiers {
		if strings.EqualFold(id.Type, "issn") && !ident.ValidISSN(id.Value) {
			problems = append(problems, fmt.Sprintf("invalid issn %q", id.Value))
		}
	}
	return problems
}

// titleID picks the identifier downstream systems use to link the package to
// its title record.
func titleID(root *tree.Element) string {
	for _, id := range root.Record.Identifiers {
		if id.Value != "" {
			return ident.Normalize(id.Type, id.Value)
		}
	}
	return root.PID
}

// packageIDFromPID derives a file-system safe package identifier.
func packageIDFromPID(pid string) string {
	id := strings.TrimPrefix(pid, "uuid:")
	return strings.NewReplacer(":", "_", "/", "_").Replace(id)
}

func extensionForMIME(mime string) string {
	switch mime {
	case "image/jp2":
		return ".jp2"
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	case "application/pdf":
		return ".pdf"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}
