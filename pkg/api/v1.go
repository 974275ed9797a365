package routing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/proarc/proarc-api/pkg/auth"
	"github.com/proarc/proarc-api/pkg/database"
	"github.com/proarc/proarc-api/pkg/export"
	"github.com/proarc/proarc-api/pkg/feed"
	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/migrate"
	"github.com/proarc/proarc-api/pkg/mods"
	"github.com/proarc/proarc-api/pkg/nomencl"
	"github.com/proarc/proarc-api/pkg/remote"
	"github.com/proarc/proarc-api/pkg/storage"
)

// Env bundles the collaborators the handlers need. main wires it once.
type Env struct {
	Store     storage.Store
	Registry  *mapper.Registry
	Engine    *migrate.Engine
	Exporter  *export.Exporter
	Auth      *auth.Authenticator
	Feeder    feed.Feeder
	Services  []remote.Client
	Nomencl   *nomencl.Cache
	ExportDir string
}

type PlainOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type StatsOutput struct {
	Body database.CachedStats
}

type LoginInput struct {
	Body auth.Credentials
}

type LoginOutput struct {
	Body struct {
		Token string     `json:"token"`
		User  *auth.User `json:"user"`
		Roles []string   `json:"roles,omitempty"`
	}
}

type GetObjectInput struct {
	PID string `path:"pid" doc:"Object identifier, e.g. uuid:..."`
}

type ObjectOutput struct {
	Body struct {
		PID          string          `json:"pid"`
		Model        string          `json:"model"`
		Label        string          `json:"label"`
		State        string          `json:"state,omitempty"`
		LastModified time.Time       `json:"lastModified"`
		View         *mapper.EditView `json:"view"`
	}
}

type UpdateMetadataInput struct {
	PID  string `path:"pid"`
	Body struct {
		// LastModified must match the stored metadata timestamp; a mismatch
		// means someone else saved first.
		LastModified time.Time       `json:"lastModified"`
		View         mapper.EditView `json:"view"`
	}
}

type UpdateMetadataOutput struct {
	Body struct {
		PID          string    `json:"pid"`
		Label        string    `json:"label"`
		LastModified time.Time `json:"lastModified"`
	}
}

type SearchObjectsInput struct {
	Model  string `query:"model" required:"false" doc:"Filter by model identifier"`
	Label  string `query:"label" required:"false" doc:"Filter by label (case-insensitive)"`
	Owner  string `query:"owner" required:"false" doc:"Filter by owner"`
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum number of results"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Offset for pagination"`
}

type SearchObjectsOutput struct {
	Body struct {
		Total   int64                    `json:"total"`
		Results []database.DigitalObject `json:"results"`
	}
}

type ChangeModelsInput struct {
	PID  string `path:"pid" doc:"Root of the subtree to migrate"`
	Body struct {
		OldModel  string `json:"oldModel" required:"true"`
		NewModel  string `json:"newModel" required:"true"`
		ParentPID string `json:"parentPID,omitempty" doc:"Title object whose name migrated volumes adopt"`
	}
}

type ChangeModelsOutput struct {
	Body migrate.Result
}

type CreateExportInput struct {
	Body struct {
		PIDs                      []string `json:"pids" required:"true" minItems:"1" doc:"Root objects, one package each"`
		Profile                   string   `json:"profile,omitempty" enum:"ndk,oldprint" doc:"Package profile, defaults to ndk"`
		PackageID                 string   `json:"packageID,omitempty" doc:"Package identifier override, single root only"`
		Creator                   string   `json:"creator,omitempty"`
		DeletePackageIfIncomplete bool     `json:"deletePackageIfIncomplete,omitempty"`
	}
}

type ExportJobOutput struct {
	Body database.ExportJob
}

type GetExportInput struct {
	ID string `path:"id"`
}

type NomenclaturesInput struct {
	Kind     string `query:"kind" required:"true" doc:"Value list to fetch, e.g. documentType"`
	Producer string `query:"producer" required:"true" doc:"Producer code the remote service scopes the list to"`
}

type NomenclaturesOutput struct {
	Body struct {
		Values []remote.Nomenclature `json:"values"`
	}
}

var bearerAuth = []map[string][]string{{"bearerAuth": {}}}

func Setup(api huma.API, env *Env) {
	api.UseMiddleware(authMiddleware(api))

	huma.Register(api, huma.Operation{
		OperationID: "HealthCheck",
		Method:      "GET",
		Path:        "/healthz",
		Summary:     "Health check",
		Description: "Check if the API is running",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*PlainOutput, error) {
		return &PlainOutput{
			ContentType: "text/plain",
			Body:        []byte("OK"),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "Login",
		Method:      "POST",
		Path:        "/v1/login",
		Summary:     "Log in",
		Description: "Authenticate against the configured remote registry services and issue a session token",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		out, err := env.Auth.Authenticate(ctx, input.Body)
		if err != nil {
			return nil, huma.Error502BadGateway("authentication service failure", err)
		}
		switch out.Status {
		case auth.StatusIgnored:
			return nil, huma.Error422UnprocessableEntity("username, password and producer are required")
		case auth.StatusForbidden:
			return nil, huma.Error403Forbidden("no service authorized the credentials")
		}

		token, err := issueToken(out.User.Username, out.User.Group, out.Roles,
			time.Now().Add(24*time.Hour).Unix())
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to issue token", err)
		}
		resp := &LoginOutput{}
		resp.Body.Token = token
		resp.Body.User = out.User
		resp.Body.Roles = out.Roles
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetObject",
		Method:      "GET",
		Path:        "/v1/objects/{pid}",
		Summary:     "Get object metadata",
		Description: "Get the edit view of one object's descriptive metadata",
		Tags:        []string{"Objects"},
		Security:    bearerAuth,
	}, func(ctx context.Context, input *GetObjectInput) (*ObjectOutput, error) {
		obj, err := env.Store.Find(ctx, input.PID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, huma.Error404NotFound(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to load object", err)
		}

		rel, _, err := obj.Relations()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load relations", err)
		}
		m, err := env.Registry.Get(rel.Model)
		if err != nil {
			return nil, huma.Error500InternalServerError("unknown model", err)
		}

		data, modified, err := obj.Datastream(storage.DsMods)
		if err != nil && !errors.Is(err, storage.ErrDatastreamNotFound) {
			return nil, huma.Error500InternalServerError("failed to load metadata", err)
		}
		record, err := mods.Unmarshal(data)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to parse metadata", err)
		}

		resp := &ObjectOutput{}
		resp.Body.PID = input.PID
		resp.Body.Model = string(rel.Model)
		resp.Body.Label = rel.Label
		resp.Body.State = rel.State
		resp.Body.LastModified = modified
		resp.Body.View = m.ToEditView(record)
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "UpdateObjectMetadata",
		Method:      "PUT",
		Path:        "/v1/objects/{pid}/metadata",
		Summary:     "Update object metadata",
		Description: "Merge an edit view into the stored metadata, normalize it and recompute the label",
		Tags:        []string{"Objects"},
		Security:    bearerAuth,
	}, func(ctx context.Context, input *UpdateMetadataInput) (*UpdateMetadataOutput, error) {
		resp := &UpdateMetadataOutput{}
		err := env.Store.Transact(ctx, input.PID, func(obj storage.Object) error {
			rel, relModified, err := obj.Relations()
			if err != nil {
				return err
			}
			m, err := env.Registry.Get(rel.Model)
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
			raw, err := mods.Unmarshal(data)
			if err != nil {
				return err
			}
			if !input.Body.LastModified.Equal(modsModified) {
				return storage.ErrConcurrentModification
			}

			mctx := mapper.Context{PID: input.PID, Model: rel.Model}
			record := m.FromEditView(&input.Body.View, raw)
			m.Normalize(record, mctx)

			modsData, err := mods.Marshal(record)
			if err != nil {
				return err
			}
			newModified, err := obj.WriteDatastream(storage.DsMods, "text/xml", modsData, modsModified)
			if err != nil {
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

			rel.Label = m.ToLabel(record)
			if _, err := obj.WriteRelations(rel, relModified); err != nil {
				return err
			}

			if ferr := env.Feeder.Feed(ctx, input.PID, feed.Fields{
				Model: string(rel.Model),
				Label: rel.Label,
				State: rel.State,
				Owner: rel.OwnerID,
			}); ferr != nil {
				slog.Warn("Index feed failed after metadata update", "pid", input.PID, "error", ferr)
			}

			resp.Body.PID = input.PID
			resp.Body.Label = rel.Label
			resp.Body.LastModified = newModified
			return nil
		})
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				return nil, huma.Error404NotFound(err.Error())
			case errors.Is(err, storage.ErrConcurrentModification):
				return nil, huma.Error409Conflict("object was modified concurrently, reload and retry")
			case errors.Is(err, mapper.ErrUnknownModel):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			default:
				return nil, huma.Error500InternalServerError("failed to update metadata", err)
			}
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "SearchObjects",
		Method:      "GET",
		Path:        "/v1/objects",
		Summary:     "Search objects",
		Description: "Search stored objects by model, label, and owner",
		Tags:        []string{"Objects"},
		Security:    bearerAuth,
	}, func(ctx context.Context, input *SearchObjectsInput) (*SearchObjectsOutput, error) {
		objects, total, err := database.SearchObjects(input.Model, input.Label, input.Owner, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to search objects", err)
		}
		resp := &SearchObjectsOutput{}
		resp.Body.Total = total
		resp.Body.Results = objects
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ChangeModels",
		Method:      "POST",
		Path:        "/v1/objects/{pid}/migrate",
		Summary:     "Change models",
		Description: "Migrate every matching object of the subtree to a new model and repair its metadata",
		Tags:        []string{"Migration"},
		Security:    bearerAuth,
	}, func(ctx context.Context, input *ChangeModelsInput) (*ChangeModelsOutput, error) {
		res, err := env.Engine.ChangeModels(ctx, input.PID,
			mapper.ModelID(input.Body.OldModel), mapper.ModelID(input.Body.NewModel), input.Body.ParentPID)
		if err != nil {
			if errors.Is(err, mapper.ErrUnknownModel) {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			if errors.Is(err, storage.ErrNotFound) {
				return nil, huma.Error404NotFound(err.Error())
			}
			return nil, huma.Error500InternalServerError("migration failed", err)
		}
		database.InvalidateStatsCache()
		return &ChangeModelsOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "CreateExport",
		Method:      "POST",
		Path:        "/v1/exports",
		Summary:     "Create export",
		Description: "Queue an archival package export, one package per root object",
		Tags:        []string{"Exports"},
		Security:    bearerAuth,
	}, func(ctx context.Context, input *CreateExportInput) (*ExportJobOutput, error) {
		profile, ok := export.ProfileByName(input.Body.Profile)
		if !ok {
			return nil, huma.Error422UnprocessableEntity("unknown export profile " + input.Body.Profile)
		}
		if input.Body.PackageID != "" && len(input.Body.PIDs) != 1 {
			return nil, huma.Error422UnprocessableEntity("packageID override requires exactly one root")
		}

		job := &database.ExportJob{
			PackageID:        input.Body.PackageID,
			Profile:          profile.Name(),
			State:            string(export.StatePending),
			Folder:           env.ExportDir,
			PIDs:             input.Body.PIDs,
			Creator:          input.Body.Creator,
			DeleteIncomplete: input.Body.DeletePackageIfIncomplete,
		}
		if err := database.CreateJob(ctx, job); err != nil {
			return nil, huma.Error500InternalServerError("failed to create export job", err)
		}

		go env.RunExportJob(job, exportOptions(job, profile))

		return &ExportJobOutput{Body: *job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetExport",
		Method:      "GET",
		Path:        "/v1/exports/{id}",
		Summary:     "Get export",
		Description: "Get the state and results of an export job",
		Tags:        []string{"Exports"},
		Security:    bearerAuth,
	}, func(ctx context.Context, input *GetExportInput) (*ExportJobOutput, error) {
		job, err := database.GetJob(ctx, input.ID)
		if err != nil {
			if errors.Is(err, database.ErrJobNotFound) {
				return nil, huma.Error404NotFound(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to load export job", err)
		}
		return &ExportJobOutput{Body: *job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetNomenclatures",
		Method:      "GET",
		Path:        "/v1/nomenclatures",
		Summary:     "Get nomenclatures",
		Description: "Get a cached value list from the remote registry services",
		Tags:        []string{"Nomenclatures"},
		Security:    bearerAuth,
	}, func(ctx context.Context, input *NomenclaturesInput) (*NomenclaturesOutput, error) {
		var values []remote.Nomenclature
		for _, svc := range env.Services {
			key := nomencl.Key(svc.ID(), input.Producer+"/"+input.Kind)
			vs, err := env.Nomencl.Get(ctx, key, func(ctx context.Context) ([]remote.Nomenclature, error) {
				return svc.Nomenclatures(ctx, input.Kind, input.Producer)
			})
			if err != nil {
				slog.Warn("Nomenclature fetch failed", "service", svc.ID(), "kind", input.Kind, "error", err)
				continue
			}
			values = append(values, vs...)
		}
		resp := &NomenclaturesOutput{}
		resp.Body.Values = values
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetStatistics",
		Method:      "GET",
		Path:        "/v1/statistics",
		Summary:     "Get statistics",
		Description: "Get statistics about the stored objects and export jobs",
		Tags:        []string{"Statistics"},
	}, func(ctx context.Context, input *struct{}) (*StatsOutput, error) {
		stats := database.GetCachedStats()
		if stats == nil {
			go database.ComputeAndCacheStats(false)
			return nil, huma.Error503ServiceUnavailable("stats are being computed, please retry later")
		}
		return &StatsOutput{
			Body: *stats,
		}, nil
	})
}

// exportOptions rebuilds the exporter options recorded on a job row, so a
// resumed run behaves exactly like the request that queued it.
func exportOptions(job *database.ExportJob, profile export.Profile) export.Options {
	return export.Options{
		TargetDir:                 job.Folder,
		PackageID:                 job.PackageID,
		Profile:                   profile,
		Creator:                   job.Creator,
		DeletePackageIfIncomplete: job.DeleteIncomplete,
	}
}

// RunExportJob drives one queued export to a terminal state and persists the
// per-root results. It runs detached from the request that created the job.
func (env *Env) RunExportJob(job *database.ExportJob, opts export.Options) {
	ctx := context.Background()
	opts.OnState = func(pid string, s export.State) {
		if err := database.UpdateJobState(ctx, job.ID, string(s)); err != nil {
			slog.Warn("Failed to persist export state", "job", job.ID, "pid", pid, "error", err)
		}
	}

	results, err := env.Exporter.Export(ctx, opts, job.PIDs)

	state := string(export.StateDone)
	message := ""
	if err != nil {
		state = string(export.StateFailed)
		message = err.Error()
	} else {
		for _, r := range results {
			if r.Status == export.StatusFailed {
				state = string(export.StateFailed)
			}
		}
	}

	data, merr := json.Marshal(results)
	if merr != nil {
		slog.Warn("Failed to encode export results", "job", job.ID, "error", merr)
	}
	if err := database.FinishJob(ctx, job.ID, state, data, message); err != nil {
		slog.Error("Failed to finish export job", "job", job.ID, "error", err)
	}
	database.InvalidateStatsCache()
	slog.Info("Export job finished", "job", job.ID, "state", state, "roots", len(job.PIDs))
}

// ResumeExportJobs requeues jobs interrupted by a restart. Packages of
// interrupted jobs were either discarded or will be overwritten in place.
func (env *Env) ResumeExportJobs(ctx context.Context) error {
	jobs, err := database.JobsInStates(ctx,
		string(export.StatePending), string(export.StateLoading),
		string(export.StateLoaded), string(export.StateExporting))
	if err != nil {
		return err
	}
	for i := range jobs {
		job := jobs[i]
		profile, ok := export.ProfileByName(job.Profile)
		if !ok {
			slog.Warn("Skipping job with unknown profile", "job", job.ID, "profile", job.Profile)
			continue
		}
		slog.Info("Resuming export job", "job", job.ID, "state", job.State)
		go env.RunExportJob(&job, exportOptions(&job, profile))
	}
	return nil
}
