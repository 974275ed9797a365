package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrJobNotFound marks a missing export job.
var ErrJobNotFound = errors.New("export job not found")

// CreateJob assigns the job an id and records it. Every option the exporter
// needs must be on the row, a resumed run has nothing else to go by.
func CreateJob(ctx context.Context, job *ExportJob) error {
	job.ID = uuid.NewString()
	if err := DB.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}
	return nil
}

// UpdateJobState moves a job to a new state.
func UpdateJobState(ctx context.Context, id, state string) error {
	res := DB.WithContext(ctx).Model(&ExportJob{}).Where("id = ?", id).Update("state", state)
	if res.Error != nil {
		return fmt.Errorf("failed to update export job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// FinishJob stores the terminal state together with the per-object results
// and an optional failure message.
func FinishJob(ctx context.Context, id, state string, results []byte, message string) error {
	res := DB.WithContext(ctx).Model(&ExportJob{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":   state,
			"results": results,
			"message": message,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finish export job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// GetJob loads one job by id.
func GetJob(ctx context.Context, id string) (*ExportJob, error) {
	var job ExportJob
	err := DB.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load export job %s: %w", id, err)
	}
	return &job, nil
}

// JobsInStates lists jobs currently in any of the given states, oldest first.
// The startup resume uses it to pick up work interrupted by a restart.
func JobsInStates(ctx context.Context, states ...string) ([]ExportJob, error) {
	var jobs []ExportJob
	err := DB.WithContext(ctx).
		Where("state IN ?", states).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list export jobs: %w", err)
	}
	return jobs, nil
}

// CountJobsByState returns job counts grouped by state.
func CountJobsByState(ctx context.Context) ([]TypeCount, error) {
	var counts []TypeCount
	err := DB.WithContext(ctx).Model(&ExportJob{}).
		Select("state as type, COUNT(*) as count").
		Group("state").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count export jobs: %w", err)
	}
	return counts, nil
}
