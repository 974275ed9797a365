package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/proarc/proarc-api/pkg/database"
	"github.com/proarc/proarc-api/pkg/export"
)

func TestExportOptionsCarryAllJobFields(t *testing.T) {
	job := &database.ExportJob{
		ID:               "9e107d9d-1b2a-4f3c-8d4e-5f6a7b8c9d0e",
		PackageID:        "sip001",
		Profile:          "oldprint",
		Folder:           "/exports",
		PIDs:             []string{"uuid:root"},
		Creator:          "operator1",
		DeleteIncomplete: true,
	}
	profile, ok := export.ProfileByName(job.Profile)
	assert.True(t, ok)

	opts := exportOptions(job, profile)
	assert.Equal(t, "/exports", opts.TargetDir)
	assert.Equal(t, "sip001", opts.PackageID)
	assert.Equal(t, "oldprint", opts.Profile.Name())
	assert.Equal(t, "operator1", opts.Creator)
	assert.True(t, opts.DeletePackageIfIncomplete,
		"a resumed job must keep the cleanup behavior of the original request")
}
