package database

import (
	"time"

	"github.com/lib/pq"
)

type Model struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DigitalObject is one stored object with its structural record. Members
// keeps the declared child order; its order is part of the external contract.
type DigitalObject struct {
	Model

	PID         string         `json:"pid" gorm:"primaryKey"`
	ObjectModel string         `json:"model" gorm:"index:idx_digital_object_model"`
	ParentPID   string         `json:"parentPID" gorm:"index:idx_digital_object_parent"`
	OwnerID     string         `json:"ownerID"`
	State       string         `json:"state"`
	Label       string         `json:"label"`
	ExportFlags pq.StringArray `json:"exportFlags" gorm:"type:text[]"`
	Members     pq.StringArray `json:"members" gorm:"type:text[]"`
	RelModified time.Time      `json:"relModified"`
}

// Datastream is one versioned stream of an object.
type Datastream struct {
	Model

	PID          string    `json:"pid" gorm:"primaryKey"`
	DSID         string    `json:"dsid" gorm:"primaryKey"`
	MIME         string    `json:"mime"`
	Content      []byte    `json:"-" gorm:"type:bytea"`
	LastModified time.Time `json:"lastModified"`
}

// ExportJob tracks one package export across restarts.
type ExportJob struct {
	Model

	ID               string         `json:"id" gorm:"primaryKey"`
	PackageID        string         `json:"packageID"`
	Profile          string         `json:"profile"`
	State            string         `json:"state" gorm:"index:idx_export_job_state"`
	Folder           string         `json:"folder"`
	PIDs             pq.StringArray `json:"pids" gorm:"type:text[]"`
	Creator          string         `json:"creator,omitempty"`
	DeleteIncomplete bool           `json:"deleteIncomplete,omitempty"`
	Results          []byte         `json:"results,omitempty" gorm:"type:jsonb"`
	Message          string         `json:"message,omitempty"`
}

type User struct {
	Model

	Username string `json:"username" gorm:"primaryKey"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
}

// Group is keyed by the producer code of the remote service that created it.
type Group struct {
	Model

	Name     string `json:"name" gorm:"primaryKey"`
	Producer string `json:"producer" gorm:"uniqueIndex:idx_group_producer"`
}

type Permission struct {
	Model

	GroupName string `json:"group" gorm:"primaryKey"`
	Action    string `json:"action" gorm:"primaryKey"`
}

type Membership struct {
	Model

	Username  string `json:"username" gorm:"primaryKey"`
	GroupName string `json:"group" gorm:"primaryKey"`
}
