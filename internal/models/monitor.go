package models

import "time"

// Group is a named collection of databases sharing group-level thresholds.
type Group struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Group) TableName() string {
	return "groups"
}

// Database is a monitored database server.
type Database struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Name              string `gorm:"size:255;not null" json:"name"`
	Host              string `gorm:"size:255;not null" json:"host"`
	Port              int    `gorm:"not null" json:"port"`
	Username          string `gorm:"size:255;not null" json:"username"`
	Password          string `gorm:"size:255;not null" json:"-"`
	SID               string `gorm:"size:255" json:"sid"`
	GroupID           *uint  `gorm:"index" json:"group_id,omitempty"`
	MonitoringEnabled bool   `gorm:"default:true" json:"monitoring_enabled"`

	// Mutated only by the monitor after each check cycle.
	Status         string     `gorm:"size:20;default:unknown" json:"status"`
	LastCheckAt    *time.Time `json:"last_check_at,omitempty"`
	ConnectionTime *int64     `json:"connection_time,omitempty"` // milliseconds

	CreatedAt time.Time `json:"created_at"`
}

func (Database) TableName() string {
	return "databases"
}

// FileSystem is a monitored mount path on the host owning a database.
type FileSystem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	DatabaseID  uint   `gorm:"not null;index" json:"database_id"`
	Path        string `gorm:"size:500;not null" json:"path"`
	Description string `gorm:"type:text" json:"description"`

	TotalSpace  *int       `json:"total_space,omitempty"` // MB
	UsedSpace   *int       `json:"used_space,omitempty"`  // MB
	Status      string     `gorm:"size:20;default:unknown" json:"status"`
	LastCheckAt *time.Time `json:"last_check_at,omitempty"`
}

func (FileSystem) TableName() string {
	return "file_systems"
}

// Threshold binds a metric name to warning/critical bounds, scoped to
// exactly one of a database or a group.
type Threshold struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	DatabaseID *uint  `gorm:"index" json:"database_id,omitempty"`
	GroupID    *uint  `gorm:"index" json:"group_id,omitempty"`
	MetricName string `gorm:"size:255;not null" json:"metric_name"`

	WarningThreshold  *float64 `json:"warning_threshold,omitempty"`
	CriticalThreshold *float64 `json:"critical_threshold,omitempty"`
	Enabled           bool     `gorm:"default:true" json:"enabled"`
}

func (Threshold) TableName() string {
	return "thresholds"
}

// Alert records one threshold breach at one point in time.
type Alert struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DatabaseID   *uint     `gorm:"index" json:"database_id,omitempty"`
	FileSystemID *uint     `gorm:"index" json:"file_system_id,omitempty"`
	MetricName   string    `gorm:"size:255;not null" json:"metric_name"`
	MetricValue  *float64  `json:"metric_value,omitempty"`
	ThresholdID  *uint     `json:"threshold_id,omitempty"`
	Severity     string    `gorm:"size:20;not null" json:"severity"`
	Message      string    `gorm:"type:text;not null" json:"message"`
	CreatedAt    time.Time `json:"created_at"`

	AcknowledgedBy *uint      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	// External ticket reference, backfilled by the notifier.
	TicketID *string `gorm:"size:255" json:"ticket_id,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}
