package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dbwatch/internal/metric"
	"dbwatch/internal/models"
)

// CollectionError marks an expected collection failure: unreachable target,
// bad credentials, malformed probe output. It is recovered at the
// orchestrator boundary and turned into a synthetic critical alert rather
// than propagating further.
type CollectionError struct {
	Target string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection failed for %s: %v", e.Target, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// IsCollectionError reports whether err is (or wraps) a CollectionError.
func IsCollectionError(err error) bool {
	var ce *CollectionError
	return errors.As(err, &ce)
}

// DatabaseCollector probes a live database server and returns one sample per
// metric plus the measured connection latency.
type DatabaseCollector interface {
	Collect(ctx context.Context, db *models.Database) ([]metric.Sample, time.Duration, error)
}

// FileSystemUsage is the parsed result of a remote space-usage probe,
// capacities in megabytes.
type FileSystemUsage struct {
	TotalMB     int
	UsedMB      int
	AvailableMB int
	UsedPercent float64
}

// Sample renders the usage as the disk sample for the given mount path.
func (u *FileSystemUsage) Sample(path string) metric.Sample {
	return metric.NewSample(
		metric.Ref{Class: metric.ClassDisk, Unit: path},
		u.UsedPercent,
		"Filesystem %s usage at %s%%", path, metric.FormatValue(u.UsedPercent),
	)
}

// FileSystemCollector probes a mount path on the host owning the database.
type FileSystemCollector interface {
	Collect(ctx context.Context, db *models.Database, fs *models.FileSystem) (*FileSystemUsage, error)
}
