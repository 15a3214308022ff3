package metric

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Status of a monitored target or a single metric classification.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// Severity of a recorded alert. Only breaches carry a severity, so
// there is no "healthy" severity.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders statuses for aggregation: critical > warning > healthy > unknown.
func rank(s Status) int {
	switch s {
	case StatusCritical:
		return 3
	case StatusWarning:
		return 2
	case StatusHealthy:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of two statuses.
func Worse(a, b Status) Status {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// StatusFor maps a severity to the target status it implies.
func StatusFor(sev Severity) Status {
	if sev == SeverityCritical {
		return StatusCritical
	}
	return StatusWarning
}

// Metric classes. General metrics carry an empty Unit; tablespace and
// disk metrics name a specific storage unit or mount path.
const (
	ClassCPU            = "cpu"
	ClassMemory         = "memory"
	ClassConnections    = "connections"
	ClassConnectionTime = "connection_time"
	ClassTablespace     = "tablespace"
	ClassDisk           = "disk"
)

// Ref identifies a metric. Stored threshold names like "tablespace_SYSTEM"
// or "disk_/oracle/data" are parsed into a Ref once at load time instead of
// being re-split on every evaluation.
type Ref struct {
	Class string
	Unit  string
}

// ParseRef parses a stored metric name into a Ref.
func ParseRef(name string) Ref {
	if unit, ok := strings.CutPrefix(name, "tablespace_"); ok && unit != "" {
		return Ref{Class: ClassTablespace, Unit: unit}
	}
	if unit, ok := strings.CutPrefix(name, "disk_"); ok && unit != "" {
		return Ref{Class: ClassDisk, Unit: unit}
	}
	return Ref{Class: name}
}

// Name renders the Ref back to its stored metric name.
func (r Ref) Name() string {
	if r.Unit == "" {
		return r.Class
	}
	return r.Class + "_" + r.Unit
}

// General reports whether the Ref names a metric class without a unit.
func (r Ref) General() bool {
	return r.Unit == ""
}

// Sample is one value collected from a live target. Samples are ephemeral;
// they exist only between collection and evaluation.
type Sample struct {
	Ref         Ref
	Value       float64
	Description string // e.g. "CPU usage at 92%"
}

// NewSample builds a sample with a formatted description.
func NewSample(ref Ref, value float64, format string, args ...interface{}) Sample {
	return Sample{Ref: ref, Value: value, Description: fmt.Sprintf(format, args...)}
}

// FormatValue renders a metric value without trailing zeros.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Round2 rounds to two decimal places, used for storage-usage percents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
