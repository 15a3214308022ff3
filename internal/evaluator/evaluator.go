package evaluator

import (
	"fmt"

	"dbwatch/internal/metric"
	"dbwatch/internal/models"
	"dbwatch/internal/threshold"
)

// Result is the classification of one sample.
type Result struct {
	Sample metric.Sample
	Status metric.Status
}

// Draft is an alert waiting to be persisted by the recorder.
type Draft struct {
	DatabaseID   *uint
	FileSystemID *uint
	MetricName   string
	MetricValue  float64
	ThresholdID  uint
	Severity     metric.Severity
	Message      string
}

// Evaluate classifies each sample against its governing threshold and
// aggregates the overall target status. Samples without a matching
// threshold are implicitly healthy and produce no alert. The critical
// bound is checked before the warning bound, so a value breaching both
// is always classified critical.
func Evaluate(samples []metric.Sample, thresholds threshold.Set) ([]Result, metric.Status, []Draft) {
	results := make([]Result, 0, len(samples))
	var drafts []Draft
	overall := metric.StatusHealthy

	for _, sample := range samples {
		t, ok := thresholds.Lookup(sample.Ref)
		if !ok {
			results = append(results, Result{Sample: sample, Status: metric.StatusHealthy})
			continue
		}

		status := metric.StatusHealthy
		switch {
		case t.CriticalThreshold != nil && sample.Value >= *t.CriticalThreshold:
			status = metric.StatusCritical
			drafts = append(drafts, draft(sample, t, metric.SeverityCritical, *t.CriticalThreshold))
		case t.WarningThreshold != nil && sample.Value >= *t.WarningThreshold:
			status = metric.StatusWarning
			drafts = append(drafts, draft(sample, t, metric.SeverityWarning, *t.WarningThreshold))
		}

		results = append(results, Result{Sample: sample, Status: status})
		overall = metric.Worse(overall, status)
	}

	return results, overall, drafts
}

func draft(sample metric.Sample, t models.Threshold, severity metric.Severity, bound float64) Draft {
	thresholdID := t.ID
	return Draft{
		MetricName:  sample.Ref.Name(),
		MetricValue: sample.Value,
		ThresholdID: thresholdID,
		Severity:    severity,
		Message: fmt.Sprintf("%s exceeds %s threshold (%s)",
			sample.Description, severity, metric.FormatValue(bound)),
	}
}

// ConnectionFailure builds the synthetic critical draft emitted when the
// collector itself could not reach the target.
func ConnectionFailure(err error) Draft {
	return Draft{
		MetricName: "connection",
		Severity:   metric.SeverityCritical,
		Message:    fmt.Sprintf("Failed to connect to database: %v", err),
	}
}
