package evaluator

import (
	"errors"
	"testing"

	"dbwatch/internal/metric"
	"dbwatch/internal/models"
	"dbwatch/internal/threshold"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func set(thresholds ...models.Threshold) threshold.Set {
	s := make(threshold.Set)
	for _, t := range thresholds {
		s[metric.ParseRef(t.MetricName)] = t
	}
	return s
}

func cpuSample(value float64) metric.Sample {
	return metric.NewSample(metric.Ref{Class: metric.ClassCPU}, value,
		"CPU usage at %s%%", metric.FormatValue(value))
}

func TestEvaluateCritical(t *testing.T) {
	thresholds := set(models.Threshold{
		ID: 1, MetricName: "cpu", WarningThreshold: f(80), CriticalThreshold: f(90), Enabled: true,
	})

	results, overall, drafts := Evaluate([]metric.Sample{cpuSample(92)}, thresholds)

	require.Len(t, results, 1)
	assert.Equal(t, metric.StatusCritical, results[0].Status)
	assert.Equal(t, metric.StatusCritical, overall)

	require.Len(t, drafts, 1)
	assert.Equal(t, "cpu", drafts[0].MetricName)
	assert.Equal(t, 92.0, drafts[0].MetricValue)
	assert.Equal(t, uint(1), drafts[0].ThresholdID)
	assert.Equal(t, metric.SeverityCritical, drafts[0].Severity)
	assert.Equal(t, "CPU usage at 92% exceeds critical threshold (90)", drafts[0].Message)
}

func TestEvaluateCriticalWinsOverWarning(t *testing.T) {
	// A value breaching both bounds is classified critical, never warning.
	thresholds := set(models.Threshold{
		ID: 1, MetricName: "cpu", WarningThreshold: f(80), CriticalThreshold: f(90), Enabled: true,
	})

	_, overall, drafts := Evaluate([]metric.Sample{cpuSample(95)}, thresholds)

	assert.Equal(t, metric.StatusCritical, overall)
	require.Len(t, drafts, 1)
	assert.Equal(t, metric.SeverityCritical, drafts[0].Severity)
}

func TestEvaluateWarning(t *testing.T) {
	thresholds := set(models.Threshold{
		ID: 1, MetricName: "cpu", WarningThreshold: f(80), CriticalThreshold: f(90), Enabled: true,
	})

	_, overall, drafts := Evaluate([]metric.Sample{cpuSample(85)}, thresholds)

	assert.Equal(t, metric.StatusWarning, overall)
	require.Len(t, drafts, 1)
	assert.Equal(t, metric.SeverityWarning, drafts[0].Severity)
	assert.Equal(t, "CPU usage at 85% exceeds warning threshold (80)", drafts[0].Message)
}

func TestEvaluateBoundaryInclusive(t *testing.T) {
	thresholds := set(models.Threshold{
		ID: 1, MetricName: "cpu", WarningThreshold: f(80), CriticalThreshold: f(90), Enabled: true,
	})

	_, overall, _ := Evaluate([]metric.Sample{cpuSample(90)}, thresholds)
	assert.Equal(t, metric.StatusCritical, overall, "value equal to the bound breaches it")

	_, overall, _ = Evaluate([]metric.Sample{cpuSample(80)}, thresholds)
	assert.Equal(t, metric.StatusWarning, overall)
}

func TestEvaluateNoThresholdIsHealthy(t *testing.T) {
	results, overall, drafts := Evaluate([]metric.Sample{cpuSample(99)}, threshold.Set{})

	require.Len(t, results, 1)
	assert.Equal(t, metric.StatusHealthy, results[0].Status)
	assert.Equal(t, metric.StatusHealthy, overall)
	assert.Empty(t, drafts)
}

func TestEvaluateMissingBound(t *testing.T) {
	// Critical-only threshold never yields warnings.
	thresholds := set(models.Threshold{
		ID: 1, MetricName: "cpu", CriticalThreshold: f(90), Enabled: true,
	})

	_, overall, drafts := Evaluate([]metric.Sample{cpuSample(85)}, thresholds)
	assert.Equal(t, metric.StatusHealthy, overall)
	assert.Empty(t, drafts)
}

func TestEvaluateAggregatesWorstStatus(t *testing.T) {
	thresholds := set(
		models.Threshold{ID: 1, MetricName: "cpu", WarningThreshold: f(80), Enabled: true},
		models.Threshold{ID: 2, MetricName: "memory", CriticalThreshold: f(30), Enabled: true},
		models.Threshold{ID: 3, MetricName: "connections", WarningThreshold: f(85), Enabled: true},
	)

	samples := []metric.Sample{
		cpuSample(85),
		metric.NewSample(metric.Ref{Class: metric.ClassMemory}, 35, "PGA memory usage: 35 GB"),
		metric.NewSample(metric.Ref{Class: metric.ClassConnections}, 40, "40 active sessions"),
	}

	results, overall, drafts := Evaluate(samples, thresholds)

	require.Len(t, results, 3)
	assert.Equal(t, metric.StatusCritical, overall)
	assert.Len(t, drafts, 2)
}

func TestEvaluateTablespaceAndDisk(t *testing.T) {
	thresholds := set(
		models.Threshold{ID: 1, MetricName: "tablespace_SYSTEM", CriticalThreshold: f(95), Enabled: true},
		models.Threshold{ID: 2, MetricName: "disk_/oracle/data", CriticalThreshold: f(90), Enabled: true},
	)

	samples := []metric.Sample{
		metric.NewSample(metric.Ref{Class: metric.ClassTablespace, Unit: "SYSTEM"}, 96,
			"Tablespace %s usage at %s%%", "SYSTEM", metric.FormatValue(96)),
		metric.NewSample(metric.Ref{Class: metric.ClassDisk, Unit: "/oracle/data"}, 90,
			"Filesystem %s usage at %s%%", "/oracle/data", metric.FormatValue(90)),
	}

	_, overall, drafts := Evaluate(samples, thresholds)

	assert.Equal(t, metric.StatusCritical, overall)
	require.Len(t, drafts, 2)
	assert.Equal(t, "tablespace_SYSTEM", drafts[0].MetricName)
	assert.Equal(t, "disk_/oracle/data", drafts[1].MetricName)
	assert.Contains(t, drafts[1].Message, "exceeds critical threshold (90)")
}

func TestConnectionFailure(t *testing.T) {
	draft := ConnectionFailure(errors.New("dial tcp: connection refused"))

	assert.Equal(t, "connection", draft.MetricName)
	assert.Equal(t, metric.SeverityCritical, draft.Severity)
	assert.Contains(t, draft.Message, "Failed to connect to database")
	assert.Contains(t, draft.Message, "connection refused")
	assert.Zero(t, draft.ThresholdID)
}
