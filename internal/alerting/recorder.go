package alerting

import (
	"dbwatch/internal/evaluator"
	"dbwatch/internal/logger"
	"dbwatch/internal/models"

	"go.uber.org/zap"
)

// Policy controls whether a still-breaching metric produces a fresh alert
// every cycle or is suppressed while an unacknowledged alert is open.
type Policy string

const (
	PolicyAlways   Policy = "always"
	PolicySuppress Policy = "suppress"
)

// Store is the subset of the entity store the recorder writes.
type Store interface {
	CreateAlert(alert *models.Alert) error
	FindUnacknowledgedAlert(databaseID, fileSystemID *uint, metricName string, thresholdID *uint) (*models.Alert, error)
}

// Recorder persists alert drafts. Notification is not its concern; callers
// hand recorded alerts to the dispatcher.
type Recorder struct {
	store  Store
	policy Policy
}

func NewRecorder(store Store, policy Policy) *Recorder {
	if policy != PolicySuppress {
		policy = PolicyAlways
	}
	return &Recorder{store: store, policy: policy}
}

// Record inserts one alert for a draft. Under the suppress policy it
// returns (nil, nil) when an unacknowledged alert for the same
// target+metric+threshold is still open.
func (r *Recorder) Record(draft evaluator.Draft) (*models.Alert, error) {
	var thresholdID *uint
	if draft.ThresholdID != 0 {
		id := draft.ThresholdID
		thresholdID = &id
	}

	if r.policy == PolicySuppress {
		existing, err := r.store.FindUnacknowledgedAlert(draft.DatabaseID, draft.FileSystemID, draft.MetricName, thresholdID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logger.Debug("Alert suppressed, unacknowledged alert still open",
				zap.String("metric", draft.MetricName),
				zap.Uint("alert_id", existing.ID))
			return nil, nil
		}
	}

	value := draft.MetricValue
	alert := &models.Alert{
		DatabaseID:   draft.DatabaseID,
		FileSystemID: draft.FileSystemID,
		MetricName:   draft.MetricName,
		MetricValue:  &value,
		ThresholdID:  thresholdID,
		Severity:     string(draft.Severity),
		Message:      draft.Message,
	}

	if err := r.store.CreateAlert(alert); err != nil {
		return nil, err
	}

	logger.Warn("Alert recorded",
		zap.String("severity", alert.Severity),
		zap.String("metric", alert.MetricName),
		zap.String("message", alert.Message))

	return alert, nil
}
