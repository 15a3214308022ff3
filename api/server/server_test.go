package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dbwatch/internal/alerting"
	"dbwatch/internal/collector"
	"dbwatch/internal/database"
	"dbwatch/internal/metric"
	"dbwatch/internal/models"
	"dbwatch/internal/monitor"
	"dbwatch/internal/notify"
	"dbwatch/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubDBCollector struct {
	samples []metric.Sample
}

func (c *stubDBCollector) Collect(ctx context.Context, db *models.Database) ([]metric.Sample, time.Duration, error) {
	return c.samples, 25 * time.Millisecond, nil
}

type stubFSCollector struct{}

func (c *stubFSCollector) Collect(ctx context.Context, db *models.Database, fs *models.FileSystem) (*collector.FileSystemUsage, error) {
	return &collector.FileSystemUsage{TotalMB: 1000, UsedMB: 100, AvailableMB: 900, UsedPercent: 10}, nil
}

type nullMailer struct{}

func (nullMailer) SendAlertEmail(alert *models.Alert, db *models.Database, fs *models.FileSystem) bool {
	return false
}

func newTestServer(t *testing.T, dbCollector *stubDBCollector) (*Server, *storage.Store) {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(gormDB))

	store := storage.NewStore(gormDB)
	dispatcher := notify.NewDispatcher(nullMailer{}, nil, store)
	t.Cleanup(dispatcher.Close)

	service := monitor.NewService(
		store,
		dbCollector,
		&stubFSCollector{},
		alerting.NewRecorder(store, alerting.PolicyAlways),
		dispatcher,
		nil,
		monitor.Options{CheckTimeout: 5 * time.Second, Workers: 2},
	)
	t.Cleanup(service.Stop)

	return NewServer(store, service, nil), store
}

func post(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestAddAndListDatabases(t *testing.T) {
	srv, _ := newTestServer(t, &stubDBCollector{})

	w := post(t, srv, "/api/v1/database/add", gin.H{
		"name": "PRODDB", "host": "db1.example.com", "port": 1521,
		"username": "monitor", "password": "secret", "sid": "ORCL",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(t, srv, "/api/v1/database/list", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Databases []models.Database `json:"databases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Databases, 1)
	assert.Equal(t, "PRODDB", resp.Databases[0].Name)
	assert.Equal(t, "unknown", resp.Databases[0].Status)
}

func TestAddDatabaseValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubDBCollector{})

	w := post(t, srv, "/api/v1/database/add", gin.H{"name": "PRODDB"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddThresholdRejectsBadScope(t *testing.T) {
	srv, _ := newTestServer(t, &stubDBCollector{})

	w := post(t, srv, "/api/v1/threshold/add", gin.H{
		"metric_name": "cpu", "critical_threshold": 90,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unscoped threshold must be rejected")

	w = post(t, srv, "/api/v1/threshold/add", gin.H{
		"metric_name": "cpu", "critical_threshold": 90,
		"database_id": 1, "group_id": 2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "double-scoped threshold must be rejected")

	w = post(t, srv, "/api/v1/threshold/add", gin.H{
		"metric_name": "cpu", "critical_threshold": 90, "database_id": 1,
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCheckDatabaseEndpoint(t *testing.T) {
	srv, store := newTestServer(t, &stubDBCollector{
		samples: []metric.Sample{
			metric.NewSample(metric.Ref{Class: metric.ClassCPU}, 92, "CPU usage at %s%%", metric.FormatValue(92)),
		},
	})

	db := &models.Database{Name: "PRODDB", Host: "db1", Port: 1521, Username: "m", Password: "x", MonitoringEnabled: true}
	require.NoError(t, store.CreateDatabase(db))
	crit := 90.0
	require.NoError(t, store.CreateThreshold(&models.Threshold{
		DatabaseID: &db.ID, MetricName: "cpu", CriticalThreshold: &crit, Enabled: true,
	}))

	w := post(t, srv, "/api/v1/database/check", gin.H{"id": db.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary monitor.CheckSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, metric.StatusCritical, summary.Status)
	require.Len(t, summary.Alerts, 1)
	assert.Contains(t, summary.Alerts[0].Message, "exceeds critical threshold (90)")

	// Unknown id.
	w = post(t, srv, "/api/v1/database/check", gin.H{"id": 999})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertListAndAcknowledge(t *testing.T) {
	srv, store := newTestServer(t, &stubDBCollector{})

	dbID := uint(1)
	alert := &models.Alert{DatabaseID: &dbID, MetricName: "cpu", Severity: "critical", Message: "m"}
	require.NoError(t, store.CreateAlert(alert))

	w := post(t, srv, "/api/v1/alert/active", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Alerts []models.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Alerts, 1)

	w = post(t, srv, "/api/v1/alert/acknowledge", gin.H{"id": alert.ID, "user_id": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = post(t, srv, "/api/v1/alert/active", gin.H{})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Alerts)
}

func TestHistorySearchWithoutES(t *testing.T) {
	srv, _ := newTestServer(t, &stubDBCollector{})

	w := post(t, srv, "/api/v1/history/search", gin.H{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, &stubDBCollector{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
