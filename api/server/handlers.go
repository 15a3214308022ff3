package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dbwatch/internal/elasticsearch"
	"dbwatch/internal/metric"
	"dbwatch/internal/models"
	"dbwatch/internal/monitor"
	"dbwatch/internal/threshold"

	"github.com/gin-gonic/gin"
)

// Common request types
type IDRequest struct {
	ID uint `json:"id" binding:"required"`
}

// --- Groups ---

type AddGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) addGroup(c *gin.Context) {
	var req AddGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group := models.Group{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.store.CreateGroup(&group); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": group.ID, "message": "Group created successfully"})
}

func (s *Server) listGroups(c *gin.Context) {
	groups, err := s.store.ListGroups()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) getGroup(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := s.store.GetGroup(req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	c.JSON(http.StatusOK, group)
}

// --- Databases ---

type AddDatabaseRequest struct {
	Name              string `json:"name" binding:"required"`
	Host              string `json:"host" binding:"required"`
	Port              int    `json:"port" binding:"required"`
	Username          string `json:"username" binding:"required"`
	Password          string `json:"password" binding:"required"`
	SID               string `json:"sid"`
	GroupID           *uint  `json:"group_id"`
	MonitoringEnabled *bool  `json:"monitoring_enabled"`
}

func (s *Server) addDatabase(c *gin.Context) {
	var req AddDatabaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.MonitoringEnabled != nil {
		enabled = *req.MonitoringEnabled
	}

	db := models.Database{
		Name:              req.Name,
		Host:              req.Host,
		Port:              req.Port,
		Username:          req.Username,
		Password:          req.Password,
		SID:               req.SID,
		GroupID:           req.GroupID,
		MonitoringEnabled: enabled,
		Status:            string(metric.StatusUnknown),
	}
	if err := s.store.CreateDatabase(&db); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create database"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": db.ID, "message": "Database created successfully"})
}

func (s *Server) listDatabases(c *gin.Context) {
	databases, err := s.store.ListDatabases()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list databases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"databases": databases})
}

func (s *Server) getDatabase(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db, err := s.store.GetDatabase(req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Database not found"})
		return
	}
	c.JSON(http.StatusOK, db)
}

// checkDatabase runs a synchronous check cycle and returns the summary.
func (s *Server) checkDatabase(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db, err := s.store.GetDatabase(req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Database not found"})
		return
	}

	summary, err := s.monitorService.CheckDatabase(c.Request.Context(), db)
	if err != nil {
		if errors.Is(err, monitor.ErrCheckInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "Check already in progress for this database"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// --- File systems ---

type AddFileSystemRequest struct {
	DatabaseID  uint   `json:"database_id" binding:"required"`
	Path        string `json:"path" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) addFileSystem(c *gin.Context) {
	var req AddFileSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.store.GetDatabase(req.DatabaseID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Owning database not found"})
		return
	}

	fs := models.FileSystem{
		DatabaseID:  req.DatabaseID,
		Path:        req.Path,
		Description: req.Description,
		Status:      string(metric.StatusUnknown),
	}
	if err := s.store.CreateFileSystem(&fs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create filesystem"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": fs.ID, "message": "Filesystem created successfully"})
}

func (s *Server) listFileSystems(c *gin.Context) {
	var req struct {
		DatabaseID *uint `json:"database_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		// No filter, list all
	}

	var (
		fileSystems []models.FileSystem
		err         error
	)
	if req.DatabaseID != nil {
		fileSystems, err = s.store.GetFileSystemsForDatabase(*req.DatabaseID)
	} else {
		fileSystems, err = s.store.ListFileSystems()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list filesystems"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"file_systems": fileSystems})
}

func (s *Server) checkFileSystem(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fs, err := s.store.GetFileSystem(req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Filesystem not found"})
		return
	}

	summary, err := s.monitorService.CheckFileSystem(c.Request.Context(), fs)
	if err != nil {
		if errors.Is(err, monitor.ErrCheckInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "Check already in progress for this filesystem"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// --- Thresholds ---

type AddThresholdRequest struct {
	DatabaseID        *uint    `json:"database_id"`
	GroupID           *uint    `json:"group_id"`
	MetricName        string   `json:"metric_name" binding:"required"`
	WarningThreshold  *float64 `json:"warning_threshold"`
	CriticalThreshold *float64 `json:"critical_threshold"`
	Enabled           *bool    `json:"enabled"`
}

func (s *Server) addThreshold(c *gin.Context) {
	var req AddThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	t := models.Threshold{
		DatabaseID:        req.DatabaseID,
		GroupID:           req.GroupID,
		MetricName:        req.MetricName,
		WarningThreshold:  req.WarningThreshold,
		CriticalThreshold: req.CriticalThreshold,
		Enabled:           enabled,
	}
	if err := s.store.CreateThreshold(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": t.ID, "message": "Threshold created successfully"})
}

func (s *Server) listThresholds(c *gin.Context) {
	thresholds, err := s.store.ListThresholds()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list thresholds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thresholds": thresholds})
}

// resolveThresholds returns the effective thresholds for one database after
// group overlay, useful for verifying precedence from the outside.
func (s *Server) resolveThresholds(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db, err := s.store.GetDatabase(req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Database not found"})
		return
	}

	set, err := threshold.NewResolver(s.store).Resolve(db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve thresholds"})
		return
	}

	effective := make(map[string]models.Threshold, len(set))
	for ref, t := range set {
		effective[ref.Name()] = t
	}

	c.JSON(http.StatusOK, gin.H{"thresholds": effective})
}

// --- Alerts ---

func (s *Server) listAlerts(c *gin.Context) {
	var req struct {
		Limit int `json:"limit,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		// No filter
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	alerts, err := s.store.ListAlerts(req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) listActiveAlerts(c *gin.Context) {
	alerts, err := s.store.ListActiveAlerts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list active alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	var req struct {
		IDRequest
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.store.GetAlert(req.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	if err := s.store.AcknowledgeAlert(req.ID, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to acknowledge alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert acknowledged"})
}

// --- Monitoring control ---

// runMonitoring triggers a full monitoring run in the background. The run
// outlives the request, so it is detached from the request context.
func (s *Server) runMonitoring(c *gin.Context) {
	go s.monitorService.RunAll(context.Background())

	c.JSON(http.StatusAccepted, gin.H{"message": "Monitoring run started"})
}

// --- Check history ---

type HistorySearchRequest struct {
	TargetKind string `json:"target_kind,omitempty"`
	TargetID   *uint  `json:"target_id,omitempty"`
	Status     string `json:"status,omitempty"`
	StartTime  *int64 `json:"start_time,omitempty"` // Unix timestamp
	EndTime    *int64 `json:"end_time,omitempty"`   // Unix timestamp
	Size       int    `json:"size,omitempty"`
	From       int    `json:"from,omitempty"`
}

func (s *Server) searchHistory(c *gin.Context) {
	if s.es == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Elasticsearch is not enabled"})
		return
	}

	var req HistorySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	query := &elasticsearch.SearchQuery{
		TargetKind: req.TargetKind,
		TargetID:   req.TargetID,
		Status:     req.Status,
		Size:       req.Size,
		From:       req.From,
	}
	if req.StartTime != nil {
		t := time.Unix(*req.StartTime, 0)
		query.StartTime = &t
	}
	if req.EndTime != nil {
		t := time.Unix(*req.EndTime, 0)
		query.EndTime = &t
	}

	result, err := s.es.SearchChecks(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": result.Total, "hits": result.Hits})
}

// --- Settings ---

var settingKeys = []string{
	models.SettingEmailHost,
	models.SettingEmailPort,
	models.SettingEmailUser,
	models.SettingEmailFrom,
	models.SettingAlertRecipients,
}

// getSettings returns the mail and recipient settings. The SMTP password is
// never echoed back.
func (s *Server) getSettings(c *gin.Context) {
	settings := make(map[string]string, len(settingKeys))
	for _, key := range settingKeys {
		value, err := s.store.GetSetting(key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read settings"})
			return
		}
		settings[key] = value
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (s *Server) updateSettings(c *gin.Context) {
	var req struct {
		Settings map[string]string `json:"settings" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range req.Settings {
		if err := s.store.UpdateSetting(key, value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting " + key})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Settings updated successfully"})
}

// --- ITSD integration ---

func (s *Server) getItsdIntegration(c *gin.Context) {
	integration, err := s.store.GetItsdIntegration()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read integration"})
		return
	}
	if integration == nil {
		c.JSON(http.StatusOK, gin.H{"integration": nil})
		return
	}

	// Never echo credentials
	integration.APIKey = ""
	integration.Password = ""
	c.JSON(http.StatusOK, gin.H{"integration": integration})
}

func (s *Server) updateItsdIntegration(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
		APIKey   string `json:"api_key"`
		Username string `json:"username"`
		Password string `json:"password"`
		Enabled  bool   `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	integration := &models.ItsdIntegration{
		Endpoint: req.Endpoint,
		APIKey:   req.APIKey,
		Username: req.Username,
		Password: req.Password,
		Enabled:  req.Enabled,
	}
	if err := s.store.UpdateItsdIntegration(integration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update integration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Integration updated successfully"})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
