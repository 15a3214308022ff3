package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dbwatch/internal/config"
	"dbwatch/internal/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// CheckDoc is one completed check cycle indexed for searchable history.
type CheckDoc struct {
	TargetKind string             `json:"target_kind"` // database, filesystem
	TargetID   uint               `json:"target_id"`
	TargetName string             `json:"target_name"`
	Host       string             `json:"host"`
	Status     string             `json:"status"`
	LatencyMS  int64              `json:"latency_ms,omitempty"`
	Alerts     int                `json:"alerts"`
	Message    string             `json:"message,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Timestamp  time.Time          `json:"@timestamp"`
}

// AlertDoc mirrors a recorded alert for history search.
type AlertDoc struct {
	AlertID      uint      `json:"alert_id"`
	DatabaseID   *uint     `json:"database_id,omitempty"`
	FileSystemID *uint     `json:"file_system_id,omitempty"`
	MetricName   string    `json:"metric_name"`
	MetricValue  *float64  `json:"metric_value,omitempty"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"@timestamp"`
}

type Client struct {
	es     *elasticsearch.Client
	config config.ElasticsearchConfig
}

func NewClient(cfg config.ElasticsearchConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.String())
	}

	logger.Info("Elasticsearch client initialized")

	return &Client{es: es, config: cfg}, nil
}

func (c *Client) checkIndex() string {
	return fmt.Sprintf("%s-checks-%s", c.config.IndexPrefix, time.Now().Format("2006.01.02"))
}

func (c *Client) alertIndex() string {
	return fmt.Sprintf("%s-alerts-%s", c.config.IndexPrefix, time.Now().Format("2006.01.02"))
}

func (c *Client) index(indexName string, doc interface{}) error {
	if c == nil || c.es == nil {
		return nil
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := esapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(context.Background(), c.es)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch indexing error: %s", res.String())
	}

	return nil
}

// IndexCheck records a completed check cycle; daily rolling index.
func (c *Client) IndexCheck(doc *CheckDoc) error {
	if c == nil || c.es == nil {
		return nil
	}
	doc.Timestamp = time.Now().UTC()
	return c.index(c.checkIndex(), doc)
}

// IndexAlert records an alert document; daily rolling index.
func (c *Client) IndexAlert(doc *AlertDoc) error {
	if c == nil || c.es == nil {
		return nil
	}
	doc.Timestamp = time.Now().UTC()
	return c.index(c.alertIndex(), doc)
}

// SearchQuery narrows a check-history search.
type SearchQuery struct {
	TargetKind string     `json:"target_kind,omitempty"`
	TargetID   *uint      `json:"target_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Size       int        `json:"size,omitempty"`
	From       int        `json:"from,omitempty"`
}

type SearchResult struct {
	Total int64      `json:"total"`
	Hits  []CheckDoc `json:"hits"`
}

// SearchChecks queries check history across the daily indices.
func (c *Client) SearchChecks(query *SearchQuery) (*SearchResult, error) {
	if c == nil || c.es == nil {
		return &SearchResult{Hits: []CheckDoc{}}, nil
	}

	var must []map[string]interface{}

	if query.TargetKind != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"target_kind": query.TargetKind},
		})
	}
	if query.TargetID != nil {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"target_id": *query.TargetID},
		})
	}
	if query.Status != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"status": query.Status},
		})
	}
	if query.StartTime != nil || query.EndTime != nil {
		rangeQuery := map[string]interface{}{}
		if query.StartTime != nil {
			rangeQuery["gte"] = query.StartTime.Format(time.RFC3339)
		}
		if query.EndTime != nil {
			rangeQuery["lte"] = query.EndTime.Format(time.RFC3339)
		}
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"@timestamp": rangeQuery},
		})
	}

	size := query.Size
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	searchBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"size": size,
		"from": query.From,
		"sort": []map[string]interface{}{
			{"@timestamp": map[string]interface{}{"order": "desc"}},
		},
	}

	body, err := json.Marshal(searchBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{fmt.Sprintf("%s-checks-*", c.config.IndexPrefix)},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(context.Background(), c.es)
	if err != nil {
		return nil, fmt.Errorf("failed to search checks: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source CheckDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	result := &SearchResult{
		Total: response.Hits.Total.Value,
		Hits:  make([]CheckDoc, 0, len(response.Hits.Hits)),
	}
	for _, hit := range response.Hits.Hits {
		result.Hits = append(result.Hits, hit.Source)
	}

	return result, nil
}
