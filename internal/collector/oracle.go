package collector

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"dbwatch/internal/metric"
	"dbwatch/internal/models"

	_ "github.com/sijms/go-ora/v2"
)

const (
	cpuQuery = `SELECT value FROM v$sysmetric WHERE metric_name = 'CPU Usage Per Sec' AND group_id = 2`

	memoryQuery = `SELECT round((total_pga_allocated/(1024*1024*1024)),2) FROM v$pgastat WHERE name = 'total PGA allocated'`

	activeSessionsQuery = `SELECT count(*) FROM v$session WHERE type = 'USER'`

	maxSessionsQuery = `SELECT value FROM v$parameter WHERE name = 'processes'`

	tablespaceQuery = `SELECT df.tablespace_name, df.bytes, fs.bytes
		FROM (SELECT tablespace_name, SUM(bytes) bytes FROM dba_data_files GROUP BY tablespace_name) df,
		     (SELECT tablespace_name, SUM(bytes) bytes FROM dba_free_space GROUP BY tablespace_name) fs
		WHERE df.tablespace_name = fs.tablespace_name`
)

// OracleCollector probes an Oracle instance with a fixed battery of
// metric queries.
type OracleCollector struct {
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration
}

func NewOracleCollector() *OracleCollector {
	return &OracleCollector{ConnectTimeout: 10 * time.Second}
}

func (c *OracleCollector) dsn(db *models.Database) string {
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s?CONNECTION TIMEOUT=%d",
		url.QueryEscape(db.Username),
		url.QueryEscape(db.Password),
		db.Host, db.Port, db.SID,
		int(c.ConnectTimeout.Milliseconds()))
}

// Collect connects, measures latency and runs the metric battery. A connect
// failure returns a CollectionError; the connection is released on every
// exit path.
func (c *OracleCollector) Collect(ctx context.Context, target *models.Database) ([]metric.Sample, time.Duration, error) {
	conn, err := sql.Open("oracle", c.dsn(target))
	if err != nil {
		return nil, 0, &CollectionError{Target: target.Name, Err: err}
	}
	defer conn.Close()

	conn.SetMaxIdleConns(0)
	conn.SetConnMaxLifetime(time.Minute)

	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, c.ConnectTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return nil, 0, &CollectionError{Target: target.Name, Err: err}
	}
	latency := time.Since(start)

	samples := make([]metric.Sample, 0, 8)

	cpu, err := c.queryScalar(ctx, conn, cpuQuery)
	if err != nil {
		return nil, latency, &CollectionError{Target: target.Name, Err: err}
	}
	samples = append(samples, metric.NewSample(
		metric.Ref{Class: metric.ClassCPU}, cpu,
		"CPU usage at %s%%", metric.FormatValue(cpu)))

	memory, err := c.queryScalar(ctx, conn, memoryQuery)
	if err != nil {
		return nil, latency, &CollectionError{Target: target.Name, Err: err}
	}
	samples = append(samples, metric.NewSample(
		metric.Ref{Class: metric.ClassMemory}, memory,
		"Memory usage at %s GB", metric.FormatValue(memory)))

	active, err := c.queryScalar(ctx, conn, activeSessionsQuery)
	if err != nil {
		return nil, latency, &CollectionError{Target: target.Name, Err: err}
	}
	max, err := c.queryScalar(ctx, conn, maxSessionsQuery)
	if err != nil {
		return nil, latency, &CollectionError{Target: target.Name, Err: err}
	}
	if max > 0 {
		utilization := active / max * 100
		samples = append(samples, metric.NewSample(
			metric.Ref{Class: metric.ClassConnections}, utilization,
			"%d active sessions out of %d (%.1f%%)", int(active), int(max), utilization))
	}

	latencyMS := float64(latency.Milliseconds())
	samples = append(samples, metric.NewSample(
		metric.Ref{Class: metric.ClassConnectionTime}, latencyMS,
		"Database response time: %dms", latency.Milliseconds()))

	tablespaces, err := c.collectTablespaces(ctx, conn)
	if err != nil {
		return nil, latency, &CollectionError{Target: target.Name, Err: err}
	}
	samples = append(samples, tablespaces...)

	return samples, latency, nil
}

func (c *OracleCollector) queryScalar(ctx context.Context, conn *sql.DB, query string) (float64, error) {
	var value sql.NullFloat64
	err := conn.QueryRowContext(ctx, query).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("metric query failed: %w", err)
	}
	return value.Float64, nil
}

// collectTablespaces emits one tablespace_<name> sample per tablespace with
// used percent (allocated - free) / allocated * 100, rounded to two decimals.
func (c *OracleCollector) collectTablespaces(ctx context.Context, conn *sql.DB) ([]metric.Sample, error) {
	rows, err := conn.QueryContext(ctx, tablespaceQuery)
	if err != nil {
		return nil, fmt.Errorf("tablespace query failed: %w", err)
	}
	defer rows.Close()

	var samples []metric.Sample
	for rows.Next() {
		var name string
		var allocated, free float64
		if err := rows.Scan(&name, &allocated, &free); err != nil {
			return nil, fmt.Errorf("tablespace scan failed: %w", err)
		}
		if allocated <= 0 {
			continue
		}
		percentUsed := metric.Round2((allocated - free) / allocated * 100)
		samples = append(samples, metric.NewSample(
			metric.Ref{Class: metric.ClassTablespace, Unit: name}, percentUsed,
			"Tablespace %s usage at %s%%", name, metric.FormatValue(percentUsed)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tablespace rows failed: %w", err)
	}

	return samples, nil
}
