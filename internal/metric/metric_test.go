package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name string
		want Ref
	}{
		{"cpu", Ref{Class: ClassCPU}},
		{"memory", Ref{Class: ClassMemory}},
		{"connections", Ref{Class: ClassConnections}},
		{"connection_time", Ref{Class: ClassConnectionTime}},
		{"tablespace_SYSTEM", Ref{Class: ClassTablespace, Unit: "SYSTEM"}},
		{"tablespace_USERS_TS", Ref{Class: ClassTablespace, Unit: "USERS_TS"}},
		{"disk_/oracle/data", Ref{Class: ClassDisk, Unit: "/oracle/data"}},
		{"disk", Ref{Class: ClassDisk}},
		{"tablespace_", Ref{Class: "tablespace_"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRef(tt.name), "ParseRef(%q)", tt.name)
	}
}

func TestRefNameRoundTrip(t *testing.T) {
	for _, name := range []string{"cpu", "connections", "tablespace_SYSTEM", "disk_/oracle/data"} {
		assert.Equal(t, name, ParseRef(name).Name())
	}
}

func TestWorse(t *testing.T) {
	assert.Equal(t, StatusCritical, Worse(StatusWarning, StatusCritical))
	assert.Equal(t, StatusCritical, Worse(StatusCritical, StatusHealthy))
	assert.Equal(t, StatusWarning, Worse(StatusHealthy, StatusWarning))
	assert.Equal(t, StatusHealthy, Worse(StatusHealthy, StatusUnknown))
	assert.Equal(t, StatusHealthy, Worse(StatusHealthy, StatusHealthy))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusCritical, StatusFor(SeverityCritical))
	assert.Equal(t, StatusWarning, StatusFor(SeverityWarning))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "90", FormatValue(90))
	assert.Equal(t, "92.5", FormatValue(92.5))
	assert.Equal(t, "0.25", FormatValue(0.25))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 87.65, Round2(87.654321))
	assert.Equal(t, 90.0, Round2(90.0))
	assert.Equal(t, 0.13, Round2(0.125))
}
