package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airtrail/airtrail/internal/config"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableConfig points at a server that has already shut down.
func unreachableConfig(t *testing.T) config.InfluxConfig {
	t.Helper()
	srv := httptest.NewServer(nil)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	srv.Close()

	return config.InfluxConfig{
		Enabled:  true,
		Host:     host,
		Port:     port,
		Protocol: "http",
		Org:      "airtrail",
		Bucket:   "airtrail_performance",
	}
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), filepath.Join(t.TempDir(), "backup.gz"))
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.False(t, m.IsValid())
}

func TestURL(t *testing.T) {
	m := NewManager(config.InfluxConfig{Protocol: "https", Host: "influx.local", Port: "8086"}, zerolog.Nop(), "")
	assert.Equal(t, "https://influx.local:8086", m.URL())
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	err := m.WritePoint(influxdb2_write.NewPointWithMeasurement(MeasurementEngine))
	assert.Error(t, err)
}

func TestConnect_UnreachableWritesBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.gz")
	var logs bytes.Buffer
	m := NewManager(unreachableConfig(t), zerolog.New(&logs), backup)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid())
	assert.Contains(t, logs.String(), "backup")

	p := influxdb2_write.NewPoint(
		MeasurementEngine,
		map[string]string{"session": "s1"},
		map[string]interface{}{"tracked": 3},
		time.Unix(0, 42),
	)
	require.NoError(t, m.WritePoint(p))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	assert.Equal(t, "engine_performance,session=s1 tracked=3i 42\n", string(data))
}

func TestClose_Idempotent(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
