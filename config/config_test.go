package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return dir, path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir, path := writeConfig(t, `
sensor:
  bucket: snapshots
  input_file: /tmp/snapshot.png
  labels_to_find: [Cat, Dog]
`)
	t.Setenv("OBJECT_DETECTION_SERVER_DATA_DIR", dir)
	t.Setenv("OBJECT_DETECTION_LOG_FILE", filepath.Join(dir, "logs", "app.log"))
	t.Setenv("OBJECT_DETECTION_DB_FILE", filepath.Join(dir, "db", "app.db"))

	cfg, err := Load(path)
	require.NoError(t, err)

	s := cfg.Sensor
	assert.Equal(t, "Object Detection", s.Name)
	assert.Equal(t, []string{"Cat", "Dog"}, s.LabelsToFind)
	assert.Equal(t, 30.0, s.MinConfidence)
	assert.Equal(t, 20, s.MaxLabels)
	assert.Equal(t, 1000, s.MaxAllowedChecks)
	assert.Equal(t, 60, s.MinSecondsBetweenChecks)
	assert.Equal(t, 24, s.HoursBetweenCheckCountReset)
	assert.Equal(t, 1, s.Variant)
	assert.False(t, s.AdvanceLastCheck)
	assert.Equal(t, 2, s.DetectionBoxWidth)
	assert.Equal(t, "Red", s.DetectionBoxColor)
	assert.Equal(t, 25, s.DetectionBoxFontSize)
	assert.Equal(t, 1, s.DetectionBoxStrokeWidth)
	assert.Equal(t, "Red", s.DetectionBoxStrokeColor, "stroke color falls back to box color")
	assert.Equal(t, "s3.us-east-2.amazonaws.com", s.S3Endpoint)
	assert.Equal(t, 5, cfg.Poll.ScanIntervalSeconds)

	assert.DirExists(t, filepath.Join(dir, "logs"))
	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	_, path := writeConfig(t, `
server:
  data_dir: ""
log:
  file: ""
db:
  enabled: false
sensor:
  bucket: from-file
  input_file: /tmp/in.png
`)
	t.Setenv("OBJECT_DETECTION_SENSOR_BUCKET", "from-env")
	t.Setenv("OBJECT_DETECTION_SENSOR_MAX_ALLOWED_CHECKS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Sensor.Bucket)
	assert.Equal(t, 7, cfg.Sensor.MaxAllowedChecks)
}

func TestValidate(t *testing.T) {
	base := Config{
		Sensor: SensorConfig{Bucket: "b", InputFile: "/tmp/x.png", Variant: 1},
		Poll:   PollConfig{ScanIntervalSeconds: 5},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing input file", mutate: func(c *Config) { c.Sensor.InputFile = "" }, wantErr: "input_file"},
		{name: "missing bucket", mutate: func(c *Config) { c.Sensor.Bucket = "" }, wantErr: "bucket"},
		{name: "bad variant", mutate: func(c *Config) { c.Sensor.Variant = 3 }, wantErr: "variant"},
		{name: "zero interval", mutate: func(c *Config) { c.Poll.ScanIntervalSeconds = 0 }, wantErr: "scan_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
