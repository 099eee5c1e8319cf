package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
	Sensor SensorConfig `mapstructure:"sensor"`
	Poll   PollConfig   `mapstructure:"poll"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen für die Check-Historie
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`

	// RetentionDays <= 0 deaktiviert das automatische Aufräumen
	RetentionDays int `mapstructure:"retention_days"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Broker        string              `mapstructure:"broker"`
	Port          int                 `mapstructure:"port"`
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	ClientID      string              `mapstructure:"client_id"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig enthält die Konfiguration für die Home Assistant Integration
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// SensorConfig holds the detection sensor options. Key names follow the
// options the Home Assistant platform accepted.
type SensorConfig struct {
	Name       string `mapstructure:"name"`
	Bucket     string `mapstructure:"bucket"`
	AWSID      string `mapstructure:"aws_id"`
	AWSKey     string `mapstructure:"aws_key"`
	Region     string `mapstructure:"region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	InputFile  string `mapstructure:"input_file"`
	// ImageMaxAge is accepted for compatibility but not used by the pipeline.
	ImageMaxAge                 int      `mapstructure:"image_max_age"`
	LabelsToFind                []string `mapstructure:"labels_to_find"`
	MinConfidence               float64  `mapstructure:"min_confidence"`
	MaxLabels                   int      `mapstructure:"max_labels"`
	MaxAllowedChecks            int      `mapstructure:"max_allowed_checks"`
	MinSecondsBetweenChecks     int      `mapstructure:"min_seconds_between_checks"`
	HoursBetweenCheckCountReset int      `mapstructure:"hours_between_check_count_reset"`
	Variant                     int      `mapstructure:"variant"`
	AdvanceLastCheck            bool     `mapstructure:"advance_last_check"`

	DetectionBoxWidth       int    `mapstructure:"detection_box_width"`
	DetectionBoxColor       string `mapstructure:"detection_box_color"`
	DetectionBoxFontSize    int    `mapstructure:"detection_box_font_size"`
	DetectionBoxStrokeWidth int    `mapstructure:"detection_box_stroke_width"`
	DetectionBoxStrokeColor string `mapstructure:"detection_box_stroke_color"`
}

// PollConfig steuert den Poll-Loop
type PollConfig struct {
	ScanIntervalSeconds int `mapstructure:"scan_interval_seconds"`
	TickTimeoutSeconds  int `mapstructure:"tick_timeout_seconds"` // 0 = kein Timeout
}

// ScanInterval returns the poll interval as a duration.
func (p PollConfig) ScanInterval() time.Duration {
	return time.Duration(p.ScanIntervalSeconds) * time.Second
}

// TickTimeout returns the per-tick timeout, zero when disabled.
func (p PollConfig) TickTimeout() time.Duration {
	return time.Duration(p.TickTimeoutSeconds) * time.Second
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix("OBJECT_DETECTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerivedDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/object-detection.log")

	v.SetDefault("db.enabled", true)
	v.SetDefault("db.file", "/data/object-detection.db")
	v.SetDefault("db.retention_days", 30)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "object-detection")
	v.SetDefault("mqtt.homeassistant.enabled", true)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	// Leere Defaults, damit AutomaticEnv die Schlüssel beim Unmarshal kennt
	v.SetDefault("sensor.bucket", "")
	v.SetDefault("sensor.aws_id", "")
	v.SetDefault("sensor.aws_key", "")
	v.SetDefault("sensor.s3_endpoint", "")
	v.SetDefault("sensor.input_file", "")
	v.SetDefault("sensor.image_max_age", 0)
	v.SetDefault("sensor.labels_to_find", []string{})
	v.SetDefault("sensor.detection_box_stroke_color", "")

	v.SetDefault("sensor.name", "Object Detection")
	v.SetDefault("sensor.region", "us-east-2")
	v.SetDefault("sensor.min_confidence", 30)
	v.SetDefault("sensor.max_labels", 20)
	v.SetDefault("sensor.max_allowed_checks", 1000)
	v.SetDefault("sensor.min_seconds_between_checks", 60)
	v.SetDefault("sensor.hours_between_check_count_reset", 24)
	v.SetDefault("sensor.variant", 1)
	v.SetDefault("sensor.advance_last_check", false)
	v.SetDefault("sensor.detection_box_width", 2)
	v.SetDefault("sensor.detection_box_color", "Red")
	v.SetDefault("sensor.detection_box_font_size", 25)
	v.SetDefault("sensor.detection_box_stroke_width", 1)

	v.SetDefault("poll.scan_interval_seconds", 5)
	v.SetDefault("poll.tick_timeout_seconds", 0)
}

// applyDerivedDefaults fills values that depend on other settings.
func applyDerivedDefaults(cfg *Config) {
	if cfg.Sensor.DetectionBoxStrokeColor == "" {
		cfg.Sensor.DetectionBoxStrokeColor = cfg.Sensor.DetectionBoxColor
	}
	if cfg.Sensor.S3Endpoint == "" {
		cfg.Sensor.S3Endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Sensor.Region)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Sensor.InputFile == "" {
		return fmt.Errorf("sensor.input_file must be set")
	}
	if c.Sensor.Bucket == "" {
		return fmt.Errorf("sensor.bucket must be set")
	}
	if c.Sensor.Variant != 1 && c.Sensor.Variant != 2 {
		return fmt.Errorf("sensor.variant must be 1 or 2, got %d", c.Sensor.Variant)
	}
	if c.Poll.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("poll.scan_interval_seconds must be positive")
	}
	return nil
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if cfg.DB.Enabled && cfg.DB.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.File), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
