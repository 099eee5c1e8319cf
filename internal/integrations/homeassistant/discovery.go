package homeassistant

import (
	"fmt"
	"strings"

	"object-detection-sensor/config"

	log "github.com/sirupsen/logrus"
)

// Constants for Home Assistant MQTT Discovery
const (
	// Standard-Präfix, falls keiner konfiguriert ist
	DefaultDiscoveryPrefix = "homeassistant"

	// Component-Typ für Sensoren
	ComponentSensor = "sensor"

	// Node-ID für den Objekterkennungs-Sensor
	NodeID = "object_detection"

	// TopicBase ist der Präfix aller eigenen Topics
	TopicBase = "object-detection"

	// AvailabilityTopic meldet online/offline
	AvailabilityTopic = TopicBase + "/status"

	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// MQTTPublisher ist die Teilmenge des MQTT-Clients, die hier benötigt wird
type MQTTPublisher interface {
	Publish(topic string, payload any) error
	PublishRetain(topic string, payload any) error
}

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryManager verwaltet die Home Assistant MQTT Discovery
type DiscoveryManager struct {
	publisher MQTTPublisher
	prefix    string
	version   string
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(publisher MQTTPublisher, cfg config.HomeAssistantConfig, version string) *DiscoveryManager {
	prefix := cfg.DiscoveryPrefix
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	return &DiscoveryManager{publisher: publisher, prefix: prefix, version: version}
}

// UniqueID normalisiert den Sensornamen für Topics (Kleinbuchstaben, Unterstriche)
func UniqueID(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return NodeID
	}
	return strings.Join(fields, "_")
}

// StateTopic liefert das State-Topic eines Sensors
func StateTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/state", TopicBase, uniqueID)
}

// AttributesTopic liefert das Attribut-Topic eines Sensors
func AttributesTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/attributes", TopicBase, uniqueID)
}

// DiscoveryTopic liefert das Config-Topic für Home Assistant
func (dm *DiscoveryManager) DiscoveryTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", dm.prefix, ComponentSensor, NodeID, uniqueID)
}

// RegisterSensor veröffentlicht die Discovery-Konfiguration für den Sensor
func (dm *DiscoveryManager) RegisterSensor(name string) error {
	uid := UniqueID(name)
	sensorConfig := SensorConfig{
		Name:                name,
		UniqueID:            uid,
		StateTopic:          StateTopic(uid),
		JSONAttributesTopic: AttributesTopic(uid),
		Icon:                "mdi:cctv",
		AvailabilityTopic:   AvailabilityTopic,
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		Device: &Device{
			Identifiers:  []string{"object_detection_" + uid},
			Name:         name,
			Manufacturer: "Object Detection",
			Model:        "Rekognition Sensor",
			SWVersion:    dm.version,
		},
	}

	log.Infof("Registering Home Assistant sensor: %s", name)
	if err := dm.publisher.PublishRetain(dm.DiscoveryTopic(uid), sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// PublishAvailability veröffentlicht den Online-Status
func (dm *DiscoveryManager) PublishAvailability(online bool) error {
	status := PayloadOffline
	if online {
		status = PayloadOnline
	}
	return dm.publisher.PublishRetain(AvailabilityTopic, status)
}
