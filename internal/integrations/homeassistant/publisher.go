package homeassistant

import (
	"fmt"
	"sync"
	"time"

	"object-detection-sensor/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// SensorSource ist die Sicht auf einen Sensor, die Home Assistant angezeigt wird
type SensorSource interface {
	Name() string
	State() string
	Attributes() map[string]any
}

// Publisher veröffentlicht State und Attribute eines Sensors via MQTT
type Publisher struct {
	publisher MQTTPublisher
	uniqueID  string

	mu        sync.Mutex
	lastState string
}

// NewPublisher erstellt einen neuen MQTT-Publisher für Home Assistant
func NewPublisher(publisher MQTTPublisher, sensorName string) *Publisher {
	return &Publisher{publisher: publisher, uniqueID: UniqueID(sensorName)}
}

// PublishSensor veröffentlicht State und Attribute. Attribute werden bei jedem
// Aufruf gesendet, der State nur bei Änderungen oder wenn force gesetzt ist.
func (p *Publisher) PublishSensor(src SensorSource, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	attrs := formatAttributes(src.Attributes())
	if err := p.publisher.Publish(AttributesTopic(p.uniqueID), attrs); err != nil {
		return fmt.Errorf("failed to publish attributes: %w", err)
	}

	state := src.State()
	if !force && state == p.lastState {
		return nil
	}
	if err := p.publisher.PublishRetain(StateTopic(p.uniqueID), state); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}
	log.Debugf("Published state %s for %s", state, src.Name())
	p.lastState = state
	return nil
}

// formatAttributes wandelt Zeitstempel in RFC3339 in der konfigurierten Zeitzone um
func formatAttributes(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if t, ok := v.(time.Time); ok {
			out[k] = timezone.ISO8601(t)
			continue
		}
		out[k] = v
	}
	return out
}
