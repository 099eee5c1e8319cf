package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"object-detection-sensor/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("MQTT client is not connected")

// newPahoClient erstellt den paho-Client, in Tests austauschbar
var newPahoClient = mqtt.NewClient

// Wartezeiten für den ersten Verbindungsaufbau
var (
	connectTimeout       = 10 * time.Second
	connectRetryInterval = 15 * time.Second
)

// Will ist die Last-Will-Nachricht, die der Broker bei Verbindungsabbruch sendet
type Will struct {
	Topic   string
	Payload string
}

// Client ist ein MQTT-Client, der nur veröffentlicht
type Client struct {
	config config.MQTTConfig
	will   *Will
	client mqtt.Client

	// OnConnect wird nach jedem (Wieder-)Verbinden aufgerufen
	OnConnect func()
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{config: cfg}
}

// SetWill setzt die Last-Will-Nachricht. Muss vor Start aufgerufen werden.
func (c *Client) SetWill(topic, payload string) {
	c.will = &Will{Topic: topic, Payload: payload}
}

// BrokerURL liefert die URL des Brokers
func (c *Client) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
}

// Start verbindet den Client mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.BrokerURL())
	opts.SetClientID(c.config.ClientID)

	// Optionale Authentifizierung
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}
	if c.will != nil {
		opts.SetWill(c.will.Topic, c.will.Payload, 1, true)
	}

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	// Automatische Wiederverbindung
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Broker beim Start nicht erreichbar: im Hintergrund weiter versuchen
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)

	c.client = newPahoClient(opts)

	log.Infof("Connecting to MQTT broker at %s", c.BrokerURL())
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// OnConnect läuft, sobald der Broker erreichbar ist
		log.Warnf("MQTT broker at %s not reachable yet, retrying every %s", c.BrokerURL(), connectRetryInterval)
		return nil
	}
	if err := token.Error(); err != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", err)
		return err
	}

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop beendet den MQTT-Client
func (c *Client) Stop() {
	// auch während laufender Verbindungsversuche, damit diese enden
	if c.client != nil {
		log.Info("Disconnecting MQTT client...")
		c.client.Disconnect(250) // 250ms Wartezeit
		log.Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) onConnectHandler(_ mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)
	if c.OnConnect != nil {
		c.OnConnect()
	}
}

func (c *Client) connectionLostHandler(_ mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic
func (c *Client) PublishMessage(topic string, payload any, retain bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	payloadBytes, err := EncodePayload(payload)
	if err != nil {
		return err
	}

	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

// PublishRetain veröffentlicht eine Nachricht mit dem Retain-Flag
func (c *Client) PublishRetain(topic string, payload any) error {
	return c.PublishMessage(topic, payload, true)
}

// Publish veröffentlicht eine Nachricht ohne Retain-Flag
func (c *Client) Publish(topic string, payload any) error {
	return c.PublishMessage(topic, payload, false)
}

// EncodePayload wandelt Strings, Bytes und Zahlen direkt um, alles andere als JSON
func EncodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return []byte(fmt.Sprintf("%v", p)), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
		return b, nil
	}
}
