package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"object-detection-sensor/internal/detection"

	log "github.com/sirupsen/logrus"
)

// Client repräsentiert einen einzelnen verbundenen SSE-Client
type Client chan []byte

// Hub verwaltet die Menge der aktiven Clients und sendet Broadcasts an sie
type Hub struct {
	clients   map[Client]bool
	broadcast chan []byte
	mu        sync.Mutex
}

// TickEvent definiert die Daten, die nach jedem Tick über SSE gesendet werden
type TickEvent struct {
	Sensor         string         `json:"sensor"`
	Verdict        string         `json:"verdict"`
	State          string         `json:"state"`
	Status         string         `json:"status"`
	Detections     map[string]int `json:"detections"`
	NumberOfChecks int            `json:"number_of_checks"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMs     int64          `json:"duration_ms"`
	Annotated      bool           `json:"annotated"`
	Error          string         `json:"error,omitempty"`
}

// NewHub erstellt eine neue Hub-Instanz
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 100), // Puffer für 100 Nachrichten
		clients:   make(map[Client]bool),
	}
}

// Run verteilt Broadcasts, bis ctx beendet wird. Danach werden alle Clients geschlossen.
func (h *Hub) Run(ctx context.Context) {
	log.Info("SSE Hub started and running")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()
			log.Info("SSE Hub stopped")
			return

		case message := <-h.broadcast:
			h.mu.Lock()
			log.Debugf("Broadcasting message to %d SSE clients", len(h.clients))
			for client := range h.clients {
				select {
				case client <- message:
				default:
					// Client-Kanal ist voll
					log.Warn("SSE client channel full, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register registriert einen neuen Client am Hub
func (h *Hub) Register(client Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Infof("SSE client registered. Total clients: %d", n)
}

// Unregister meldet einen Client vom Hub ab
func (h *Hub) Unregister(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client)
		log.Infof("SSE client unregistered. Total clients: %d", len(h.clients))
	}
}

// ClientCount liefert die Anzahl verbundener Clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sendet eine Nachricht an alle registrierten Clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// OnTick formatiert das Ergebnis eines Ticks und sendet es als Broadcast
func (h *Hub) OnTick(sensorName string, res detection.Result, tickErr error) {
	detections := res.State.Detections
	if detections == nil {
		detections = map[string]int{}
	}
	event := TickEvent{
		Sensor:         sensorName,
		Verdict:        res.Verdict.String(),
		State:          res.State.State,
		Status:         res.State.Status,
		Detections:     detections,
		NumberOfChecks: res.State.NumberOfChecks,
		StartedAt:      res.StartedAt,
		DurationMs:     res.Duration.Milliseconds(),
		Annotated:      res.AnnotatedPath != "",
	}
	if tickErr != nil {
		event.Error = tickErr.Error()
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Failed to marshal tick event for SSE: %v", err)
		return
	}
	h.Broadcast(jsonData)
}
