package timezone

import (
	"os"
	"sync"
	"time"
	_ "time/tzdata" // Zeitzonen auch ohne System-tzdata

	log "github.com/sirupsen/logrus"
)

var (
	mu              sync.RWMutex
	currentLocation *time.Location
)

// Initialize setzt die Zeitzone basierend auf der TZ-Umgebungsvariable.
// Diese Funktion sollte beim Programmstart aufgerufen werden.
func Initialize() {
	SetLocation(os.Getenv("TZ"))
}

// SetLocation lädt die Zeitzone name, leer oder unbekannt bedeutet UTC
func SetLocation(name string) {
	loc := time.UTC
	if name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			log.Warnf("Failed to load timezone %s: %v. Falling back to UTC.", name, err)
		} else {
			loc = l
			log.Infof("Successfully initialized timezone to %s", name)
		}
	}

	mu.Lock()
	currentLocation = loc
	mu.Unlock()
}

// Location liefert die konfigurierte Zeitzone
func Location() *time.Location {
	mu.RLock()
	loc := currentLocation
	mu.RUnlock()
	if loc == nil {
		Initialize()
		return Location()
	}
	return loc
}

// Format formatiert ein time.Time-Objekt mit der konfigurierten Zeitzone
func Format(t time.Time, layout string) string {
	return t.In(Location()).Format(layout)
}

// ISO8601 formatiert ein time.Time-Objekt im RFC3339-Format mit der konfigurierten Zeitzone
func ISO8601(t time.Time) string {
	return Format(t, time.RFC3339)
}
