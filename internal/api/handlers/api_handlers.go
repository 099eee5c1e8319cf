package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"object-detection-sensor/internal/database"
	"object-detection-sensor/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	defaultCheckLimit = 20
	maxCheckLimit     = 500
)

// SensorView ist die lesende Sicht auf den Sensor
type SensorView interface {
	Name() string
	State() string
	Attributes() map[string]any
}

// CheckHistory liefert die zuletzt gespeicherten Checks
type CheckHistory interface {
	Recent(limit int) ([]database.CheckRecord, error)
	Count() (int64, error)
}

// APIHandler behandelt API-Anfragen für den Sensor
type APIHandler struct {
	sensor        SensorView
	history       CheckHistory
	stats         utils.PollStats
	fs            afero.Fs
	annotatedPath string
}

// NewAPIHandler erstellt einen neuen API-Handler. history und stats dürfen nil sein,
// annotatedPath ist leer, wenn keine annotierten Bilder erzeugt werden.
func NewAPIHandler(sensor SensorView, history CheckHistory, stats utils.PollStats, fs afero.Fs, annotatedPath string) *APIHandler {
	return &APIHandler{
		sensor:        sensor,
		history:       history,
		stats:         stats,
		fs:            fs,
		annotatedPath: annotatedPath,
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/sensor", h.GetSensor)
	router.GET("/checks", h.ListChecks)
	router.GET("/status", h.GetStatus)
	router.GET("/image/annotated", h.GetAnnotatedImage)
}

// GetSensor liefert Name, State und Attribute
func (h *APIHandler) GetSensor(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":       h.sensor.Name(),
		"state":      h.sensor.State(),
		"attributes": h.sensor.Attributes(),
	})
}

// ListChecks liefert die letzten Checks aus der Historie
func (h *APIHandler) ListChecks(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Check history is disabled"})
		return
	}

	limit := defaultCheckLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxCheckLimit)
	}

	records, err := h.history.Recent(limit)
	if err != nil {
		log.WithError(err).Error("Failed to load check history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load check history"})
		return
	}

	total, err := h.history.Count()
	if err != nil {
		log.WithError(err).Error("Failed to count check history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load check history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checks": records,
		"count":  len(records),
		"total":  total,
	})
}

// GetStatus liefert System- und Poller-Statistiken
func (h *APIHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"sensor":    h.sensor.Name(),
		"system":    utils.GetSystemStats(h.stats),
	})
}

// GetAnnotatedImage liefert das zuletzt annotierte Bild
func (h *APIHandler) GetAnnotatedImage(c *gin.Context) {
	if h.annotatedPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Annotation is not enabled"})
		return
	}

	data, err := afero.ReadFile(h.fs, h.annotatedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No annotated image available yet"})
			return
		}
		log.WithError(err).Errorf("Failed to read %s", h.annotatedPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read annotated image"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}
