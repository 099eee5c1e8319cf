package cleanup

import (
	"time"

	"object-detection-sensor/internal/clock"

	log "github.com/sirupsen/logrus"
)

// Pruner deletes history older than a cutoff.
type Pruner interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Service handles the automatic cleanup of old check history.
type Service struct {
	pruner        Pruner
	clock         clock.Clock
	retentionDays int
	checkInterval time.Duration
	stopChan      chan struct{} // Channel to signal stopping the background routine
}

// NewService creates a new cleanup service. It returns nil when cleanup is disabled.
func NewService(pruner Pruner, retentionDays int, checkInterval time.Duration, c clock.Clock) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0).")
		return nil
	}
	if pruner == nil {
		log.Error("Cannot initialize cleanup service: history store is nil")
		return nil
	}
	if c == nil {
		c = clock.Real{}
	}
	log.Infof("Initializing cleanup service: RetentionDays=%d, CheckInterval=%s", retentionDays, checkInterval)
	return &Service{
		pruner:        pruner,
		clock:         c,
		retentionDays: retentionDays,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// StartBackgroundCleanup starts a goroutine that periodically runs the cleanup cycle.
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return // cleanup disabled
	}
	log.Info("Starting background cleanup routine...")

	ticker := time.NewTicker(s.checkInterval)

	go func() {
		defer ticker.Stop()
		s.RunCleanupCycle()
		for {
			select {
			case <-ticker.C:
				s.RunCleanupCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background cleanup routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
		// Already closed
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle deletes history older than the retention period and
// returns the number of removed records.
func (s *Service) RunCleanupCycle() int64 {
	if s == nil || s.retentionDays <= 0 {
		return 0
	}

	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.pruner.DeleteOlderThan(cutoff)
	if err != nil {
		log.Errorf("Cleanup: Error deleting checks older than %s: %v", cutoff.Format(time.RFC3339), err)
		return 0
	}
	if deleted > 0 {
		log.Infof("Cleanup: Deleted %d check(s) older than %s", deleted, cutoff.Format(time.RFC3339))
	} else {
		log.Debug("Cleanup: No old checks found to delete.")
	}
	return deleted
}
