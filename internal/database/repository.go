package database

import (
	"time"

	"gorm.io/gorm"
)

// CheckRepository speichert und liest die Check-Historie
type CheckRepository struct {
	db *gorm.DB
}

// NewCheckRepository erstellt eine neue Repository-Instanz
func NewCheckRepository(db *gorm.DB) *CheckRepository {
	return &CheckRepository{db: db}
}

// Save speichert einen Check
func (r *CheckRepository) Save(rec *CheckRecord) error {
	return r.db.Create(rec).Error
}

// Recent liefert die letzten Checks, neueste zuerst
func (r *CheckRepository) Recent(limit int) ([]CheckRecord, error) {
	var records []CheckRecord
	result := r.db.Order("started_at DESC, id DESC").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// Count liefert die Anzahl gespeicherter Checks
func (r *CheckRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&CheckRecord{}).Count(&total).Error
	return total, err
}

// DeleteOlderThan entfernt Checks, die vor cutoff gestartet wurden
func (r *CheckRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Unscoped().Where("started_at < ?", cutoff).Delete(&CheckRecord{})
	return result.RowsAffected, result.Error
}
