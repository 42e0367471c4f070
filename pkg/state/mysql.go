package state

import (
	"fmt"
	"io"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// MySQLStore centralizes run history for fleets with several operator
// hosts. Schema management is gorm AutoMigrate over the shared record
// structs.
type MySQLStore struct {
	db *gorm.DB
}

// OpenMySQL connects using the given DSN, falling back to MYSQL_DSN.
func OpenMySQL(dsn string) (*MySQLStore, error) {
	if dsn == "" {
		dsn = os.Getenv("MYSQL_DSN")
	}
	if dsn == "" {
		return nil, fmt.Errorf("mysql state backend needs a dsn: %w", errdefs.ErrConfiguration)
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql state db: %w: %v", errdefs.ErrConnection, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	if err := db.AutoMigrate(&model.Event{}, &model.GenerationRecord{}, &model.DeploymentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate state schema: %w: %v", errdefs.ErrConnection, err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *MySQLStore) AppendEvent(ev model.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return s.db.Create(&ev).Error
}

func (s *MySQLStore) TrackGeneration(rec model.GenerationRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return s.db.Create(&rec).Error
}

func (s *MySQLStore) TrackDeployment(rec model.DeploymentRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return s.db.Create(&rec).Error
}

func (s *MySQLStore) Events(since, until time.Time, limit int) ([]model.Event, error) {
	if until.IsZero() {
		until = time.Now()
	}
	var out []model.Event
	err := s.db.
		Where("timestamp >= ? AND timestamp <= ?", since, until).
		Order("timestamp DESC, id DESC").
		Limit(normLimit(limit)).
		Find(&out).Error
	return out, err
}

func (s *MySQLStore) Generations(limit int) ([]model.GenerationRecord, error) {
	var out []model.GenerationRecord
	err := s.db.Order("timestamp DESC, id DESC").Limit(normLimit(limit)).Find(&out).Error
	return out, err
}

func (s *MySQLStore) Deployments(router string, limit int) ([]model.DeploymentRecord, error) {
	q := s.db.Order("timestamp DESC, id DESC").Limit(normLimit(limit))
	if router != "" {
		q = q.Where("router = ?", router)
	}
	var out []model.DeploymentRecord
	err := q.Find(&out).Error
	return out, err
}

func (s *MySQLStore) Prune(retention time.Duration, maxGenerations int) error {
	cutoff := time.Now().Add(-retention)
	if err := s.db.Where("timestamp < ?", cutoff).Delete(&model.Event{}).Error; err != nil {
		return err
	}
	if err := s.db.Where("timestamp < ?", cutoff).Delete(&model.DeploymentRecord{}).Error; err != nil {
		return err
	}
	if maxGenerations > 0 {
		var keep []int64
		if err := s.db.Model(&model.GenerationRecord{}).
			Order("timestamp DESC, id DESC").
			Limit(maxGenerations).
			Pluck("id", &keep).Error; err != nil {
			return err
		}
		if len(keep) > 0 {
			if err := s.db.Where("id NOT IN ?", keep).Delete(&model.GenerationRecord{}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *MySQLStore) ExportJSON(w io.Writer, since time.Time) error {
	return exportJSON(s, w, since)
}
