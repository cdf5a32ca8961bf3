package repository

import (
	"context"
	"time"

	"cryptoagents/src/database"
	"cryptoagents/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxExceptionsPage = 200

type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{db: database.MainDB}
}

func NewExceptionRepositoryWithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists exc and logs it at error level.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	if exc.CreatedAt.IsZero() {
		exc.CreatedAt = time.Now().UTC()
	}

	logger.WithFields(logger.Fields{
		"component": "exceptions",
		"service":   exc.Service,
		"module":    exc.Module,
		"method":    exc.Method,
		"level":     exc.Level,
	}).Error("persisting system exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// Recent returns the newest exceptions for service, all services when empty.
func (r *ExceptionRepository) Recent(ctx context.Context, service string, limit int) ([]model.Exception, error) {
	if limit <= 0 || limit > maxExceptionsPage {
		limit = maxExceptionsPage
	}

	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if service != "" {
		q = q.Where("service = ?", service)
	}

	var out []model.Exception
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
