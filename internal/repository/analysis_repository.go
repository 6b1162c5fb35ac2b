package repository

import (
	"errors"
	"fmt"

	"embryo-score-go/internal/model"

	"gorm.io/gorm"
)

// ErrNotFound анализ не найден
var ErrNotFound = errors.New("analysis not found")

// AnalysisRepository интерфейс для работы с анализами
type AnalysisRepository interface {
	Create(analysis *model.Analysis) error
	GetByID(id string) (*model.Analysis, error)
	List(page, pageSize int) ([]*model.Analysis, int64, error)
	Delete(id string) error
	Ping() error
}

// analysisRepository реализация AnalysisRepository
type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository создает новый instance AnalysisRepository
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{
		db: db,
	}
}

// Create сохраняет анализ вместе с оценками эмбрионов в одной транзакции
func (r *analysisRepository) Create(analysis *model.Analysis) error {
	tx := r.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	embryos := analysis.Embryos
	analysis.Embryos = nil

	// Сначала создаем анализ
	if err := tx.Create(analysis).Error; err != nil {
		tx.Rollback()
		analysis.Embryos = embryos
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	// Затем создаем оценки эмбрионов
	for i := range embryos {
		embryos[i].ID = 0 // Обнуляем ID для auto-increment
		embryos[i].AnalysisID = analysis.ID
		if err := tx.Create(&embryos[i]).Error; err != nil {
			tx.Rollback()
			analysis.Embryos = embryos
			return fmt.Errorf("failed to create embryo score %d: %w", i, err)
		}
	}
	analysis.Embryos = embryos

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID получает анализ по ID
func (r *analysisRepository) GetByID(id string) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Preload("Embryos", func(db *gorm.DB) *gorm.DB {
		return db.Order("embryo_scores.index ASC")
	}).Where("id = ?", id).First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &analysis, nil
}

// List получает список анализов с пагинацией
func (r *analysisRepository) List(page, pageSize int) ([]*model.Analysis, int64, error) {
	var analyses []*model.Analysis
	var total int64

	// Подсчитываем общее количество
	if err := r.db.Model(&model.Analysis{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	// Получаем анализы с пагинацией
	offset := (page - 1) * pageSize
	err := r.db.Preload("Embryos").
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&analyses).Error

	if err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}

	return analyses, total, nil
}

// Delete удаляет анализ и его оценки
func (r *analysisRepository) Delete(id string) error {
	tx := r.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	// Сначала удаляем оценки эмбрионов
	if err := tx.Where("analysis_id = ?", id).Delete(&model.EmbryoScore{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete embryo scores: %w", err)
	}

	// Затем удаляем анализ
	result := tx.Where("id = ?", id).Delete(&model.Analysis{})
	if result.Error != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete analysis: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		tx.Rollback()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Ping проверяет доступность базы данных
func (r *analysisRepository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
