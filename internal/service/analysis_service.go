package service

import (
	"fmt"
	"os"
	"path/filepath"

	"embryo-score-go/internal/model"
	"embryo-score-go/internal/repository"

	"github.com/sirupsen/logrus"
)

// AnalysisService сервис хранения анализов и их артефактов
type AnalysisService struct {
	repo      repository.AnalysisRepository
	logger    *logrus.Logger
	staticDir string
}

// NewAnalysisService создает новый сервис хранения анализов
func NewAnalysisService(repo repository.AnalysisRepository, logger *logrus.Logger, staticDir string) *AnalysisService {
	return &AnalysisService{
		repo:      repo,
		logger:    logger,
		staticDir: staticDir,
	}
}

// analysisDir каталог артефактов анализа
func (s *AnalysisService) analysisDir(analysisID string) string {
	return filepath.Join(s.staticDir, "analyses", analysisID)
}

// SavePlateFrame сохраняет репрезентативный кадр планшета
func (s *AnalysisService) SavePlateFrame(analysisID string, jpeg []byte) (string, error) {
	path := filepath.Join(s.analysisDir(analysisID), "plate_frame.jpg")
	if err := s.writeFile(path, jpeg); err != nil {
		return "", fmt.Errorf("failed to save plate frame: %w", err)
	}
	return path, nil
}

// SaveEmbryoImages сохраняет лучший кадр, тепловую карту и составное изображение эмбриона.
// Пустые изображения пропускаются, их путь остается пустым.
func (s *AnalysisService) SaveEmbryoImages(analysisID string, index int, crop, motion, composite []byte) (ArtifactPaths, error) {
	dir := filepath.Join(s.analysisDir(analysisID), fmt.Sprintf("embryo_%d", index))

	var paths ArtifactPaths
	targets := []struct {
		data []byte
		name string
		dst  *string
	}{
		{crop, "crop.jpg", &paths.Crop},
		{motion, "motion.jpg", &paths.Motion},
		{composite, "composite.jpg", &paths.Composite},
	}

	for _, t := range targets {
		if len(t.data) == 0 {
			continue
		}
		path := filepath.Join(dir, t.name)
		if err := s.writeFile(path, t.data); err != nil {
			return paths, fmt.Errorf("failed to save %s for embryo %d: %w", t.name, index, err)
		}
		*t.dst = path
	}
	return paths, nil
}

// SaveAnalysis сохраняет анализ в базе данных
func (s *AnalysisService) SaveAnalysis(analysis *model.Analysis) error {
	s.logger.Infof("Сохраняем анализ в БД. Количество эмбрионов: %d", len(analysis.Embryos))

	if err := s.repo.Create(analysis); err != nil {
		s.logger.Errorf("Ошибка сохранения анализа в БД: %v", err)
		return fmt.Errorf("failed to save analysis to database: %w", err)
	}

	s.logger.Infof("Анализ %s успешно сохранен в БД", analysis.ID)
	return nil
}

// GetAnalysis получает анализ по ID
func (s *AnalysisService) GetAnalysis(analysisID string) (*model.Analysis, error) {
	s.logger.Infof("Получаем анализ %s из базы данных", analysisID)

	analysis, err := s.repo.GetByID(analysisID)
	if err != nil {
		s.logger.Errorf("Ошибка получения анализа: %v", err)
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return analysis, nil
}

// ListAnalyses получает список анализов с пагинацией
func (s *AnalysisService) ListAnalyses(page, pageSize int) (*ListAnalysesResponse, error) {
	s.logger.Infof("Получаем список анализов: страница %d, размер %d", page, pageSize)

	analyses, total, err := s.repo.List(page, pageSize)
	if err != nil {
		s.logger.Errorf("Ошибка получения списка анализов: %v", err)
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	response := &ListAnalysesResponse{
		Analyses: make([]AnalysisSummary, len(analyses)),
		Total:    total,
		Page:     page,
		Size:     pageSize,
	}
	for i, a := range analyses {
		response.Analyses[i] = toSummary(a)
	}

	s.logger.Infof("Получено %d анализов из %d общих", len(analyses), total)
	return response, nil
}

// DeleteAnalysis удаляет анализ и каталог его артефактов
func (s *AnalysisService) DeleteAnalysis(analysisID string) error {
	s.logger.Infof("Удаляем анализ %s", analysisID)

	if err := s.repo.Delete(analysisID); err != nil {
		s.logger.Errorf("Ошибка удаления анализа из БД: %v", err)
		return fmt.Errorf("failed to delete analysis from database: %w", err)
	}

	dir := s.analysisDir(analysisID)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warnf("Не удалось удалить каталог артефактов %s: %v", dir, err)
	}

	s.logger.Infof("Анализ %s успешно удален", analysisID)
	return nil
}

// Ping проверяет доступность хранилища
func (s *AnalysisService) Ping() error {
	return s.repo.Ping()
}

// writeFile создает каталоги и записывает файл
func (s *AnalysisService) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.logger.Errorf("Ошибка создания директории %s: %v", filepath.Dir(path), err)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.logger.Errorf("Ошибка записи файла %s: %v", path, err)
		return err
	}
	s.logger.Debugf("Файл сохранен: %s (%d байт)", path, len(data))
	return nil
}
