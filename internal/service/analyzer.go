package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"embryo-score-go/internal/client"
	"embryo-score-go/internal/config"
	"embryo-score-go/internal/detect"
	"embryo-score-go/internal/imaging"
	"embryo-score-go/internal/kinetics"
	"embryo-score-go/internal/metrics"
	"embryo-score-go/internal/model"
	"embryo-score-go/internal/video"
	"embryo-score-go/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// Version версия сервиса в ответе проверки здоровья
const Version = "1.0.0"

// Методы получения областей
const (
	DetectionAuto   = "multi_pass"
	DetectionManual = "manual"
)

const (
	// maxConcurrentEmbryos ограничение одновременных запросов к внешним сервисам
	maxConcurrentEmbryos = 4
	// healthCheckTimeout время ожидания ответа внешнего сервиса при проверке здоровья
	healthCheckTimeout = 5 * time.Second
)

// ErrInvalidRegions области, переданные в запросе, некорректны
var ErrInvalidRegions = errors.New("invalid regions")

// Embedder источник визуальных эмбеддингов
type Embedder interface {
	Enabled() bool
	EmbedOrZero(ctx context.Context, cropJPEG []byte) []float32
	CheckHealth(ctx context.Context) error
}

// Reviewer источник качественной оценки
type Reviewer interface {
	Enabled() bool
	ReviewWithRetry(ctx context.Context, req client.ReviewRequest) *models.ReviewResult
}

// AnalyzerOptions параметры выборки кадров и накопления
type AnalyzerOptions struct {
	SampleFPS        float64
	MaxFrameHeight   int
	MaxSampledFrames int
	OutputSize       int
	CropPadding      float64
	ParallelRegions  bool
}

// OptionsFromConfig извлекает параметры анализа из конфигурации
func OptionsFromConfig(cfg *config.Config) AnalyzerOptions {
	return AnalyzerOptions{
		SampleFPS:        cfg.Analysis.KineticFPS,
		MaxFrameHeight:   cfg.Analysis.MaxFrameHeight,
		MaxSampledFrames: cfg.Analysis.MaxSampledFrames,
		OutputSize:       cfg.Analysis.OutputSize,
		CropPadding:      cfg.Analysis.CropPadding,
		ParallelRegions:  cfg.Analysis.ParallelRegions,
	}
}

// AnalyzerService сервис анализа видео эмбрионов
type AnalyzerService struct {
	detector *detect.Detector
	masks    *kinetics.MaskBuilder
	embedder Embedder
	reviewer Reviewer
	analyses *AnalysisService
	metrics  *metrics.Collector
	opts     AnalyzerOptions
	logger   *logrus.Logger
	newID    func() string
}

// NewAnalyzerService создает новый сервис анализатора
func NewAnalyzerService(
	detector *detect.Detector,
	embedder Embedder,
	reviewer Reviewer,
	analyses *AnalysisService,
	collector *metrics.Collector,
	opts AnalyzerOptions,
	logger *logrus.Logger,
) *AnalyzerService {
	return &AnalyzerService{
		detector: detector,
		masks:    kinetics.NewMaskBuilder(opts.CropPadding),
		embedder: embedder,
		reviewer: reviewer,
		analyses: analyses,
		metrics:  collector,
		opts:     opts,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

// IsVideoError сообщает, что видео непригодно для анализа
func IsVideoError(err error) bool {
	return errors.Is(err, video.ErrOpen) ||
		errors.Is(err, video.ErrNoFrames) ||
		errors.Is(err, video.ErrTooFewFrames)
}

func statusFor(err error) string {
	if IsVideoError(err) {
		return metrics.StatusInvalidData
	}
	return metrics.StatusError
}

// Analyze выполняет полный анализ: детекцию, кинетику, эмбеддинги и качественную оценку
func (s *AnalyzerService) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	s.logger.Infof("Начинаем анализ видео %s (ожидается эмбрионов: %d)", req.VideoFilename, req.ExpectedCount)
	startTime := time.Now()

	response, status, err := s.analyze(ctx, req)
	s.metrics.RecordAnalysis(status, time.Since(startTime))
	if err != nil {
		s.logger.Errorf("Анализ видео %s завершился ошибкой: %v", req.VideoFilename, err)
		return nil, err
	}

	s.logger.Infof("Анализ %s завершен за %v: %d эмбрионов, %d кадров",
		response.AnalysisID, time.Since(startTime), len(response.Embryos), response.FramesSampled)
	return response, nil
}

func (s *AnalyzerService) analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, string, error) {
	if err := ValidateBoxes(req.BBoxes); err != nil {
		return nil, metrics.StatusError, err
	}

	info, plan, err := s.plan(req.VideoPath)
	if err != nil {
		return nil, statusFor(err), err
	}

	frame, err := video.Representative(req.VideoPath, plan)
	if err != nil {
		return nil, statusFor(err), err
	}
	defer frame.Close()

	record := &model.Analysis{
		ID:            s.newID(),
		VideoFilename: req.VideoFilename,
		ExpectedCount: req.ExpectedCount,
		VideoFPS:      info.FPS,
		FrameWidth:    plan.Width,
		FrameHeight:   plan.Height,
	}

	bboxes, err := s.regions(frame, req, record)
	if err != nil {
		return nil, metrics.StatusError, err
	}
	record.EmbryoCount = len(bboxes)

	// Кадр планшета сохраняется даже без найденных эмбрионов
	plateJPEG, err := imaging.EncodeJPEG(frame, imaging.PlateJPEGQuality)
	if err != nil {
		return nil, metrics.StatusError, err
	}
	record.PlateFramePath, err = s.analyses.SavePlateFrame(record.ID, plateJPEG)
	if err != nil {
		return nil, metrics.StatusError, err
	}

	response := &models.AnalyzeResponse{
		Status:         "success",
		AnalysisID:     record.ID,
		PlateFramePath: record.PlateFramePath,
		BBoxes:         bboxes,
		Embryos:        []models.EmbryoResult{},
	}

	if len(bboxes) == 0 {
		s.logger.Warn("Эмбрионы не найдены, кинетический анализ пропущен")
		record.Status = metrics.StatusNoEmbryos
		record.Message = "Эмбрионы не найдены"
		response.Message = record.Message
		s.persist(record)
		return response, metrics.StatusNoEmbryos, nil
	}

	finalized, frames, err := s.accumulate(ctx, req.VideoPath, plan, bboxes)
	if err != nil {
		return nil, statusFor(err), err
	}
	record.FramesSampled = frames
	response.FramesSampled = frames

	embryos, err := s.scoreEmbryos(ctx, record.ID, finalized)
	if err != nil {
		return nil, metrics.StatusError, err
	}
	response.Embryos = embryos

	record.Status = metrics.StatusSuccess
	record.Message = fmt.Sprintf("Проанализировано эмбрионов: %d", len(embryos))
	response.Message = record.Message
	for _, e := range embryos {
		record.Embryos = append(record.Embryos, embryoScore(e))
	}
	s.persist(record)

	return response, metrics.StatusSuccess, nil
}

// persist сохраняет анализ; ошибка хранилища не отменяет готовый результат
func (s *AnalyzerService) persist(record *model.Analysis) {
	if err := s.analyses.SaveAnalysis(record); err != nil {
		s.logger.Errorf("Анализ %s не сохранен в БД: %v", record.ID, err)
	}
}

// Detect находит эмбрионы на репрезентативном кадре без кинетического анализа
func (s *AnalyzerService) Detect(videoPath string, expectedCount int) (*models.DetectResponse, error) {
	s.logger.Infof("Детекция без кинетики (ожидается эмбрионов: %d)", expectedCount)

	_, plan, err := s.plan(videoPath)
	if err != nil {
		return nil, err
	}

	frame, err := video.Representative(videoPath, plan)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	result, err := s.detector.Detect(frame, expectedCount)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	s.recordDetection(result)

	plateJPEG, err := imaging.EncodeJPEG(frame, imaging.PlateJPEGQuality)
	if err != nil {
		return nil, err
	}

	return &models.DetectResponse{
		Status:              "success",
		Message:             fmt.Sprintf("Найдено эмбрионов: %d", len(result.BBoxes)),
		BBoxes:              result.BBoxes,
		DetectionMethod:     DetectionAuto,
		DetectionConfidence: detect.Confidence(len(result.BBoxes), expectedCount),
		PlateFrameB64:       base64.StdEncoding.EncodeToString(plateJPEG),
	}, nil
}

// CheckHealth проверяет состояние сервиса и его зависимостей.
// Недоступный сервис эмбеддингов переводит статус в degraded:
// анализ продолжает работать с нулевыми векторами.
func (s *AnalyzerService) CheckHealth(ctx context.Context) *models.HealthResponse {
	s.logger.Debug("Проверяем состояние сервиса анализатора")

	health := &models.HealthResponse{
		Status:           "healthy",
		DatabaseOK:       true,
		EmbeddingEnabled: s.embedder.Enabled(),
		ReviewEnabled:    s.reviewer.Enabled(),
		Version:          Version,
	}

	if health.EmbeddingEnabled {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := s.embedder.CheckHealth(checkCtx); err != nil {
			s.logger.Warnf("Сервис эмбеддингов недоступен: %v", err)
			health.Status = "degraded"
		} else {
			health.EmbeddingOK = true
		}
	}

	if err := s.analyses.Ping(); err != nil {
		s.logger.Errorf("База данных недоступна: %v", err)
		health.Status = "unhealthy"
		health.DatabaseOK = false
	}
	return health
}

// plan читает параметры видео и строит план выборки
func (s *AnalyzerService) plan(videoPath string) (video.Info, video.Plan, error) {
	info, err := video.ReadInfo(videoPath)
	if err != nil {
		return info, video.Plan{}, err
	}

	plan, err := video.NewPlan(info, video.PlanOptions{
		SampleFPS:      s.opts.SampleFPS,
		MaxFrames:      s.opts.MaxSampledFrames,
		MaxFrameHeight: s.opts.MaxFrameHeight,
	})
	if err != nil {
		return info, plan, err
	}
	if len(plan.Indices) < video.MinSampledFrames {
		return info, plan, fmt.Errorf("%w: %d of %d frames", video.ErrTooFewFrames, len(plan.Indices), info.FrameCount)
	}

	s.logger.Infof("Видео: %.1f fps, %d кадров, %dx%d; выбрано %d кадров с шагом %d",
		info.FPS, info.FrameCount, info.Width, info.Height, len(plan.Indices), plan.Interval)
	return info, plan, nil
}

// regions возвращает области от биолога или результат детекции
func (s *AnalyzerService) regions(frame gocv.Mat, req models.AnalyzeRequest, record *model.Analysis) ([]models.BoundingBox, error) {
	if len(req.BBoxes) > 0 {
		s.logger.Infof("Используем %d областей из запроса, детекция пропущена", len(req.BBoxes))
		record.DetectionMethod = DetectionManual
		return req.BBoxes, nil
	}

	result, err := s.detector.Detect(frame, req.ExpectedCount)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	s.recordDetection(result)

	record.DetectionMethod = DetectionAuto
	record.DetectionConfidence = detect.Confidence(len(result.BBoxes), req.ExpectedCount)
	return result.BBoxes, nil
}

func (s *AnalyzerService) recordDetection(result *detect.Result) {
	labels := make([]string, len(result.Passes))
	for i, p := range result.Passes {
		labels[i] = p.Label
	}
	s.metrics.RecordDetection(len(result.BBoxes), labels)
}

// accumulate строит маски и прогоняет выбранные кадры через накопитель
func (s *AnalyzerService) accumulate(ctx context.Context, videoPath string, plan video.Plan, bboxes []models.BoundingBox) ([]kinetics.FinalizedMetrics, int, error) {
	masks, err := s.masks.Build(plan.Width, plan.Height, bboxes)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build region masks: %w", err)
	}

	acc := kinetics.NewAccumulator(masks, kinetics.Options{
		SampleFPS:  s.opts.SampleFPS,
		OutputSize: s.opts.OutputSize,
		Parallel:   s.opts.ParallelRegions,
	}, s.logger)
	defer acc.Close()

	reader, err := video.OpenSampled(videoPath, plan)
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	if err := stream(ctx, reader, acc); err != nil {
		return nil, acc.Frames(), err
	}
	s.metrics.RecordFrames(acc.Frames())

	if acc.Frames() < video.MinSampledFrames {
		return nil, acc.Frames(), fmt.Errorf("%w: %d frames decoded", video.ErrTooFewFrames, acc.Frames())
	}
	return acc.Finalize(), acc.Frames(), nil
}

// stream передает кадры источника в накопитель до конца потока
func stream(ctx context.Context, src video.FrameSource, acc *kinetics.Accumulator) error {
	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := src.Next(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := acc.ProcessFrame(frame); err != nil {
			return fmt.Errorf("failed to process frame %d: %w", acc.Frames(), err)
		}
	}
}

// scoreEmbryos сохраняет артефакты и запрашивает эмбеддинг и оценку для каждого эмбриона
func (s *AnalyzerService) scoreEmbryos(ctx context.Context, analysisID string, finalized []kinetics.FinalizedMetrics) ([]models.EmbryoResult, error) {
	results := make([]models.EmbryoResult, len(finalized))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEmbryos)
	for i, m := range finalized {
		g.Go(func() error {
			paths, err := s.analyses.SaveEmbryoImages(analysisID, int(m.Handle), m.CropJPEG, m.MotionJPEG, m.CompositeJPEG)
			if err != nil {
				return err
			}

			result := m.EmbryoResult()
			result.CropImagePath = paths.Crop
			result.MotionMapPath = paths.Motion
			result.CompositePath = paths.Composite
			result.Embedding = s.embedder.EmbedOrZero(gctx, m.CropJPEG)
			result.Review = s.reviewer.ReviewWithRetry(gctx, client.ReviewRequest{
				CropJPEG:    m.CropJPEG,
				MotionJPEG:  m.MotionJPEG,
				MetricsText: m.ReviewText(),
			})
			results[i] = result

			s.logger.Infof("Эмбрион %d: активность %d, кинетическое качество %d, классификация %s",
				m.Handle, result.ActivityScore, result.KineticQualityScore, result.Review.Classification)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateBoxes проверяет, что области лежат в пределах кадра
func ValidateBoxes(boxes []models.BoundingBox) error {
	for i, b := range boxes {
		if b.XPercent < 0 || b.XPercent > 100 || b.YPercent < 0 || b.YPercent > 100 {
			return fmt.Errorf("%w: box %d center outside frame", ErrInvalidRegions, i)
		}
		if b.WidthPercent <= 0 || b.WidthPercent > 100 || b.HeightPercent <= 0 || b.HeightPercent > 100 {
			return fmt.Errorf("%w: box %d size must be in (0, 100]", ErrInvalidRegions, i)
		}
	}
	return nil
}

// embryoScore переводит результат эмбриона в запись базы данных
func embryoScore(r models.EmbryoResult) model.EmbryoScore {
	score := model.EmbryoScore{
		Index:                 r.Index,
		XPercent:              r.BBox.XPercent,
		YPercent:              r.BBox.YPercent,
		WidthPercent:          r.BBox.WidthPercent,
		HeightPercent:         r.BBox.HeightPercent,
		RadiusPx:              r.BBox.RadiusPx,
		ActivityScore:         r.ActivityScore,
		KineticQualityScore:   r.KineticQualityScore,
		CoreActivity:          r.KineticProfile.CoreActivity,
		PeripheryActivity:     r.KineticProfile.PeripheryActivity,
		PeakZone:              r.KineticProfile.PeakZone,
		TemporalPattern:       r.KineticProfile.TemporalPattern,
		TemporalVariability:   r.KineticProfile.TemporalVariability,
		ActivitySymmetry:      r.KineticProfile.ActivitySymmetry,
		FocalActivityDetected: r.KineticProfile.FocalActivityDetected,
		NSD:                   r.KineticProfile.NSD,
		ANR:                   r.KineticProfile.ANR,
		CropImagePath:         r.CropImagePath,
		MotionMapPath:         r.MotionMapPath,
		CompositePath:         r.CompositePath,
		Embedding:             r.Embedding,
	}
	if r.Review != nil {
		score.Classification = r.Review.Classification
		score.StageCode = r.Review.StageCode
		score.QualityGrade = r.Review.QualityGrade
		score.Reasoning = r.Review.Reasoning
		score.KineticAssessment = r.Review.KineticAssessment
		score.ReviewConfidence = r.Review.Confidence
		score.VisualFeatures = r.Review.VisualFeatures
	}
	return score
}
