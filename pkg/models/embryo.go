package models

// BoundingBox представляет область эмбриона в процентах от размеров кадра.
// Формат общий для всех границ системы и должен оставаться совместимым
// с историческими потребителями.
type BoundingBox struct {
	XPercent      float64 `json:"x_percent"`      // Центр по X, % ширины кадра
	YPercent      float64 `json:"y_percent"`      // Центр по Y, % высоты кадра
	WidthPercent  float64 `json:"width_percent"`  // Диаметр, % ширины кадра
	HeightPercent float64 `json:"height_percent"` // Диаметр, % высоты кадра
	RadiusPx      float64 `json:"radius_px"`      // Радиус в пикселях
}

// AnalyzeRequest представляет запрос на полный анализ видео
type AnalyzeRequest struct {
	VideoPath     string        `json:"-"`              // Путь к локальной копии видео (не сериализуем)
	VideoFilename string        `json:"video_filename"` // Имя видео файла
	ExpectedCount int           `json:"expected_count"` // Ожидаемое количество эмбрионов (0 - неизвестно)
	BBoxes        []BoundingBox `json:"bboxes"`         // Области от биолога (заменяют детекцию)
}

// DetectResponse представляет ответ детекции без кинетики
type DetectResponse struct {
	Status              string        `json:"status"`                         // Статус выполнения (success/error)
	Message             string        `json:"message"`                        // Сообщение о результате
	BBoxes              []BoundingBox `json:"bboxes"`                         // Найденные области
	DetectionMethod     string        `json:"detection_method"`               // Метод детекции
	DetectionConfidence string        `json:"detection_confidence,omitempty"` // Уверенность относительно expected_count
	PlateFrameB64       string        `json:"plate_frame_b64,omitempty"`      // Репрезентативный кадр (JPEG, base64)
}

// KineticProfile содержит кинетические биомаркеры одного эмбриона
type KineticProfile struct {
	CoreActivity          int     `json:"core_activity"`           // Активность ядра [0,100]
	PeripheryActivity     int     `json:"periphery_activity"`      // Активность периферии [0,100]
	PeakZone              string  `json:"peak_zone"`               // core/periphery/uniform
	TemporalPattern       string  `json:"temporal_pattern"`        // increasing/decreasing/irregular/stable
	TemporalVariability   float64 `json:"temporal_variability"`    // СКО временного ряда разностей
	ActivitySymmetry      float64 `json:"activity_symmetry"`       // Симметрия по квадрантам [0,1]
	FocalActivityDetected bool    `json:"focal_activity_detected"` // Один квадрант > 50% энергии
	NSD                   float64 `json:"nsd"`                     // Нормированное СКО
	ANR                   float64 `json:"anr"`                     // Отношение активности к шуму
}

// ReviewResult представляет структурированную качественную оценку
type ReviewResult struct {
	Classification    string          `json:"classification"`
	StageCode         *int            `json:"stage_code"`
	QualityGrade      *int            `json:"quality_grade"`
	Reasoning         string          `json:"reasoning"`
	VisualFeatures    *VisualFeatures `json:"visual_features"`
	KineticAssessment string          `json:"kinetic_assessment,omitempty"`
	Confidence        string          `json:"confidence"`
}

// VisualFeatures морфологические признаки из качественной оценки
type VisualFeatures struct {
	MCIQuality           string `json:"mci_quality"`
	TrophectodermQuality string `json:"trophectoderm_quality"`
	ZonaPellucidaIntact  bool   `json:"zona_pellucida_intact"`
	ExtrudedCells        bool   `json:"extruded_cells"`
	DebrisInZona         bool   `json:"debris_in_zona"`
	DarkCytoplasm        bool   `json:"dark_cytoplasm"`
	Shape                string `json:"shape"`
}

// EmbryoResult содержит итог анализа одного эмбриона
type EmbryoResult struct {
	Index               int            `json:"index"`                 // Индекс в порядке чтения
	BBox                BoundingBox    `json:"bbox"`                  // Геометрия области
	ActivityScore       int            `json:"activity_score"`        // Оценка активности [0,100]
	KineticProfile      KineticProfile `json:"kinetic_profile"`       // Кинетический профиль
	KineticQualityScore int            `json:"kinetic_quality_score"` // Кинетическое качество [0,100]
	CropImagePath       string         `json:"crop_image_path"`       // Путь к лучшему кадру
	MotionMapPath       string         `json:"motion_map_path"`       // Путь к тепловой карте движения
	CompositePath       string         `json:"composite_path"`        // Путь к составному изображению
	Embedding           []float32      `json:"embedding,omitempty"`   // Вектор эмбеддинга
	Review              *ReviewResult  `json:"review,omitempty"`      // Качественная оценка
}

// AnalyzeResponse представляет ответ полного анализа
type AnalyzeResponse struct {
	Status         string         `json:"status"`           // Статус выполнения (success/error)
	Message        string         `json:"message"`          // Сообщение о результате
	AnalysisID     string         `json:"analysis_id"`      // ID сохраненного анализа
	PlateFramePath string         `json:"plate_frame_path"` // Путь к репрезентативному кадру
	FramesSampled  int            `json:"frames_sampled"`   // Количество обработанных кадров
	BBoxes         []BoundingBox  `json:"bboxes"`           // Геометрия всех областей
	Embryos        []EmbryoResult `json:"embryos"`          // Результаты по эмбрионам
}

// EmbeddingResponse определяет ответ сервиса эмбеддингов
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"` // Вектор фиксированной длины
}

// HealthResponse представляет ответ проверки здоровья сервиса
type HealthResponse struct {
	Status           string `json:"status"`            // Статус сервиса (healthy/degraded/unhealthy)
	DatabaseOK       bool   `json:"database_ok"`       // Доступна ли база данных
	EmbeddingEnabled bool   `json:"embedding_enabled"` // Настроен ли сервис эмбеддингов
	EmbeddingOK      bool   `json:"embedding_ok"`      // Отвечает ли сервис эмбеддингов
	ReviewEnabled    bool   `json:"review_enabled"`    // Настроен ли сервис оценки
	Version          string `json:"version"`           // Версия сервиса
}
