package model

import (
	"time"

	"embryo-score-go/pkg/models"

	"gorm.io/gorm"
)

// Analysis представляет анализ одного видео в базе данных
type Analysis struct {
	ID            string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	VideoFilename string `gorm:"type:varchar(255)" json:"video_filename"`
	ExpectedCount int    `gorm:"not null;default:0" json:"expected_count"`
	Status        string `gorm:"type:varchar(32);not null;index" json:"status"`
	Message       string `gorm:"type:text" json:"message"`

	// Параметры видео и выборки
	VideoFPS      float64 `gorm:"not null;default:0" json:"video_fps"`
	FrameWidth    int     `gorm:"not null;default:0" json:"frame_width"`
	FrameHeight   int     `gorm:"not null;default:0" json:"frame_height"`
	FramesSampled int     `gorm:"not null;default:0" json:"frames_sampled"`

	// Детекция
	DetectionMethod     string `gorm:"type:varchar(32)" json:"detection_method"`
	DetectionConfidence string `gorm:"type:varchar(16)" json:"detection_confidence"`
	EmbryoCount         int    `gorm:"not null;default:0" json:"embryo_count"`
	PlateFramePath      string `gorm:"type:varchar(500)" json:"plate_frame_path"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Связь с оценками эмбрионов
	Embryos []EmbryoScore `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE" json:"embryos"`
}

// EmbryoScore представляет итог анализа одного эмбриона
type EmbryoScore struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	AnalysisID string `gorm:"type:varchar(36);not null;index" json:"analysis_id"`
	Index      int    `gorm:"not null" json:"index"`

	// Геометрия в процентах кадра
	XPercent      float64 `gorm:"not null" json:"x_percent"`
	YPercent      float64 `gorm:"not null" json:"y_percent"`
	WidthPercent  float64 `gorm:"not null" json:"width_percent"`
	HeightPercent float64 `gorm:"not null" json:"height_percent"`
	RadiusPx      float64 `gorm:"not null" json:"radius_px"`

	// Кинетика
	ActivityScore         int     `gorm:"not null" json:"activity_score"`
	KineticQualityScore   int     `gorm:"not null" json:"kinetic_quality_score"`
	CoreActivity          int     `gorm:"not null" json:"core_activity"`
	PeripheryActivity     int     `gorm:"not null" json:"periphery_activity"`
	PeakZone              string  `gorm:"type:varchar(16)" json:"peak_zone"`
	TemporalPattern       string  `gorm:"type:varchar(16)" json:"temporal_pattern"`
	TemporalVariability   float64 `gorm:"not null;default:0" json:"temporal_variability"`
	ActivitySymmetry      float64 `gorm:"not null;default:1" json:"activity_symmetry"`
	FocalActivityDetected bool    `gorm:"not null;default:false" json:"focal_activity_detected"`
	NSD                   float64 `gorm:"column:nsd;not null;default:0" json:"nsd"`
	ANR                   float64 `gorm:"column:anr;not null;default:0" json:"anr"`

	// Артефакты
	CropImagePath string `gorm:"type:varchar(500)" json:"crop_image_path"`
	MotionMapPath string `gorm:"type:varchar(500)" json:"motion_map_path"`
	CompositePath string `gorm:"type:varchar(500)" json:"composite_path"`

	// Эмбеддинг и качественная оценка
	Embedding         []float32              `gorm:"serializer:json;type:jsonb" json:"embedding,omitempty"`
	Classification    string                 `gorm:"type:varchar(32)" json:"classification"`
	StageCode         *int                   `json:"stage_code"`
	QualityGrade      *int                   `json:"quality_grade"`
	Reasoning         string                 `gorm:"type:text" json:"reasoning"`
	KineticAssessment string                 `gorm:"type:text" json:"kinetic_assessment"`
	ReviewConfidence  string                 `gorm:"type:varchar(16)" json:"review_confidence"`
	VisualFeatures    *models.VisualFeatures `gorm:"serializer:json;type:jsonb" json:"visual_features,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Обратная связь с анализом
	Analysis Analysis `gorm:"foreignKey:AnalysisID;references:ID" json:"-"`
}

// TableName указывает имя таблицы для Analysis
func (Analysis) TableName() string {
	return "analyses"
}

// TableName указывает имя таблицы для EmbryoScore
func (EmbryoScore) TableName() string {
	return "embryo_scores"
}
