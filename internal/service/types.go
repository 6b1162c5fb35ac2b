package service

import (
	"time"

	"embryo-score-go/internal/model"
)

// AnalysisSummary краткая информация об анализе для списка
type AnalysisSummary struct {
	ID                  string    `json:"id"`
	VideoFilename       string    `json:"video_filename"`
	Status              string    `json:"status"`
	ExpectedCount       int       `json:"expected_count"`
	EmbryoCount         int       `json:"embryo_count"`
	DetectionMethod     string    `json:"detection_method"`
	DetectionConfidence string    `json:"detection_confidence,omitempty"`
	FramesSampled       int       `json:"frames_sampled"`
	CreatedAt           time.Time `json:"created_at"`
}

// ListAnalysesResponse ответ со списком анализов
type ListAnalysesResponse struct {
	Analyses []AnalysisSummary `json:"analyses"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

// ArtifactPaths пути к изображениям одного эмбриона
type ArtifactPaths struct {
	Crop      string
	Motion    string
	Composite string
}

func toSummary(a *model.Analysis) AnalysisSummary {
	return AnalysisSummary{
		ID:                  a.ID,
		VideoFilename:       a.VideoFilename,
		Status:              a.Status,
		ExpectedCount:       a.ExpectedCount,
		EmbryoCount:         a.EmbryoCount,
		DetectionMethod:     a.DetectionMethod,
		DetectionConfidence: a.DetectionConfidence,
		FramesSampled:       a.FramesSampled,
		CreatedAt:           a.CreatedAt,
	}
}
