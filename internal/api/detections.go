package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/edgevision/perceptd/internal/api/models"
	"github.com/edgevision/perceptd/internal/events"
)

// registerDetectionRoutes exposes the latest classification result and
// the loaded label set.
func (s *Server) registerDetectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-latest-detection",
		Method:      http.MethodGet,
		Path:        "/api/detections/latest",
		Summary:     "Latest Detection",
		Description: "Most recent classification result, regardless of confidence threshold",
		Tags:        []string{"detections"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct{}) (*models.DetectionResponse, error) {
		src := s.options.Detections
		if src == nil {
			return nil, huma.Error404NotFound("no detections yet")
		}
		result, ok := src.Latest()
		if !ok {
			return nil, huma.Error404NotFound("no detections yet")
		}
		return &models.DetectionResponse{
			Body: models.DetectionData{
				Top:         scoreData(result.Top),
				Scores:      scoreDataList(result.Scores),
				FrameWidth:  result.FrameWidth,
				FrameHeight: result.FrameHeight,
				InferenceMS: result.InferenceMS,
				Timestamp:   result.Timestamp.UTC().Format(time.RFC3339),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-labels",
		Method:      http.MethodGet,
		Path:        "/api/labels",
		Summary:     "Class Labels",
		Description: "Class labels loaded for the active model, in class ID order",
		Tags:        []string{"detections"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.LabelsResponse, error) {
		var labels []string
		if src := s.options.Detections; src != nil {
			labels = src.Labels()
		}
		if labels == nil {
			labels = []string{}
		}
		return &models.LabelsResponse{
			Body: models.LabelsData{
				Labels: labels,
				Count:  len(labels),
			},
		}, nil
	})
}

func scoreData(score events.Score) models.ScoreData {
	return models.ScoreData{
		ClassID:    score.ClassID,
		Label:      score.Label,
		Confidence: score.Confidence,
	}
}

func scoreDataList(scores []events.Score) []models.ScoreData {
	out := make([]models.ScoreData, len(scores))
	for i, sc := range scores {
		out[i] = scoreData(sc)
	}
	return out
}
