package dto

import (
	"time"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
)

type RegisterVersionRequest struct {
	ModelName      string            `json:"model_name" binding:"required,max=100"`
	ArtifactRef    string            `json:"artifact_ref" binding:"required"`
	Metrics        domain.Metrics    `json:"metrics" binding:"required"`
	DatasetVersion string            `json:"dataset_version"`
	Hyperparams    map[string]string `json:"hyperparams"`
}

type PromoteVersionRequest struct {
	Target string `json:"target" binding:"required"`
}

type ModelVersionResponse struct {
	ID             uuid.UUID         `json:"id"`
	ModelName      string            `json:"model_name"`
	Version        int               `json:"version"`
	Metrics        domain.Metrics    `json:"metrics"`
	Hyperparams    map[string]string `json:"hyperparams,omitempty"`
	DatasetVersion string            `json:"dataset_version"`
	ArtifactRef    string            `json:"artifact_ref"`
	Status         string            `json:"status"`
	CreatedAt      string            `json:"created_at"`
	DeployedAt     string            `json:"deployed_at,omitempty"`
}

func ToModelVersionResponse(v *domain.ModelVersion) ModelVersionResponse {
	resp := ModelVersionResponse{
		ID:             v.ID,
		ModelName:      v.ModelName,
		Version:        v.Version,
		Metrics:        v.Metrics,
		Hyperparams:    v.Hyperparams,
		DatasetVersion: v.DatasetVersion,
		ArtifactRef:    v.ArtifactRef,
		Status:         string(v.Status),
		CreatedAt:      v.CreatedAt.Format(time.RFC3339),
	}
	if v.DeployedAt != nil {
		resp.DeployedAt = v.DeployedAt.Format(time.RFC3339)
	}
	return resp
}

type ListVersionsResponse struct {
	Items      []ModelVersionResponse `json:"items"`
	Total      int                    `json:"total"`
	PageSize   int                    `json:"page_size"`
	NextOffset int                    `json:"next_offset"`
}

type VersionDiffResponse struct {
	Versions []ModelVersionResponse `json:"versions"`
	Deltas   []domain.MetricDelta   `json:"deltas"`
}

func ToVersionDiffResponse(diff *domain.VersionDiff) VersionDiffResponse {
	items := make([]ModelVersionResponse, 0, len(diff.Versions))
	for _, v := range diff.Versions {
		items = append(items, ToModelVersionResponse(v))
	}
	return VersionDiffResponse{Versions: items, Deltas: diff.Deltas}
}
