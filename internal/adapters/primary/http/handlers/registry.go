package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/adapters/primary/http/dto"
	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
	"ml-governance-service/internal/metrics"
)

func (h *Handler) RegisterVersion(c *gin.Context) {
	var req dto.RegisterVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.registrySvc.Register(c.Request.Context(),
		req.ModelName, req.ArtifactRef, req.Metrics, req.DatasetVersion, req.Hyperparams)
	if err != nil {
		log.WithError(err).Error("register version failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToModelVersionResponse(version))
}

func (h *Handler) ListVersions(c *gin.Context) {
	modelName := c.Param("name")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	versions, total, err := h.registrySvc.List(c.Request.Context(), modelName, ports.VersionListFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		mapDomainError(c, err)
		return
	}

	items := make([]dto.ModelVersionResponse, 0, len(versions))
	for _, v := range versions {
		items = append(items, dto.ToModelVersionResponse(v))
	}

	c.JSON(http.StatusOK, dto.ListVersionsResponse{
		Items:      items,
		Total:      total,
		PageSize:   limit,
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetProduction(c *gin.Context) {
	version, err := h.registrySvc.Production(c.Request.Context(), c.Param("name"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToModelVersionResponse(version))
}

func (h *Handler) GetVersion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version id"})
		return
	}

	version, err := h.registrySvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToModelVersionResponse(version))
}

func (h *Handler) PromoteVersion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version id"})
		return
	}

	var req dto.PromoteVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.registrySvc.Promote(c.Request.Context(), id, domain.VersionStatus(req.Target))
	if err != nil {
		log.WithError(err).Error("promote version failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToModelVersionResponse(version))
}

func (h *Handler) Rollback(c *gin.Context) {
	modelName := c.Param("name")

	restored, err := h.registrySvc.Rollback(c.Request.Context(), modelName)
	if err != nil {
		log.WithError(err).Error("rollback failed")
		mapDomainError(c, err)
		return
	}
	metrics.RollbacksTotal.WithLabelValues(modelName).Inc()

	c.JSON(http.StatusOK, dto.ToModelVersionResponse(restored))
}

func (h *Handler) CompareVersions(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids query parameter is required"})
		return
	}

	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version id: " + part})
			return
		}
		ids = append(ids, id)
	}

	diff, err := h.registrySvc.Compare(c.Request.Context(), ids)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToVersionDiffResponse(diff))
}
