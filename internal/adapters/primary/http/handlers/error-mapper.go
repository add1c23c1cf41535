package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ml-governance-service/internal/core/domain"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrNoProductionModel),
		errors.Is(err, domain.ErrDecisionNotFound),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrReportNotFound),
		errors.Is(err, domain.ErrNoReference):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrRegistryConflict),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrNoPreviousVersion),
		errors.Is(err, domain.ErrRetrainingInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrPHIDetected),
		errors.Is(err, domain.ErrKAnonymityViolated),
		errors.Is(err, domain.ErrInsufficientCompleteness),
		errors.Is(err, domain.ErrDatasetQuarantined):
		// hard validation gates: the payload is unacceptable as sent
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrEmptyBatch),
		errors.Is(err, domain.ErrInvalidModelName),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInsufficientSample),
		errors.Is(err, domain.ErrMissingReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrNotificationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
