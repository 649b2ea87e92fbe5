package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/routine-builder/internal/models"
	appErrors "github.com/noah-isme/routine-builder/pkg/errors"
)

var errRoutineNotFound = appErrors.Clone(appErrors.ErrNotFound, "routine not found")

func routineIDFromParams(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid routine id")
	}
	return id, nil
}

// cellFromParams reads the :id, :day and :slot path parameters.
func cellFromParams(c *gin.Context) (int, models.TimeKey, error) {
	id, err := routineIDFromParams(c)
	if err != nil {
		return 0, models.TimeKey{}, err
	}
	day, dayErr := strconv.Atoi(c.Param("day"))
	slot, slotErr := strconv.Atoi(c.Param("slot"))
	if dayErr != nil || slotErr != nil {
		return 0, models.TimeKey{}, appErrors.Clone(appErrors.ErrValidation, "day and slot must be integers")
	}
	return id, models.TimeKey{Day: day, Slot: slot}, nil
}
