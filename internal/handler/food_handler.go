package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "rescueboard/internal/errors"
	"rescueboard/internal/model"
	"rescueboard/internal/service"
)

// FoodHandler serves the listing endpoints.
type FoodHandler struct {
	foodService service.FoodService
}

// NewFoodHandler creates a FoodHandler.
func NewFoodHandler(foodService service.FoodService) *FoodHandler {
	return &FoodHandler{foodService: foodService}
}

// FoodResponse wraps a single food with a confirmation message.
type FoodResponse struct {
	Message string      `json:"message"`
	Food    *model.Food `json:"food"`
}

// ListQuery holds the optional status filter of GET /foods.
type ListQuery struct {
	Status string `json:"status" query:"status" validate:"omitempty,max=20"`
}

type createFoodRequest struct {
	Title       string `json:"title" form:"title"`
	Location    string `json:"location" form:"location"`
	Description string `json:"description" form:"description"`
}

// Index godoc
// @Summary List foods, available only unless status is given
// @Tags foods
// @Produce json
// @Security BearerAuth
// @Param status query string false "Exact status filter"
// @Success 200 {array} model.Food
// @Failure 401 {object} errors.ErrorResponse
// @Router /foods [get]
func (h *FoodHandler) Index(c echo.Context) error {
	var q ListQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query.")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	var status *string
	if q.Status != "" {
		status = &q.Status
	}
	foods, err := h.foodService.List(c.Request().Context(), status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, foods)
}

// All godoc
// @Summary List foods of every status
// @Tags foods
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Food
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /foods/all [get]
func (h *FoodHandler) All(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	foods, err := h.foodService.ListAll(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, foods)
}

// Stats godoc
// @Summary Count foods by status
// @Tags foods
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.FoodStats
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /foods/stats [get]
func (h *FoodHandler) Stats(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	stats, err := h.foodService.Stats(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Mine godoc
// @Summary List foods posted by the authenticated user
// @Tags foods
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Food
// @Failure 401 {object} errors.ErrorResponse
// @Router /my-foods [get]
func (h *FoodHandler) Mine(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	foods, err := h.foodService.MyFoods(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, foods)
}

// Create godoc
// @Summary Post a food listing
// @Tags foods
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param location formData string true "Pickup location"
// @Param description formData string false "Description"
// @Param image formData file false "Photo (jpeg, png or webp, max 5MB)"
// @Success 201 {object} FoodResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /foods [post]
func (h *FoodHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createFoodRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body.").SetInternal(err)
	}

	// Blank input counts as missing.
	in := service.CreateFoodInput{
		Title:    strings.TrimSpace(req.Title),
		Location: strings.TrimSpace(req.Location),
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		in.Description = &desc
	}

	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		file, err := fh.Open()
		if err != nil {
			return fmt.Errorf("open upload: %w", err)
		}
		defer file.Close()
		in.Image = &service.ImageUpload{Filename: fh.Filename, Size: fh.Size, Content: file}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// no image
	default:
		return apperrors.NewValidationError("image", "The image failed to upload.")
	}

	food, err := h.foodService.Create(c.Request().Context(), user, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, FoodResponse{Message: "Food posted successfully!", Food: food})
}

// Claim godoc
// @Summary Claim an available food
// @Tags foods
// @Produce json
// @Security BearerAuth
// @Param id path int true "Food ID"
// @Success 200 {object} FoodResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /foods/{id}/claim [post]
func (h *FoodHandler) Claim(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := foodID(c)
	if err != nil {
		return err
	}

	food, err := h.foodService.Claim(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FoodResponse{Message: "Food claimed successfully!", Food: food})
}

// Delete godoc
// @Summary Delete a food listing (admin only)
// @Tags foods
// @Produce json
// @Security BearerAuth
// @Param id path int true "Food ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /foods/{id} [delete]
func (h *FoodHandler) Delete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := foodID(c)
	if err != nil {
		return err
	}

	if err := h.foodService.Delete(c.Request().Context(), user, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Food deleted successfully."})
}

func foodID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.ErrFoodNotFound
	}
	return uint(id), nil
}
