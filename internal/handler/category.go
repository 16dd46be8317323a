package handler

import (
	"errors"
	"net/http"
	"strconv"

	"gowa-broadcast/internal/model"

	"github.com/labstack/echo/v4"
)

// GET /api/categories?all=true
func (h *Handler) ListCategories(c echo.Context) error {
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	categories, err := h.Categories.List(c.Request().Context(), all)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to list categories", "DATABASE_ERROR", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Categories retrieved", map[string]any{
		"categories": categories,
		"total":      len(categories),
	})
}

// POST /api/categories
func (h *Handler) CreateCategory(c echo.Context) error {
	var req model.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := req.Validate(); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}

	cat, err := h.Categories.Create(c.Request().Context(), req)
	if err != nil {
		return categoryError(c, err)
	}
	return SuccessResponse(c, http.StatusCreated, "Category created", cat)
}

// GET /api/categories/:id
func (h *Handler) GetCategory(c echo.Context) error {
	cat, err := h.Categories.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return categoryError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Category retrieved", cat)
}

// PUT /api/categories/:id
func (h *Handler) UpdateCategory(c echo.Context) error {
	var req model.CategoryRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := req.Validate(); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}

	cat, err := h.Categories.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return categoryError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Category updated", cat)
}

// DELETE /api/categories/:id
func (h *Handler) DeleteCategory(c echo.Context) error {
	if err := h.Categories.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return categoryError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Category deactivated", map[string]any{"id": c.Param("id")})
}

// GET /api/categories/:id/contacts
func (h *Handler) CategoryContacts(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.Categories.Get(c.Request().Context(), id); err != nil {
		return categoryError(c, err)
	}
	filter, err := contactFilter(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid query", "INVALID_QUERY", err.Error())
	}
	filter.CategoryID = id
	return h.listContacts(c, filter)
}

func categoryError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrCategoryNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Category not found", "CATEGORY_NOT_FOUND", "")
	case errors.Is(err, model.ErrCategoryExists):
		return ErrorResponse(c, http.StatusConflict, "Category name already exists", "CATEGORY_EXISTS", "")
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "Category operation failed", "DATABASE_ERROR", err.Error())
	}
}
