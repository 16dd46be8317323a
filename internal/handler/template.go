package handler

import (
	"errors"
	"net/http"
	"strconv"

	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"

	"github.com/labstack/echo/v4"
)

// GET /api/templates?all=true
func (h *Handler) ListTemplates(c echo.Context) error {
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	templates, err := h.Templates.List(c.Request().Context(), all)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to list templates", "DATABASE_ERROR", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Templates retrieved", map[string]any{
		"templates": templates,
		"total":     len(templates),
	})
}

// POST /api/templates
func (h *Handler) CreateTemplate(c echo.Context) error {
	var req model.TemplateRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := req.Validate(); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}

	tpl, err := h.Templates.Create(c.Request().Context(), req)
	if err != nil {
		return templateError(c, err)
	}
	return SuccessResponse(c, http.StatusCreated, "Template created", tpl)
}

// GET /api/templates/:id
func (h *Handler) GetTemplate(c echo.Context) error {
	tpl, err := h.Templates.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return templateError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Template retrieved", tpl)
}

// PUT /api/templates/:id
func (h *Handler) UpdateTemplate(c echo.Context) error {
	var req model.TemplateRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := req.Validate(); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}

	tpl, err := h.Templates.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return templateError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Template updated", tpl)
}

// DELETE /api/templates/:id
func (h *Handler) DeleteTemplate(c echo.Context) error {
	if err := h.Templates.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return templateError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Template deactivated", map[string]any{"id": c.Param("id")})
}

type PreviewRequest struct {
	Phone  string            `json:"phone"`
	Values map[string]string `json:"values"`
}

// POST /api/templates/:id/preview
func (h *Handler) PreviewTemplate(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx := c.Request().Context()
	tpl, err := h.Templates.Get(ctx, c.Param("id"))
	if err != nil {
		return templateError(c, err)
	}

	phone := ""
	if req.Phone != "" {
		if phone, err = h.Phones.Normalize(req.Phone); err != nil {
			return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
		}
	}

	values := h.Broadcast.Values(ctx, phone, req.Values)
	return SuccessResponse(c, http.StatusOK, "Template preview", map[string]any{
		"id":       tpl.ID,
		"rendered": helper.RenderTemplate(tpl.Content, values),
	})
}

func templateError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrTemplateNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Template not found", "TEMPLATE_NOT_FOUND", "")
	case errors.Is(err, model.ErrTemplateExists):
		return ErrorResponse(c, http.StatusConflict, "Template name already exists", "TEMPLATE_EXISTS", "")
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "Template operation failed", "DATABASE_ERROR", err.Error())
	}
}
