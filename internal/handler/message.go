package handler

import (
	"errors"
	"net/http"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/service"
	"gowa-broadcast/internal/session"

	"github.com/labstack/echo/v4"
)

type SendMessageRequest struct {
	To      string `json:"to"`
	Text    string `json:"text"`
	ReplyTo string `json:"replyTo"`
}

// POST /api/messages/send
func (h *Handler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if req.To == "" || req.Text == "" {
		return ErrorResponse(c, http.StatusBadRequest, "Field 'to' and 'text' are required", "VALIDATION_ERROR", "")
	}

	to, err := h.Phones.Normalize(req.To)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}

	if err := h.Session.SendReply(c.Request().Context(), to, req.Text, req.ReplyTo); err != nil {
		return sendError(c, err)
	}
	h.touchContact(c, to)

	return SuccessResponse(c, http.StatusOK, "Message sent", map[string]any{"to": to})
}

// POST /api/messages/send-media (multipart: media, to, caption)
func (h *Handler) SendMedia(c echo.Context) error {
	to, err := h.Phones.Normalize(c.FormValue("to"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}

	fileHeader, err := c.FormFile("media")
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Field 'media' is required", "VALIDATION_ERROR", err.Error())
	}
	data, name, mimeType, err := helper.ReadUpload(fileHeader, h.MediaMaxBytes)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid upload", "INVALID_FILE", err.Error())
	}

	media, err := helper.PrepareMedia(data, name, mimeType, c.FormValue("caption"))
	if err != nil {
		return ErrorResponse(c, http.StatusUnsupportedMediaType, "Unsupported media", "UNSUPPORTED_MEDIA", err.Error())
	}

	if err := h.Session.SendMedia(c.Request().Context(), to, media); err != nil {
		return sendError(c, err)
	}
	h.touchContact(c, to)

	return SuccessResponse(c, http.StatusOK, "Media sent", map[string]any{
		"to":       to,
		"kind":     media.Kind,
		"mimeType": media.MimeType,
		"size":     len(media.Data),
	})
}

// POST /api/messages/send-bulk
func (h *Handler) SendBulk(c echo.Context) error {
	var req service.BulkRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	res, err := h.Broadcast.Submit(c.Request().Context(), req)
	switch {
	case errors.Is(err, service.ErrNoContent):
		return ErrorResponse(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR", "")
	case errors.Is(err, model.ErrTemplateNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Template not found", "TEMPLATE_NOT_FOUND", "")
	case errors.Is(err, model.ErrCategoryNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Category not found", "CATEGORY_NOT_FOUND", "")
	case errors.Is(err, dispatch.ErrInvalidRecipient):
		return ErrorResponse(c, http.StatusBadRequest, "Invalid recipient", "INVALID_PHONE", err.Error())
	case err != nil:
		return sessionError(c, err)
	}

	return SuccessResponse(c, http.StatusAccepted, "Bulk send accepted", res)
}

type CheckNumberRequest struct {
	Phone string `json:"phone"`
}

// POST /api/messages/check
func (h *Handler) CheckNumber(c echo.Context) error {
	var req CheckNumberRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	phone, err := h.Phones.Normalize(req.Phone)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}

	registered, err := h.Session.IsRegistered(c.Request().Context(), phone)
	if err != nil {
		return sendError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Phone number checked", map[string]any{
		"phone":        phone,
		"isRegistered": registered,
	})
}

// touchContact makes sure a directly messaged number exists as a contact.
func (h *Handler) touchContact(c echo.Context, phone string) {
	if h.Contacts == nil {
		return
	}
	if err := h.Contacts.UpsertByPhone(c.Request().Context(), phone, model.ContactFields{IsActive: true}); err != nil {
		h.Log.Warn().Err(err).Str("phone", phone).Msg("failed to record contact")
	}
}

func sendError(c echo.Context, err error) error {
	if errors.Is(err, session.ErrNoActiveSession) || errors.Is(err, session.ErrClosed) {
		return sessionError(c, err)
	}
	return ErrorResponse(c, http.StatusBadGateway, "Failed to send", "SEND_FAILED", err.Error())
}
