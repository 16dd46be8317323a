package handler

import (
	"context"
	"net/http"

	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/service"
	"gowa-broadcast/internal/session"
	"gowa-broadcast/internal/ws"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SessionService is the session manager as seen by the HTTP layer.
type SessionService interface {
	Status() session.Status
	Connect(ctx context.Context) (bool, error)
	Reconnect(ctx context.Context) (bool, error)
	Disconnect(ctx context.Context) error
	GetQRCode(ctx context.Context) (string, error)
	SendReply(ctx context.Context, to, text, replyTo string) error
	SendMedia(ctx context.Context, to string, media session.Media) error
	IsRegistered(ctx context.Context, phone string) (bool, error)
}

type JobService interface {
	Get(id string) (model.DispatchJob, error)
	List() []model.DispatchJob
	Cancel(id string) error
}

// JobHistory reads persisted jobs, including those from earlier runs.
type JobHistory interface {
	Recent(ctx context.Context, limit int) ([]model.DispatchJob, error)
}

type ContactService interface {
	Get(ctx context.Context, phone string) (*model.Contact, error)
	List(ctx context.Context, filter model.ContactFilter) ([]model.Contact, int, error)
	UpsertByPhone(ctx context.Context, phone string, fields model.ContactFields) error
	Create(ctx context.Context, c model.NewContact) (*model.Contact, error)
	Update(ctx context.Context, phone string, u model.ContactUpdate) (*model.Contact, error)
	Deactivate(ctx context.Context, phone string) error
}

type CategoryService interface {
	Create(ctx context.Context, req model.CategoryRequest) (*model.Category, error)
	Update(ctx context.Context, id string, req model.CategoryRequest) (*model.Category, error)
	Get(ctx context.Context, id string) (*model.Category, error)
	List(ctx context.Context, includeInactive bool) ([]model.Category, error)
	Deactivate(ctx context.Context, id string) error
	AddContact(ctx context.Context, id, phone string) error
	RemoveContact(ctx context.Context, id, phone string) error
}

type TemplateService interface {
	Create(ctx context.Context, req model.TemplateRequest) (*model.Template, error)
	Update(ctx context.Context, id string, req model.TemplateRequest) (*model.Template, error)
	Get(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context, includeInactive bool) ([]model.Template, error)
	Deactivate(ctx context.Context, id string) error
}

type BroadcastService interface {
	Submit(ctx context.Context, req service.BulkRequest) (service.BulkResult, error)
	Values(ctx context.Context, phone string, extra map[string]string) map[string]string
}

// Handler holds the dependencies of every route.
type Handler struct {
	Session       SessionService
	Jobs          JobService
	History       JobHistory
	Contacts      ContactService
	Categories    CategoryService
	Templates     TemplateService
	Broadcast     BroadcastService
	Auth          *service.Auth
	Hub           *ws.Hub
	Phones        helper.PhoneNormalizer
	MediaMaxBytes int64
	Log           zerolog.Logger
}

// Register mounts the public routes on e and the rest under /api behind
// authMW.
func (h *Handler) Register(e *echo.Echo, authMW echo.MiddlewareFunc) {
	e.POST("/login", h.Login)
	e.GET("/", h.Health)
	if h.Hub != nil {
		e.GET("/ws", h.WebSocket, authMW)
	}

	api := e.Group("/api", authMW)

	api.GET("/status", h.GetStatus)
	api.POST("/connect", h.Connect)
	api.POST("/reconnect", h.Reconnect)
	api.POST("/logout", h.Logout)
	api.GET("/qrcode", h.GetQR)

	api.POST("/messages/send", h.SendMessage)
	api.POST("/messages/send-media", h.SendMedia)
	api.POST("/messages/send-bulk", h.SendBulk)
	api.POST("/messages/check", h.CheckNumber)

	api.GET("/dispatch/jobs", h.ListJobs)
	api.GET("/dispatch/history", h.JobHistory)
	api.GET("/dispatch/jobs/:id", h.GetJob)
	api.DELETE("/dispatch/jobs/:id", h.CancelJob)

	// specific routes before :phone
	api.GET("/contacts", h.ListContacts)
	api.POST("/contacts", h.CreateContact)
	api.GET("/contacts/export", h.ExportContacts)
	api.POST("/contacts/import", h.ImportContacts)
	api.GET("/contacts/filter/last-chat/:days", h.ContactsByLastChat)
	api.GET("/contacts/:phone", h.GetContact)
	api.PUT("/contacts/:phone", h.UpdateContact)
	api.DELETE("/contacts/:phone", h.DeleteContact)
	api.POST("/contacts/:phone/categories/:id", h.AddContactToCategory)
	api.DELETE("/contacts/:phone/categories/:id", h.RemoveContactFromCategory)

	api.GET("/categories", h.ListCategories)
	api.POST("/categories", h.CreateCategory)
	api.GET("/categories/:id", h.GetCategory)
	api.PUT("/categories/:id", h.UpdateCategory)
	api.DELETE("/categories/:id", h.DeleteCategory)
	api.GET("/categories/:id/contacts", h.CategoryContacts)

	api.GET("/templates", h.ListTemplates)
	api.POST("/templates", h.CreateTemplate)
	api.GET("/templates/:id", h.GetTemplate)
	api.PUT("/templates/:id", h.UpdateTemplate)
	api.DELETE("/templates/:id", h.DeleteTemplate)
	api.POST("/templates/:id/preview", h.PreviewTemplate)
}

// GET /
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "WhatsApp broadcast API is running",
		"session": h.Session.Status().Phase,
	})
}
