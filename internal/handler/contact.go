package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
)

const maxContactPage = 500

// GET /api/contacts?activeOnly=true&search=&categoryId=&lastChatDays=&limit=&offset=
func (h *Handler) ListContacts(c echo.Context) error {
	filter, err := contactFilter(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid query", "INVALID_QUERY", err.Error())
	}
	return h.listContacts(c, filter)
}

// GET /api/contacts/filter/last-chat/:days
func (h *Handler) ContactsByLastChat(c echo.Context) error {
	days, err := strconv.Atoi(c.Param("days"))
	if err != nil || days <= 0 {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid days", "INVALID_QUERY", "days must be a positive integer")
	}
	filter, err := contactFilter(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid query", "INVALID_QUERY", err.Error())
	}
	filter.LastChatDays = days
	return h.listContacts(c, filter)
}

func (h *Handler) listContacts(c echo.Context, filter model.ContactFilter) error {
	if filter.Limit <= 0 || filter.Limit > maxContactPage {
		filter.Limit = 100
	}

	contacts, total, err := h.Contacts.List(c.Request().Context(), filter)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to list contacts", "DATABASE_ERROR", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Contacts retrieved", map[string]any{
		"contacts": contacts,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GET /api/contacts/:phone
func (h *Handler) GetContact(c echo.Context) error {
	phone, err := h.Phones.Normalize(c.Param("phone"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}
	contact, err := h.Contacts.Get(c.Request().Context(), phone)
	if errors.Is(err, model.ErrContactNotFound) {
		return ErrorResponse(c, http.StatusNotFound, "Contact not found", "CONTACT_NOT_FOUND", "")
	}
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to load contact", "DATABASE_ERROR", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Contact retrieved", contact)
}

// POST /api/contacts
func (h *Handler) CreateContact(c echo.Context) error {
	var req model.NewContact
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	phone, err := h.Phones.Normalize(req.Phone)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}
	req.Phone = phone

	contact, err := h.Contacts.Create(c.Request().Context(), req)
	if err != nil {
		return contactError(c, err)
	}
	return SuccessResponse(c, http.StatusCreated, "Contact created", contact)
}

// PUT /api/contacts/:phone
// Only the fields present in the body change.
func (h *Handler) UpdateContact(c echo.Context) error {
	phone, err := h.Phones.Normalize(c.Param("phone"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}
	var req model.ContactUpdate
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := req.Validate(); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}

	contact, err := h.Contacts.Update(c.Request().Context(), phone, req)
	if err != nil {
		return contactError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Contact updated", contact)
}

// DELETE /api/contacts/:phone
func (h *Handler) DeleteContact(c echo.Context) error {
	phone, err := h.Phones.Normalize(c.Param("phone"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}
	if err := h.Contacts.Deactivate(c.Request().Context(), phone); err != nil {
		return contactError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Contact deactivated", nil)
}

// POST /api/contacts/:phone/categories/:id
func (h *Handler) AddContactToCategory(c echo.Context) error {
	phone, err := h.Phones.Normalize(c.Param("phone"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}
	if err := h.Categories.AddContact(c.Request().Context(), c.Param("id"), phone); err != nil {
		return contactError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Contact added to category", nil)
}

// DELETE /api/contacts/:phone/categories/:id
func (h *Handler) RemoveContactFromCategory(c echo.Context) error {
	phone, err := h.Phones.Normalize(c.Param("phone"))
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}
	if err := h.Categories.RemoveContact(c.Request().Context(), c.Param("id"), phone); err != nil {
		return contactError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Contact removed from category", nil)
}

func contactError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrContactNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Contact not found", "CONTACT_NOT_FOUND", "")
	case errors.Is(err, model.ErrContactExists):
		return ErrorResponse(c, http.StatusConflict, err.Error(), "CONTACT_EXISTS", "")
	case errors.Is(err, model.ErrCategoryNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Category not found", "CATEGORY_NOT_FOUND", "")
	case errors.Is(err, model.ErrNotInCategory):
		return ErrorResponse(c, http.StatusNotFound, err.Error(), "NOT_IN_CATEGORY", "")
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "Database error", "DATABASE_ERROR", err.Error())
	}
}

// GET /api/contacts/export?format=xlsx|csv
func (h *Handler) ExportContacts(c echo.Context) error {
	filter, err := contactFilter(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid query", "INVALID_QUERY", err.Error())
	}
	filter.Limit, filter.Offset = 0, 0

	contacts, _, err := h.Contacts.List(c.Request().Context(), filter)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to list contacts", "DATABASE_ERROR", err.Error())
	}

	stamp := time.Now().Format("20060102_150405")
	switch format := c.QueryParam("format"); format {
	case "", "xlsx", "excel":
		return exportContactsExcel(c, contacts, fmt.Sprintf("contacts_%s.xlsx", stamp))
	case "csv":
		return exportContactsCSV(c, contacts, fmt.Sprintf("contacts_%s.csv", stamp))
	default:
		return ErrorResponse(c, http.StatusBadRequest, "Invalid format", "INVALID_FORMAT", "Use 'xlsx' or 'csv'")
	}
}

var contactColumns = []string{"No", "Phone Number", "Name", "Nickname", "Title", "Active", "Last Chat"}

func contactRow(i int, ct model.Contact) []any {
	lastChat := ""
	if ct.LastChatDate != nil {
		lastChat = ct.LastChatDate.UTC().Format(time.RFC3339)
	}
	return []any{i + 1, ct.Phone, ct.Name, ct.Nickname, ct.Title, ct.IsActive, lastChat}
}

func exportContactsExcel(c echo.Context, contacts []model.Contact, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Contacts"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to create sheet", "EXPORT_FAILED", err.Error())
	}

	for i, header := range contactColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	f.SetCellStyle(sheetName, "A1", "G1", headerStyle)

	for i, ct := range contacts {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := contactRow(i, ct)
		f.SetSheetRow(sheetName, cell, &row)
	}

	f.SetColWidth(sheetName, "A", "A", 5)
	f.SetColWidth(sheetName, "B", "B", 16)
	f.SetColWidth(sheetName, "C", "C", 28)
	f.SetColWidth(sheetName, "D", "E", 16)
	f.SetColWidth(sheetName, "F", "F", 8)
	f.SetColWidth(sheetName, "G", "G", 22)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response().Writer)
}

func exportContactsCSV(c echo.Context, contacts []model.Contact, filename string) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	c.Response().WriteHeader(http.StatusOK)

	writer := csv.NewWriter(c.Response().Writer)
	if err := writer.Write(contactColumns); err != nil {
		return err
	}
	for i, ct := range contacts {
		row := contactRow(i, ct)
		record := make([]string, len(row))
		for j, v := range row {
			record[j] = fmt.Sprint(v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// POST /api/contacts/import (multipart: file)
// Rows need a phone column; optional "name", "nickname" and "title" columns
// fill the matching fields.
func (h *Handler) ImportContacts(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Field 'file' is required", "VALIDATION_ERROR", err.Error())
	}
	src, err := fileHeader.Open()
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid upload", "INVALID_FILE", err.Error())
	}
	defer src.Close()

	rows, err := helper.ReadRecipients(src, fileHeader.Filename)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Could not read file", "INVALID_FILE", err.Error())
	}

	ctx := c.Request().Context()
	imported := 0
	var rejected []map[string]string
	for _, row := range rows {
		phone, err := h.Phones.Normalize(row.Phone)
		if err != nil {
			rejected = append(rejected, map[string]string{"phone": row.Phone, "error": err.Error()})
			continue
		}
		fields := model.ContactFields{
			Name:     row.Values["name"],
			Nickname: row.Values["nickname"],
			Title:    row.Values["title"],
			IsActive: true,
		}
		if err := h.Contacts.UpsertByPhone(ctx, phone, fields); err != nil {
			return ErrorResponse(c, http.StatusInternalServerError, "Failed to store contact", "DATABASE_ERROR", err.Error())
		}
		imported++
	}

	h.Log.Info().Int("imported", imported).Int("rejected", len(rejected)).Msg("contacts imported")
	return SuccessResponse(c, http.StatusOK, "Contacts imported", map[string]any{
		"imported": imported,
		"rejected": rejected,
	})
}

func contactFilter(c echo.Context) (model.ContactFilter, error) {
	f := model.ContactFilter{Search: c.QueryParam("search"), CategoryID: c.QueryParam("categoryId")}
	var err error
	if v := c.QueryParam("lastChatDays"); v != "" {
		if f.LastChatDays, err = strconv.Atoi(v); err != nil || f.LastChatDays < 0 {
			return f, fmt.Errorf("lastChatDays must be a non-negative integer")
		}
	}
	if v := c.QueryParam("activeOnly"); v != "" {
		if f.ActiveOnly, err = strconv.ParseBool(v); err != nil {
			return f, fmt.Errorf("activeOnly: %w", err)
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("limit: %w", err)
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			return f, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	return f, nil
}
