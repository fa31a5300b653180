// handlers_upload.go - Log file management handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fps-visualizer/backend/internal/storage"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store storage.Store
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store) UploadHandler {
	return &UploadHandlerImpl{store: store}
}

// HandleUploadFile accepts a log file as multipart/form-data
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewBadRequestError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles lists recently uploaded log files
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	list, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	return c.JSON(http.StatusOK, list)
}

// HandleGetFile returns metadata for one file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile removes an uploaded file
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates a file's display name
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}
