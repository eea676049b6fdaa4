package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/logging"
	"github.com/fulljjb/server/internal/models"
	"github.com/fulljjb/server/internal/search"
	"github.com/fulljjb/server/internal/upload"
)

type TechniqueHandler struct {
	DB       *gorm.DB
	Uploads  *upload.Store
	ES       *elasticsearch.Client
	Validate *validator.Validate
}

type techniqueInput struct {
	Title       string `validate:"required,max=50"`
	Description string `validate:"required,max=1000"`
}

func (h *TechniqueHandler) GetTechniques(c echo.Context) error {
	var techniques []models.Technique
	if err := h.DB.Order("id ASC").Find(&techniques).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("error fetching techniques"))
	}
	return c.JSON(http.StatusOK, techniques)
}

func (h *TechniqueHandler) GetTechnique(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid id"))
	}

	var technique models.Technique
	if err := h.DB.First(&technique, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("technique not found"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("error fetching technique"))
	}
	return c.JSON(http.StatusOK, technique)
}

// CreateTechnique accepts a multipart form with title, description and
// an optional video file. The stored file name is derived from the
// upload time plus the original filename; only the relative path is
// ever exposed.
func (h *TechniqueHandler) CreateTechnique(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "technique_create")

	in := techniqueInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
	}
	if fieldErrs := h.validate(in); len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, Response{Status: "Error", Message: "validation failed", Errors: fieldErrs})
	}

	technique := models.Technique{Title: in.Title, Description: in.Description}

	if file, err := c.FormFile("video"); err == nil {
		path, saveErr := h.Uploads.Save(file)
		if saveErr != nil {
			l.Error("upload failed", "error", saveErr)
			return c.JSON(http.StatusInternalServerError, errorBody("error saving video"))
		}
		technique.VideoURL = &path
	}

	if err := h.DB.Create(&technique).Error; err != nil {
		l.Error("create failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error inserting technique"))
	}

	h.index(c, &technique)

	return c.JSON(http.StatusOK, echo.Map{
		"Status":  "Success",
		"Message": "technique added successfully",
		"Data":    technique,
	})
}

// UpdateTechnique performs a partial update: fields absent from the
// form retain their prior value, a submitted video replaces the old
// path.
func (h *TechniqueHandler) UpdateTechnique(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "technique_update")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid id"))
	}

	var technique models.Technique
	if err := h.DB.First(&technique, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("technique not found"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("error fetching technique"))
	}

	params, err := c.FormParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid form"))
	}
	if v, ok := params["title"]; ok && len(v) > 0 {
		technique.Title = v[0]
	}
	if v, ok := params["description"]; ok && len(v) > 0 {
		technique.Description = v[0]
	}

	in := techniqueInput{Title: technique.Title, Description: technique.Description}
	if fieldErrs := h.validate(in); len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, Response{Status: "Error", Message: "validation failed", Errors: fieldErrs})
	}

	if file, fErr := c.FormFile("video"); fErr == nil {
		path, saveErr := h.Uploads.Save(file)
		if saveErr != nil {
			l.Error("upload failed", "error", saveErr)
			return c.JSON(http.StatusInternalServerError, errorBody("error saving video"))
		}
		technique.VideoURL = &path
	}

	if err := h.DB.Save(&technique).Error; err != nil {
		l.Error("update failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error updating technique"))
	}

	h.index(c, &technique)

	return c.JSON(http.StatusOK, echo.Map{
		"Status":  "Success",
		"Message": "technique updated successfully",
		"Data":    technique,
	})
}

func (h *TechniqueHandler) DeleteTechnique(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "technique_delete")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid id"))
	}

	var technique models.Technique
	if err := h.DB.First(&technique, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, errorBody("technique not found"))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("error fetching technique"))
	}

	if err := h.DB.Delete(&technique).Error; err != nil {
		l.Error("delete failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("error deleting technique"))
	}

	if h.ES != nil {
		if err := search.DeleteTechnique(ctx, h.ES, technique.ID); err != nil {
			l.Error("search deindex failed", "technique_id", technique.ID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, successBody("technique deleted successfully"))
}

// SearchTechniques queries the elasticsearch index.
func (h *TechniqueHandler) SearchTechniques(c echo.Context) error {
	if h.ES == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("search is not configured"))
	}

	q := search.NormalizeQuery(c.QueryParam("q"))
	if q == "" {
		return c.JSON(http.StatusBadRequest, errorBody("query is required"))
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, limit := search.Calculate(page, size)

	total, techniques, err := search.Search(c.Request().Context(), h.ES, q, from, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("search failed"))
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "techniques": techniques})
}

func (h *TechniqueHandler) validate(in techniqueInput) []FieldError {
	err := h.Validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch field {
		case "Title":
			field = "title"
		case "Description":
			field = "description"
		}
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "max":
			msg = fmt.Sprintf("%s must contain at most %s characters", field, fe.Param())
		default:
			msg = fmt.Sprintf("%s is invalid", field)
		}
		out = append(out, FieldError{Field: field, Message: msg})
	}
	return out
}

func (h *TechniqueHandler) index(c echo.Context, t *models.Technique) {
	if h.ES == nil {
		return
	}
	ctx := c.Request().Context()
	if err := search.IndexTechnique(ctx, h.ES, t); err != nil {
		logging.FromContext(ctx).Error("search index failed", "technique_id", t.ID, "error", err)
	}
}
