package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

type ClassHandler struct{}

func NewClassHandler() *ClassHandler { return &ClassHandler{} }

type classPayload struct {
	Name     string `json:"name" validate:"required,max=60"`
	Code     string `json:"code" validate:"required,alphanum,max=20"`
	Semester int    `json:"semester" validate:"required,min=1,max=12"`
}

func (p *classPayload) norm() {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
}

// GET /classes?q=&page=&size=
func (h *ClassHandler) List(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	page, size := pageParams(c)

	var items []models.Class
	tx := database.DB.Model(&models.Class{})
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_COUNT_FAILED"})
	}
	if err := tx.Order("id DESC").Limit(size).Offset((page - 1) * size).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, map[string]any{"data": items, "page": page, "size": size, "total": total})
}

// GET /classes/:id
func (h *ClassHandler) Get(c echo.Context) error {
	id := c.Param("id")
	var cls models.Class
	if err := database.DB.Preload("Subjects").First(&cls, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, cls)
}

// POST /classes
func (h *ClassHandler) Create(c echo.Context) error {
	var p classPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	var cnt int64
	database.DB.Model(&models.Class{}).Where("name = ? OR code = ?", p.Name, p.Code).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_CLASS"})
	}

	cls := models.Class{Name: p.Name, Code: p.Code, Semester: p.Semester}
	if err := database.DB.Create(&cls).Error; err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_CLASS"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_SAVE_FAILED"})
	}
	return c.JSON(http.StatusCreated, cls)
}

// PUT /classes/:id
func (h *ClassHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var cls models.Class
	if err := database.DB.First(&cls, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	var p classPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	var cnt int64
	database.DB.Model(&models.Class{}).
		Where("(name = ? OR code = ?) AND id <> ?", p.Name, p.Code, cls.ID).
		Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_CLASS"})
	}

	cls.Name = p.Name
	cls.Code = p.Code
	cls.Semester = p.Semester
	if err := database.DB.Save(&cls).Error; err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_CLASS"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_SAVE_FAILED"})
	}
	return c.JSON(http.StatusOK, cls)
}

// DELETE /classes/:id
// Deletion is blocked while anything still references the class; the
// error names how many dependants block it.
func (h *ClassHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var cls models.Class
	if err := database.DB.First(&cls, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	var subjects int64
	database.DB.Model(&models.Subject{}).Where("class_id = ?", cls.ID).Count(&subjects)
	if subjects > 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "CLASS_HAS_SUBJECTS",
			"message": fmt.Sprintf("%d subject(s) still assigned to this class", subjects),
		})
	}
	var students int64
	database.DB.Model(&models.Student{}).Where("class_id = ?", cls.ID).Count(&students)
	if students > 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "CLASS_HAS_STUDENTS",
			"message": fmt.Sprintf("%d student(s) still enrolled in this class", students),
		})
	}

	if err := database.DB.Delete(&cls).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}
	return c.NoContent(http.StatusNoContent)
}
