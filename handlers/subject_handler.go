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

type SubjectHandler struct{}

func NewSubjectHandler() *SubjectHandler { return &SubjectHandler{} }

type subjectPayload struct {
	Name    string `json:"name" validate:"required,max=100"`
	Code    string `json:"code" validate:"required,alphanum,max=20"`
	ClassID uint   `json:"class_id" validate:"required"`
}

func (p *subjectPayload) norm() {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
}

func classExists(id uint) bool {
	var cnt int64
	database.DB.Model(&models.Class{}).Where("id = ?", id).Count(&cnt)
	return cnt > 0
}

// GET /subjects?class=&q=&page=&size=
func (h *SubjectHandler) List(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	classID := strings.TrimSpace(c.QueryParam("class"))
	page, size := pageParams(c)

	var items []models.Subject
	tx := database.DB.Model(&models.Subject{})
	if classID != "" {
		tx = tx.Where("class_id = ?", classID)
	}
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

// GET /subjects/:id
func (h *SubjectHandler) Get(c echo.Context) error {
	id := c.Param("id")
	var s models.Subject
	if err := database.DB.First(&s, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, s)
}

// POST /subjects
func (h *SubjectHandler) Create(c echo.Context) error {
	var p subjectPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	if !classExists(p.ClassID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
	}
	var cnt int64
	database.DB.Model(&models.Subject{}).Where("code = ?", p.Code).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_SUBJECT_CODE"})
	}

	s := models.Subject{Name: p.Name, Code: p.Code, ClassID: p.ClassID}
	if err := database.DB.Create(&s).Error; err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_SUBJECT_CODE"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_SAVE_FAILED"})
	}
	return c.JSON(http.StatusCreated, s)
}

// PUT /subjects/:id
func (h *SubjectHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var s models.Subject
	if err := database.DB.First(&s, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	var p subjectPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	if !classExists(p.ClassID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
	}
	var cnt int64
	database.DB.Model(&models.Subject{}).Where("code = ? AND id <> ?", p.Code, s.ID).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_SUBJECT_CODE"})
	}

	s.Name = p.Name
	s.Code = p.Code
	s.ClassID = p.ClassID
	if err := database.DB.Save(&s).Error; err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_SUBJECT_CODE"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_SAVE_FAILED"})
	}
	return c.JSON(http.StatusOK, s)
}

// DELETE /subjects/:id
// Blocked while ledger records reference the subject, mirroring the
// class deletion rule.
func (h *SubjectHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var s models.Subject
	if err := database.DB.First(&s, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	var records int64
	database.DB.Model(&models.Attendance{}).Where("subject_id = ?", s.ID).Count(&records)
	if records > 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "SUBJECT_HAS_ATTENDANCE",
			"message": fmt.Sprintf("%d attendance record(s) still reference this subject", records),
		})
	}

	if err := database.DB.Delete(&s).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}
	return c.NoContent(http.StatusNoContent)
}
