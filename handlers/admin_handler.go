package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

type AdminHandler struct{}

func NewAdminHandler() *AdminHandler { return &AdminHandler{} }

// GET /admin/overview
func (h *AdminHandler) Overview(c echo.Context) error {
	var rooms, cameras, classes, subjects, teachers, students, today int64

	database.DB.Model(&models.Room{}).Count(&rooms)
	database.DB.Model(&models.Camera{}).Count(&cameras)
	database.DB.Model(&models.Class{}).Count(&classes)
	database.DB.Model(&models.Subject{}).Count(&subjects)
	database.DB.Model(&models.Teacher{}).Count(&teachers)
	database.DB.Model(&models.Student{}).Count(&students)
	database.DB.Model(&models.Attendance{}).
		Where("date = ?", time.Now().Format("2006-01-02")).
		Count(&today)

	return c.JSON(http.StatusOK, map[string]any{
		"rooms":            rooms,
		"cameras":          cameras,
		"classes":          classes,
		"subjects":         subjects,
		"teachers":         teachers,
		"students":         students,
		"attendance_today": today,
	})
}
