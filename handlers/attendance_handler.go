package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

type AttendanceHandler struct{}

func NewAttendanceHandler() *AttendanceHandler { return &AttendanceHandler{} }

var attReTime = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type confirmEntry struct {
	StudentID uint   `json:"student_id"`
	USN       string `json:"usn"`
	Status    string `json:"status"`
}

type confirmPayload struct {
	ClassID   uint           `json:"class_id" validate:"required"`
	SubjectID uint           `json:"subject_id" validate:"required"`
	Date      string         `json:"date" validate:"required"`
	Time      string         `json:"time" validate:"required"`
	Entries   []confirmEntry `json:"entries" validate:"required,min=1"`
}

func validateConfirm(p *confirmPayload) map[string]string {
	errs := map[string]string{}
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		errs["date"] = "must be YYYY-MM-DD"
	}
	if !attReTime.MatchString(p.Time) {
		errs["time"] = "must be HH:MM"
	}
	for i, e := range p.Entries {
		if e.StudentID == 0 && strings.TrimSpace(e.USN) == "" {
			errs[fmt.Sprintf("entries[%d]", i)] = "needs student_id or usn"
		}
		if e.Status != models.StatusPresent && e.Status != models.StatusAbsent {
			errs[fmt.Sprintf("entries[%d].status", i)] = "must be present or absent"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func percentLabel(attended, total int64) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(attended)*100/float64(total))
}

// POST /attendance/confirm
// Writes a proposal to the ledger row by row. Rows already covered by
// the one-record-per-day invariant are skipped and counted; the rest
// still land. Any skip turns the answer into a conflict that carries
// both counts.
func (h *AttendanceHandler) Confirm(c echo.Context) error {
	uid, _ := currentUser(c)

	var p confirmPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}
	if errs := validateConfirm(&p); errs != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": errs})
	}

	var cls models.Class
	if err := database.DB.First(&cls, p.ClassID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
	}
	var sub models.Subject
	if err := database.DB.First(&sub, p.SubjectID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "SUBJECT_NOT_FOUND"})
	}
	if sub.ClassID != cls.ID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "SUBJECT_NOT_IN_CLASS"})
	}

	var roster []models.Student
	if err := database.DB.Where("class_id = ?", cls.ID).Find(&roster).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	byID := make(map[uint]*models.Student, len(roster))
	byUSN := make(map[string]*models.Student, len(roster))
	for i := range roster {
		byID[roster[i].ID] = &roster[i]
		byUSN[roster[i].USN] = &roster[i]
	}

	type mark struct {
		student *models.Student
		status  string
	}
	marks := make([]mark, 0, len(p.Entries))
	for _, e := range p.Entries {
		var st *models.Student
		if e.StudentID != 0 {
			st = byID[e.StudentID]
		} else {
			st = byUSN[strings.ToUpper(strings.TrimSpace(e.USN))]
		}
		if st == nil {
			return c.JSON(http.StatusNotFound, map[string]any{
				"error":   "STUDENT_NOT_IN_CLASS",
				"message": fmt.Sprintf("entry %v does not resolve to a student of class %s", e, cls.Code),
			})
		}
		marks = append(marks, mark{student: st, status: e.Status})
	}

	inserted, duplicates := 0, 0
	for _, m := range marks {
		rec := models.Attendance{
			StudentID:  m.student.ID,
			SubjectID:  sub.ID,
			Date:       p.Date,
			Time:       p.Time,
			Status:     m.status,
			RecordedBy: uid,
		}
		if err := database.DB.Create(&rec).Error; err != nil {
			if isDuplicate(err) {
				duplicates++
				continue
			}
			return internalError(c, "DB_SAVE_FAILED", err)
		}
		inserted++
	}

	if duplicates > 0 {
		return c.JSON(http.StatusConflict, map[string]any{
			"error":      "ATTENDANCE_ALREADY_RECORDED",
			"message":    fmt.Sprintf("%d of %d entries were already recorded for %s", duplicates, len(marks), p.Date),
			"inserted":   inserted,
			"duplicates": duplicates,
		})
	}
	return c.JSON(http.StatusCreated, map[string]any{"inserted": inserted})
}

// GET /attendance?class=&subject=&date=
// Answers 404 rather than an empty list when the class has no students
// or nothing matches.
func (h *AttendanceHandler) List(c echo.Context) error {
	classID := strings.TrimSpace(c.QueryParam("class"))
	subjectID := strings.TrimSpace(c.QueryParam("subject"))
	date := strings.TrimSpace(c.QueryParam("date"))

	if classID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "MISSING_CLASS"})
	}
	var cls models.Class
	if err := database.DB.First(&cls, "id = ?", classID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
	}
	var students int64
	database.DB.Model(&models.Student{}).Where("class_id = ?", cls.ID).Count(&students)
	if students == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "NO_STUDENTS_IN_CLASS"})
	}

	type attendanceRow struct {
		ID         uint   `json:"id"`
		StudentID  uint   `json:"student_id"`
		USN        string `json:"usn"`
		FullName   string `json:"full_name"`
		SubjectID  uint   `json:"subject_id"`
		Date       string `json:"date"`
		Time       string `json:"time"`
		Status     string `json:"status"`
		RecordedBy uint   `json:"recorded_by"`
	}

	tx := database.DB.Table("attendances a").
		Select("a.id, a.student_id, s.usn, s.full_name, a.subject_id, a.date, a.time, a.status, a.recorded_by").
		Joins("JOIN students s ON s.id = a.student_id").
		Where("s.class_id = ?", cls.ID)
	if subjectID != "" {
		tx = tx.Where("a.subject_id = ?", subjectID)
	}
	if date != "" {
		tx = tx.Where("a.date = ?", date)
	}

	var rows []attendanceRow
	if err := tx.Order("a.date ASC, s.usn ASC, a.id ASC").Scan(&rows).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	if len(rows) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "NO_ATTENDANCE_RECORDS"})
	}
	return c.JSON(http.StatusOK, map[string]any{"class": cls.Code, "data": rows})
}

// GET /attendance/summary/class/:id?subject=
// Left-joined against the roster so students without a single ledger
// row still appear with explicit zeros.
func (h *AttendanceHandler) SummaryByClass(c echo.Context) error {
	id := c.Param("id")
	subjectID := strings.TrimSpace(c.QueryParam("subject"))

	var cls models.Class
	if err := database.DB.First(&cls, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	type summaryRow struct {
		StudentID    uint   `json:"student_id"`
		USN          string `json:"usn"`
		FullName     string `json:"full_name"`
		TotalClasses int64  `json:"total_classes"`
		Attended     int64  `json:"attended"`
		Percentage   string `json:"percentage"`
	}

	tx := database.DB.Table("students s").
		Select("s.id AS student_id, s.usn, s.full_name, COUNT(a.id) AS total_classes, " +
			"COALESCE(SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END), 0) AS attended")
	if subjectID != "" {
		tx = tx.Joins("LEFT JOIN attendances a ON a.student_id = s.id AND a.subject_id = ?", subjectID)
	} else {
		tx = tx.Joins("LEFT JOIN attendances a ON a.student_id = s.id")
	}

	var rows []summaryRow
	if err := tx.Where("s.class_id = ?", cls.ID).
		Group("s.id, s.usn, s.full_name").
		Order("s.usn").
		Scan(&rows).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	for i := range rows {
		rows[i].Percentage = percentLabel(rows[i].Attended, rows[i].TotalClasses)
	}

	return c.JSON(http.StatusOK, map[string]any{"class": cls.Code, "students": rows})
}

// GET /attendance/summary/student/:usn
// Students may only read their own summary; teachers and admins any.
func (h *AttendanceHandler) SummaryByStudent(c echo.Context) error {
	usn := strings.ToUpper(strings.TrimSpace(c.Param("usn")))

	var st models.Student
	if err := database.DB.Where("usn = ?", usn).First(&st).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "STUDENT_NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	uid, role := currentUser(c)
	if role == models.RoleStudent {
		var u models.User
		if err := database.DB.First(&u, uid).Error; err != nil || u.StudentID == nil || *u.StudentID != st.ID {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "FORBIDDEN"})
		}
	}

	type subjectSummaryRow struct {
		SubjectID    uint   `json:"subject_id"`
		Name         string `json:"name"`
		Code         string `json:"code"`
		TotalClasses int64  `json:"total_classes"`
		Attended     int64  `json:"attended"`
		Percentage   string `json:"percentage"`
	}

	var rows []subjectSummaryRow
	if err := database.DB.Table("subjects sub").
		Select("sub.id AS subject_id, sub.name, sub.code, COUNT(a.id) AS total_classes, "+
			"COALESCE(SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END), 0) AS attended").
		Joins("LEFT JOIN attendances a ON a.subject_id = sub.id AND a.student_id = ?", st.ID).
		Where("sub.class_id = ?", st.ClassID).
		Group("sub.id, sub.name, sub.code").
		Order("sub.code").
		Scan(&rows).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	for i := range rows {
		rows[i].Percentage = percentLabel(rows[i].Attended, rows[i].TotalClasses)
	}

	return c.JSON(http.StatusOK, map[string]any{"student": studentView(&st), "subjects": rows})
}

// PATCH /attendance/:id
// The update is filtered by recorder as well as id, so a row recorded
// by someone else and a missing row answer the same way.
func (h *AttendanceHandler) Amend(c echo.Context) error {
	uid, _ := currentUser(c)
	id := c.Param("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	req.Status = strings.TrimSpace(req.Status)
	if req.Status != models.StatusPresent && req.Status != models.StatusAbsent {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "VALIDATION_ERROR", "fields": map[string]string{"status": "must be present or absent"},
		})
	}

	res := database.DB.Model(&models.Attendance{}).
		Where("id = ? AND recorded_by = ?", id, uid).
		Update("status", req.Status)
	if res.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_SAVE_FAILED"})
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
	}

	var rec models.Attendance
	if err := database.DB.First(&rec, "id = ?", id).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, rec)
}
