package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

func seedAttendance(t *testing.T, studentID, subjectID uint, date, status string, recordedBy uint) models.Attendance {
	t.Helper()
	a := models.Attendance{
		StudentID: studentID, SubjectID: subjectID, Date: date, Time: "09:30",
		Status: status, RecordedBy: recordedBy,
	}
	require.NoError(t, database.DB.Create(&a).Error)
	return a
}

func TestConfirmInsertsMarks(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	sub := seedSubject(t, "Operating Systems", "OS", cls.ID)
	s1 := seedStudent(t, "John Doe", "1AB21CS001", cls.ID)
	seedStudent(t, "Jane Roe", "1AB21CS002", cls.ID)

	h := NewAttendanceHandler()
	rec := do(t, h.Confirm, call{method: http.MethodPost, uid: 7, role: models.RoleTeacher,
		body: map[string]any{
			"class_id": cls.ID, "subject_id": sub.ID, "date": "2026-03-02", "time": "09:30",
			"entries": []map[string]any{
				{"student_id": s1.ID, "status": "present"},
				{"usn": "1ab21cs002", "status": "absent"},
			},
		}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["inserted"])

	var rows []models.Attendance
	require.NoError(t, database.DB.Order("student_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusPresent, rows[0].Status)
	assert.Equal(t, models.StatusAbsent, rows[1].Status)
	assert.EqualValues(t, 7, rows[0].RecordedBy)
}

func TestConfirmReportsDuplicates(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	sub := seedSubject(t, "Operating Systems", "OS", cls.ID)
	seedStudent(t, "John Doe", "1AB21CS001", cls.ID)
	seedStudent(t, "Jane Roe", "1AB21CS002", cls.ID)

	payload := map[string]any{
		"class_id": cls.ID, "subject_id": sub.ID, "date": "2026-03-02", "time": "09:30",
		"entries": []map[string]any{
			{"usn": "1AB21CS001", "status": "present"},
			{"usn": "1AB21CS002", "status": "absent"},
		},
	}

	h := NewAttendanceHandler()
	rec := do(t, h.Confirm, call{method: http.MethodPost, uid: 7, role: models.RoleTeacher, body: payload})
	require.Equal(t, http.StatusCreated, rec.Code)

	// the same proposal again: everything is already on the ledger
	rec = do(t, h.Confirm, call{method: http.MethodPost, uid: 7, role: models.RoleTeacher, body: payload})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ATTENDANCE_ALREADY_RECORDED", body["error"])
	assert.EqualValues(t, 0, body["inserted"])
	assert.EqualValues(t, 2, body["duplicates"])

	// a new student in the resubmission still lands
	seedStudent(t, "Sam Poe", "1AB21CS003", cls.ID)
	payload["entries"] = []map[string]any{
		{"usn": "1AB21CS001", "status": "present"},
		{"usn": "1AB21CS002", "status": "absent"},
		{"usn": "1AB21CS003", "status": "present"},
	}
	rec = do(t, h.Confirm, call{method: http.MethodPost, uid: 7, role: models.RoleTeacher, body: payload})
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decode(t, rec)
	assert.EqualValues(t, 1, body["inserted"])
	assert.EqualValues(t, 2, body["duplicates"])

	var total int64
	database.DB.Model(&models.Attendance{}).Count(&total)
	assert.EqualValues(t, 3, total)
}

func TestConfirmRejectsForeignSubject(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	other := seedClass(t, "EC 5th Sem", "EC5", 5)
	foreign := seedSubject(t, "Signals", "SIG", other.ID)
	s1 := seedStudent(t, "John Doe", "1AB21CS001", cls.ID)

	h := NewAttendanceHandler()
	rec := do(t, h.Confirm, call{method: http.MethodPost, uid: 7, role: models.RoleTeacher,
		body: map[string]any{
			"class_id": cls.ID, "subject_id": foreign.ID, "date": "2026-03-02", "time": "09:30",
			"entries":  []map[string]any{{"student_id": s1.ID, "status": "present"}},
		}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SUBJECT_NOT_IN_CLASS", decode(t, rec)["error"])
}

func TestConfirmRejectsUnknownStudent(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	sub := seedSubject(t, "Operating Systems", "OS", cls.ID)
	seedStudent(t, "John Doe", "1AB21CS001", cls.ID)

	h := NewAttendanceHandler()
	rec := do(t, h.Confirm, call{method: http.MethodPost, uid: 7, role: models.RoleTeacher,
		body: map[string]any{
			"class_id": cls.ID, "subject_id": sub.ID, "date": "2026-03-02", "time": "09:30",
			"entries":  []map[string]any{{"usn": "9XX99XX999", "status": "present"}},
		}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "STUDENT_NOT_IN_CLASS", decode(t, rec)["error"])

	var total int64
	database.DB.Model(&models.Attendance{}).Count(&total)
	assert.Zero(t, total, "resolution happens before any insert")
}

func TestConfirmValidation(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	sub := seedSubject(t, "Operating Systems", "OS", cls.ID)

	h := NewAttendanceHandler()
	rec := do(t, h.Confirm, call{method: http.MethodPost, uid: 7, role: models.RoleTeacher,
		body: map[string]any{
			"class_id": cls.ID, "subject_id": sub.ID, "date": "2026-3-2", "time": "9:30",
			"entries":  []map[string]any{{"usn": "1AB21CS001", "status": "late"}},
		}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	fields := decode(t, rec)["fields"].(map[string]any)
	assert.Equal(t, "must be YYYY-MM-DD", fields["date"])
	assert.Equal(t, "must be HH:MM", fields["time"])
	assert.Equal(t, "must be present or absent", fields["entries[0].status"])
}

func TestListNotFoundFlavors(t *testing.T) {
	useTestDB(t)
	h := NewAttendanceHandler()

	rec := do(t, h.List, call{method: http.MethodGet, target: "/attendance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_CLASS", decode(t, rec)["error"])

	rec = do(t, h.List, call{method: http.MethodGet, target: "/attendance?class=42"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CLASS_NOT_FOUND", decode(t, rec)["error"])

	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	rec = do(t, h.List, call{method: http.MethodGet, target: "/attendance?class=1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_STUDENTS_IN_CLASS", decode(t, rec)["error"])

	seedStudent(t, "John Doe", "1AB21CS001", cls.ID)
	rec = do(t, h.List, call{method: http.MethodGet, target: "/attendance?class=1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_ATTENDANCE_RECORDS", decode(t, rec)["error"])
}

func TestListJoinsStudentColumns(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	sub := seedSubject(t, "Operating Systems", "OS", cls.ID)
	s1 := seedStudent(t, "John Doe", "1AB21CS001", cls.ID)
	s2 := seedStudent(t, "Jane Roe", "1AB21CS002", cls.ID)
	seedAttendance(t, s1.ID, sub.ID, "2026-03-02", models.StatusPresent, 7)
	seedAttendance(t, s2.ID, sub.ID, "2026-03-02", models.StatusAbsent, 7)
	seedAttendance(t, s1.ID, sub.ID, "2026-03-03", models.StatusAbsent, 7)

	h := NewAttendanceHandler()
	rec := do(t, h.List, call{method: http.MethodGet, target: "/attendance?class=1&date=2026-03-02"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	rows := body["data"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "1AB21CS001", first["usn"])
	assert.Equal(t, "John Doe", first["full_name"])
	assert.Equal(t, "present", first["status"])
}

func TestSummaryByClass(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	osSub := seedSubject(t, "Operating Systems", "OS", cls.ID)
	mathSub := seedSubject(t, "Mathematics", "MATH", cls.ID)
	s1 := seedStudent(t, "John Doe", "1AB21CS001", cls.ID)
	seedStudent(t, "Jane Roe", "1AB21CS002", cls.ID)

	seedAttendance(t, s1.ID, osSub.ID, "2026-03-02", models.StatusPresent, 7)
	seedAttendance(t, s1.ID, osSub.ID, "2026-03-03", models.StatusPresent, 7)
	seedAttendance(t, s1.ID, osSub.ID, "2026-03-04", models.StatusAbsent, 7)
	seedAttendance(t, s1.ID, mathSub.ID, "2026-03-02", models.StatusPresent, 7)

	h := NewAttendanceHandler()

	// all subjects
	rec := do(t, h.SummaryByClass, call{method: http.MethodGet, params: map[string]string{"id": "1"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decode(t, rec)["students"].([]any)
	require.Len(t, rows, 2)

	first := rows[0].(map[string]any)
	assert.Equal(t, "1AB21CS001", first["usn"])
	assert.EqualValues(t, 4, first["total_classes"])
	assert.EqualValues(t, 3, first["attended"])
	assert.Equal(t, "75.0", first["percentage"])

	// a student without a single row still appears, with explicit zeros
	second := rows[1].(map[string]any)
	assert.Equal(t, "1AB21CS002", second["usn"])
	assert.EqualValues(t, 0, second["total_classes"])
	assert.Equal(t, "0.0", second["percentage"])

	// narrowed to one subject
	rec = do(t, h.SummaryByClass, call{method: http.MethodGet,
		target: "/attendance/summary/class/1?subject=1", params: map[string]string{"id": "1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rows = decode(t, rec)["students"].([]any)
	first = rows[0].(map[string]any)
	assert.EqualValues(t, 3, first["total_classes"])
	assert.Equal(t, "66.7", first["percentage"])
}

func TestSummaryByStudent(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	osSub := seedSubject(t, "Operating Systems", "OS", cls.ID)
	seedSubject(t, "Mathematics", "MATH", cls.ID)
	s1 := seedStudent(t, "John Doe", "1AB21CS001", cls.ID)

	seedAttendance(t, s1.ID, osSub.ID, "2026-03-02", models.StatusPresent, 7)
	seedAttendance(t, s1.ID, osSub.ID, "2026-03-03", models.StatusAbsent, 7)

	h := NewAttendanceHandler()
	rec := do(t, h.SummaryByStudent, call{method: http.MethodGet, uid: 99, role: models.RoleTeacher,
		params: map[string]string{"usn": "1ab21cs001"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	student := body["student"].(map[string]any)
	assert.Equal(t, "1AB21CS001", student["usn"])

	// ordered by subject code; the subject without rows carries zeros
	subjects := body["subjects"].([]any)
	require.Len(t, subjects, 2)
	mathRow := subjects[0].(map[string]any)
	assert.Equal(t, "MATH", mathRow["code"])
	assert.EqualValues(t, 0, mathRow["total_classes"])
	assert.Equal(t, "0.0", mathRow["percentage"])
	osRow := subjects[1].(map[string]any)
	assert.Equal(t, "OS", osRow["code"])
	assert.EqualValues(t, 2, osRow["total_classes"])
	assert.Equal(t, "50.0", osRow["percentage"])
}

func TestSummaryByStudentOwnership(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	s1 := seedStudent(t, "John Doe", "1AB21CS001", cls.ID)
	s2 := seedStudent(t, "Jane Roe", "1AB21CS002", cls.ID)

	h := NewAttendanceHandler()

	// own summary is allowed
	rec := do(t, h.SummaryByStudent, call{method: http.MethodGet, uid: s1.UserID, role: models.RoleStudent,
		params: map[string]string{"usn": "1AB21CS001"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	// someone else's is not
	rec = do(t, h.SummaryByStudent, call{method: http.MethodGet, uid: s2.UserID, role: models.RoleStudent,
		params: map[string]string{"usn": "1AB21CS001"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, rec)["error"])

	rec = do(t, h.SummaryByStudent, call{method: http.MethodGet, uid: 99, role: models.RoleTeacher,
		params: map[string]string{"usn": "9XX99XX999"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "STUDENT_NOT_FOUND", decode(t, rec)["error"])
}

func TestAmendScopedToRecorder(t *testing.T) {
	useTestDB(t)
	cls := seedClass(t, "CS 5th Sem", "CS5", 5)
	sub := seedSubject(t, "Operating Systems", "OS", cls.ID)
	s1 := seedStudent(t, "John Doe", "1AB21CS001", cls.ID)
	row := seedAttendance(t, s1.ID, sub.ID, "2026-03-02", models.StatusAbsent, 7)

	h := NewAttendanceHandler()

	// someone else's row answers like a missing one
	rec := do(t, h.Amend, call{method: http.MethodPatch, uid: 8, role: models.RoleTeacher,
		params: map[string]string{"id": "1"}, body: map[string]string{"status": "present"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["error"])

	rec = do(t, h.Amend, call{method: http.MethodPatch, uid: 7, role: models.RoleTeacher,
		params: map[string]string{"id": "999"}, body: map[string]string{"status": "present"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h.Amend, call{method: http.MethodPatch, uid: 7, role: models.RoleTeacher,
		params: map[string]string{"id": "1"}, body: map[string]string{"status": "late"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Amend, call{method: http.MethodPatch, uid: 7, role: models.RoleTeacher,
		params: map[string]string{"id": "1"}, body: map[string]string{"status": "present"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.Attendance
	require.NoError(t, database.DB.First(&out, row.ID).Error)
	assert.Equal(t, models.StatusPresent, out.Status)
}
