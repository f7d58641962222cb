package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
	"github.com/ShubhamSingh-04/attendance-system-server/saga"
)

type TeacherHandler struct{}

func NewTeacherHandler() *TeacherHandler { return &TeacherHandler{} }

type teacherPayload struct {
	FullName     string   `json:"full_name" validate:"required,max=100"`
	TeacherCode  string   `json:"teacher_code" validate:"required,alphanum,max=20"`
	Username     string   `json:"username" validate:"required,min=3,max=60"`
	Email        string   `json:"email" validate:"required,email,max=120"`
	Password     string   `json:"password" validate:"omitempty,min=8"`
	SubjectCodes []string `json:"subject_codes"`
	ClassCodes   []string `json:"class_codes"`
}

func (p *teacherPayload) norm() {
	p.FullName = strings.Join(strings.Fields(p.FullName), " ")
	p.TeacherCode = strings.ToUpper(strings.TrimSpace(p.TeacherCode))
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Password = strings.TrimSpace(p.Password)
}

// resolveSubjectCodes maps codes to subject rows; the second value is
// the first unknown code, empty when all resolved.
func resolveSubjectCodes(codes []string) ([]models.Subject, string) {
	out := make([]models.Subject, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		var s models.Subject
		if err := database.DB.Where("code = ?", code).First(&s).Error; err != nil {
			return nil, code
		}
		out = append(out, s)
	}
	return out, ""
}

func resolveClassCodes(codes []string) ([]models.Class, string) {
	out := make([]models.Class, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		var cls models.Class
		if err := database.DB.Where("code = ?", code).First(&cls).Error; err != nil {
			return nil, code
		}
		out = append(out, cls)
	}
	return out, ""
}

// GET /teachers?q=&page=&size=
func (h *TeacherHandler) List(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	page, size := pageParams(c)

	var items []models.Teacher
	tx := database.DB.Model(&models.Teacher{})
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(full_name) LIKE ? OR LOWER(teacher_code) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_COUNT_FAILED"})
	}
	if err := tx.Preload("Subjects").Preload("Classes").
		Order("id DESC").Limit(size).Offset((page - 1) * size).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, map[string]any{"data": items, "page": page, "size": size, "total": total})
}

// GET /teachers/:id
func (h *TeacherHandler) Get(c echo.Context) error {
	id := c.Param("id")
	var t models.Teacher
	if err := database.DB.Preload("Subjects").Preload("Classes").First(&t, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, t)
}

// POST /teachers
// Identity and profile are created as one unit: a profile failure
// compensates by deleting the just-created identity.
func (h *TeacherHandler) Create(c echo.Context) error {
	var p teacherPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}
	if p.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "VALIDATION_ERROR", "fields": map[string]string{"password": "is required"},
		})
	}

	subs, unknown := resolveSubjectCodes(p.SubjectCodes)
	if unknown != "" {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "SUBJECT_NOT_FOUND", "message": "unknown subject code " + unknown})
	}
	classes, unknown := resolveClassCodes(p.ClassCodes)
	if unknown != "" {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "CLASS_NOT_FOUND", "message": "unknown class code " + unknown})
	}

	var cnt int64
	database.DB.Model(&models.User{}).Where("username = ? OR email = ?", p.Username, p.Email).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_USER"})
	}
	database.DB.Model(&models.Teacher{}).Where("teacher_code = ?", p.TeacherCode).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_TEACHER_CODE"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return passwordFailure(c, err)
	}
	user := models.User{Username: p.Username, Email: p.Email, Password: string(hash), Role: models.RoleTeacher}
	t := models.Teacher{FullName: p.FullName, TeacherCode: p.TeacherCode, Subjects: subs, Classes: classes}

	s := saga.New("create teacher")
	s.Add(saga.Step{
		Name:       "identity " + p.Username,
		Forward:    func() error { return database.DB.Create(&user).Error },
		Compensate: func() error { return database.DB.Delete(&models.User{}, user.ID).Error },
	})
	s.Add(saga.Step{
		Name: "profile " + p.TeacherCode,
		Forward: func() error {
			t.UserID = user.ID
			return database.DB.Create(&t).Error
		},
		Compensate: func() error {
			if err := database.DB.Model(&t).Association("Subjects").Clear(); err != nil {
				return err
			}
			if err := database.DB.Model(&t).Association("Classes").Clear(); err != nil {
				return err
			}
			return database.DB.Delete(&models.Teacher{}, t.ID).Error
		},
	})
	s.Add(saga.Step{
		Name:    "link identity",
		Forward: func() error { return database.DB.Model(&user).Update("teacher_id", t.ID).Error },
	})

	if err := s.Run(); err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]any{"error": "DUPLICATE_TEACHER", "message": err.Error()})
		}
		return internalError(c, "DB_SAVE_FAILED", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"teacher": t, "user": userSummary(&user)})
}

// PUT /teachers/:id
// Identity fields are written first; if the profile write then fails,
// the identity's previous values are restored. A replaced password
// hash is the one exception: it stays replaced and is logged.
func (h *TeacherHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var t models.Teacher
	if err := database.DB.First(&t, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	var user models.User
	if err := database.DB.First(&user, t.UserID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "IDENTITY_MISSING"})
	}

	var p teacherPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	subs, unknown := resolveSubjectCodes(p.SubjectCodes)
	if unknown != "" {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "SUBJECT_NOT_FOUND", "message": "unknown subject code " + unknown})
	}
	classes, unknown := resolveClassCodes(p.ClassCodes)
	if unknown != "" {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "CLASS_NOT_FOUND", "message": "unknown class code " + unknown})
	}

	var cnt int64
	database.DB.Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", p.Username, p.Email, user.ID).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_USER"})
	}
	database.DB.Model(&models.Teacher{}).
		Where("teacher_code = ? AND id <> ?", p.TeacherCode, t.ID).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_TEACHER_CODE"})
	}

	prevUsername, prevEmail := user.Username, user.Email
	passwordReplaced := p.Password != ""
	var newHash string
	if passwordReplaced {
		b, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return passwordFailure(c, err)
		}
		newHash = string(b)
	}

	s := saga.New("update teacher")
	s.Add(saga.Step{
		Name: "identity " + p.Username,
		Forward: func() error {
			updates := map[string]any{"username": p.Username, "email": p.Email}
			if passwordReplaced {
				updates["password"] = newHash
			}
			return database.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
		},
		Compensate: func() error {
			if passwordReplaced {
				log.Printf("[rollback] user %d: password hash already replaced, previous hash is not restored", user.ID)
			}
			return database.DB.Model(&models.User{}).Where("id = ?", user.ID).
				Updates(map[string]any{"username": prevUsername, "email": prevEmail}).Error
		},
	})
	s.Add(saga.Step{
		Name: "profile " + p.TeacherCode,
		Forward: func() error {
			if err := database.DB.Model(&models.Teacher{}).Where("id = ?", t.ID).
				Updates(map[string]any{"full_name": p.FullName, "teacher_code": p.TeacherCode}).Error; err != nil {
				return err
			}
			if err := database.DB.Model(&t).Association("Subjects").Replace(&subs); err != nil {
				return err
			}
			return database.DB.Model(&t).Association("Classes").Replace(&classes)
		},
	})

	if err := s.Run(); err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]any{"error": "DUPLICATE_TEACHER", "message": err.Error()})
		}
		return internalError(c, "DB_SAVE_FAILED", err)
	}

	var out models.Teacher
	if err := database.DB.Preload("Subjects").Preload("Classes").First(&out, t.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, out)
}

// DELETE /teachers/:id
// Profile goes first, identity second. A missing identity is logged as
// an integrity warning; the deletion still succeeds.
func (h *TeacherHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var t models.Teacher
	if err := database.DB.First(&t, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	if err := database.DB.Model(&t).Association("Subjects").Clear(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}
	if err := database.DB.Model(&t).Association("Classes").Clear(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}
	if err := database.DB.Delete(&t).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}

	res := database.DB.Delete(&models.User{}, t.UserID)
	if res.Error != nil {
		log.Printf("[integrity] teacher %d: deleting linked user %d failed: %v", t.ID, t.UserID, res.Error)
	} else if res.RowsAffected == 0 {
		log.Printf("[integrity] teacher %d had no linked user %d", t.ID, t.UserID)
	}
	return c.NoContent(http.StatusNoContent)
}
