package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
	"github.com/ShubhamSingh-04/attendance-system-server/recognizer"
	"github.com/ShubhamSingh-04/attendance-system-server/saga"
	"github.com/ShubhamSingh-04/attendance-system-server/storage"
)

type StudentHandler struct {
	store *storage.Store
	rec   *recognizer.Client
}

func NewStudentHandler(store *storage.Store, rec *recognizer.Client) *StudentHandler {
	return &StudentHandler{store: store, rec: rec}
}

// studentView is the response shape for students. The embedding itself
// never leaves the API; callers only learn whether one is stored.
func studentView(s *models.Student) map[string]any {
	return map[string]any{
		"id":            s.ID,
		"full_name":     s.FullName,
		"usn":           s.USN,
		"class_id":      s.ClassID,
		"user_id":       s.UserID,
		"has_embedding": s.HasEmbedding(),
		"created_at":    s.CreatedAt,
		"updated_at":    s.UpdatedAt,
	}
}

type studentPayload struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	USN      string `json:"usn" validate:"required,alphanum,max=20"`
	ClassID  uint   `json:"class_id" validate:"required"`
	Username string `json:"username" validate:"required,min=3,max=60"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

func studentPayloadFromForm(c echo.Context) studentPayload {
	return studentPayload{
		FullName: c.FormValue("full_name"),
		USN:      c.FormValue("usn"),
		ClassID:  uint(atoiOr(c.FormValue("class_id"), 0)),
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
	}
}

func (p *studentPayload) norm() {
	p.FullName = strings.Join(strings.Fields(p.FullName), " ")
	p.USN = strings.ToUpper(strings.TrimSpace(p.USN))
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Password = strings.TrimSpace(p.Password)
}

// recognizerFailure maps an embedding call failure onto the API error
// taxonomy: the recognizer rejecting the image is the caller's problem,
// anything else is an upstream failure.
func recognizerFailure(c echo.Context, err error) error {
	var ue *recognizer.UpstreamError
	if errors.As(err, &ue) {
		if ue.StatusCode == http.StatusBadRequest {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "EMBEDDING_FAILED", "message": ue.Detail})
		}
		return c.JSON(http.StatusBadGateway, map[string]any{"error": "RECOGNIZER_FAILED", "message": ue.Detail})
	}
	return c.JSON(http.StatusBadGateway, map[string]any{"error": "RECOGNIZER_UNREACHABLE", "message": err.Error()})
}

// GET /students?class=&q=&page=&size=
func (h *StudentHandler) List(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	classID := strings.TrimSpace(c.QueryParam("class"))
	page, size := pageParams(c)

	var items []models.Student
	tx := database.DB.Model(&models.Student{})
	if classID != "" {
		tx = tx.Where("class_id = ?", classID)
	}
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(usn) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_COUNT_FAILED"})
	}
	if err := tx.Order("usn").Limit(size).Offset((page - 1) * size).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	views := make([]map[string]any, 0, len(items))
	for i := range items {
		views = append(views, studentView(&items[i]))
	}
	return c.JSON(http.StatusOK, map[string]any{"data": views, "page": page, "size": size, "total": total})
}

// GET /students/:id
func (h *StudentHandler) Get(c echo.Context) error {
	id := c.Param("id")
	var s models.Student
	if err := database.DB.First(&s, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, studentView(&s))
}

// POST /students  (multipart: fields + image)
// The registration image is stored and embedded before anything is
// written to the database, so a rejected face aborts cleanly. Identity
// and profile then land via compensated steps.
func (h *StudentHandler) Create(c echo.Context) error {
	p := studentPayloadFromForm(c)
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}
	if p.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "VALIDATION_ERROR", "fields": map[string]string{"password": "is required"},
		})
	}
	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "VALIDATION_ERROR", "fields": map[string]string{"image": "is required"},
		})
	}

	if !classExists(p.ClassID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
	}
	var cnt int64
	database.DB.Model(&models.Student{}).Where("usn = ?", p.USN).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_USN"})
	}
	database.DB.Model(&models.User{}).Where("username = ? OR email = ?", p.Username, p.Email).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_USER"})
	}

	// hash before any storage work so a refused password leaves no file
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return passwordFailure(c, err)
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	defer src.Close()
	imageName, err := h.store.SaveStudentImage(p.USN, filepath.Ext(file.Filename), src)
	if err != nil {
		return internalError(c, "STORAGE_FAILED", err)
	}

	emb, err := h.rec.GenerateEmbedding(c.Request().Context(), p.USN, imageName)
	if err != nil {
		if rmErr := h.store.RemoveStudentImage(imageName); rmErr != nil {
			log.Printf("[storage] cleanup %s after failed embedding: %v", imageName, rmErr)
		}
		return recognizerFailure(c, err)
	}

	user := models.User{Username: p.Username, Email: p.Email, Password: string(hash), Role: models.RoleStudent}
	st := models.Student{FullName: p.FullName, USN: p.USN, ClassID: p.ClassID}
	if err := st.SetEmbedding(emb); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "EMBEDDING_ENCODE_FAILED"})
	}

	s := saga.New("create student")
	s.Add(saga.Step{
		Name:       "identity " + p.Username,
		Forward:    func() error { return database.DB.Create(&user).Error },
		Compensate: func() error { return database.DB.Delete(&models.User{}, user.ID).Error },
	})
	s.Add(saga.Step{
		Name: "profile " + p.USN,
		Forward: func() error {
			st.UserID = user.ID
			return database.DB.Create(&st).Error
		},
		Compensate: func() error { return database.DB.Delete(&models.Student{}, st.ID).Error },
	})
	s.Add(saga.Step{
		Name:    "link identity",
		Forward: func() error { return database.DB.Model(&user).Update("student_id", st.ID).Error },
	})

	if err := s.Run(); err != nil {
		if rmErr := h.store.RemoveStudentImage(imageName); rmErr != nil {
			log.Printf("[storage] cleanup %s after failed create: %v", imageName, rmErr)
		}
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]any{"error": "DUPLICATE_STUDENT", "message": err.Error()})
		}
		return internalError(c, "DB_SAVE_FAILED", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"student": studentView(&st), "user": userSummary(&user)})
}

// PUT /students/:id  (multipart: fields + optional image)
// A replacement image is re-embedded before anything is persisted.
func (h *StudentHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var st models.Student
	if err := database.DB.First(&st, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	var user models.User
	if err := database.DB.First(&user, st.UserID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "IDENTITY_MISSING"})
	}

	p := studentPayloadFromForm(c)
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	if !classExists(p.ClassID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
	}
	var cnt int64
	database.DB.Model(&models.Student{}).Where("usn = ? AND id <> ?", p.USN, st.ID).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_USN"})
	}
	database.DB.Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", p.Username, p.Email, user.ID).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_USER"})
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

	var newEmbedding datatypes.JSON
	var newImageName string
	if file, err := c.FormFile("image"); err == nil {
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
		}
		defer src.Close()
		newImageName, err = h.store.SaveStudentImage(p.USN, filepath.Ext(file.Filename), src)
		if err != nil {
			return internalError(c, "STORAGE_FAILED", err)
		}
		emb, err := h.rec.GenerateEmbedding(c.Request().Context(), p.USN, newImageName)
		if err != nil {
			if rmErr := h.store.RemoveStudentImage(newImageName); rmErr != nil {
				log.Printf("[storage] cleanup %s after failed embedding: %v", newImageName, rmErr)
			}
			return recognizerFailure(c, err)
		}
		b, _ := json.Marshal(emb)
		newEmbedding = datatypes.JSON(b)
	}

	s := saga.New("update student")
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
		Name: "profile " + p.USN,
		Forward: func() error {
			updates := map[string]any{"full_name": p.FullName, "usn": p.USN, "class_id": p.ClassID}
			if newEmbedding != nil {
				updates["face_embedding"] = newEmbedding
			}
			return database.DB.Model(&models.Student{}).Where("id = ?", st.ID).Updates(updates).Error
		},
	})

	if err := s.Run(); err != nil {
		// the replacement image must not outlive the failed update
		if newImageName != "" {
			if rmErr := h.store.RemoveStudentImage(newImageName); rmErr != nil {
				log.Printf("[storage] cleanup %s after failed update: %v", newImageName, rmErr)
			}
		}
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]any{"error": "DUPLICATE_STUDENT", "message": err.Error()})
		}
		return internalError(c, "DB_SAVE_FAILED", err)
	}

	var out models.Student
	if err := database.DB.First(&out, st.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, studentView(&out))
}

// DELETE /students/:id
// Removes profile, identity, and every stored image carrying the
// student's USN prefix. Missing pieces are logged, not fatal.
func (h *StudentHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var st models.Student
	if err := database.DB.First(&st, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	if err := database.DB.Delete(&st).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}

	res := database.DB.Delete(&models.User{}, st.UserID)
	if res.Error != nil {
		log.Printf("[integrity] student %d: deleting linked user %d failed: %v", st.ID, st.UserID, res.Error)
	} else if res.RowsAffected == 0 {
		log.Printf("[integrity] student %d had no linked user %d", st.ID, st.UserID)
	}

	removed := h.store.RemoveStudentImages(st.USN)
	log.Printf("[storage] removed %d stored image(s) for %s", removed, st.USN)

	return c.NoContent(http.StatusNoContent)
}
