package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

type AuthHandler struct {
	JWTSecret string
}

func NewAuthHandler(secret string) *AuthHandler {
	return &AuthHandler{JWTSecret: secret}
}

func (h *AuthHandler) signJWT(sub uint, role models.Role, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role.String(),
		"name": name,
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	}
	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tk.SignedString([]byte(h.JWTSecret))
}

type loginReq struct {
	Identity string `json:"identity"` // username or email
	Username string `json:"username"` // accepted as an alias for identity
	Password string `json:"password"`
}

type changePasswordReq struct {
	Current string `json:"current_password"`
	Next    string `json:"new_password"`
}

func userSummary(u *models.User) map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	}
}

// displayName resolves the human name carried in token claims: the
// linked profile's full name when one exists, the username otherwise.
func displayName(u *models.User) string {
	switch u.Role {
	case models.RoleTeacher:
		if u.TeacherID != nil {
			var t models.Teacher
			if err := database.DB.First(&t, *u.TeacherID).Error; err == nil {
				return t.FullName
			}
		}
	case models.RoleStudent:
		if u.StudentID != nil {
			var s models.Student
			if err := database.DB.First(&s, *u.StudentID).Error; err == nil {
				return s.FullName
			}
		}
	}
	return u.Username
}

// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}

	id := strings.TrimSpace(req.Identity)
	if id == "" {
		id = strings.TrimSpace(req.Username)
	}
	if id == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	// unknown identity and wrong password answer identically
	var u models.User
	if err := database.DB.Where("username = ? OR email = ?", id, strings.ToLower(id)).First(&u).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]any{"error": "INVALID_CREDENTIALS"})
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]any{"error": "INVALID_CREDENTIALS"})
	}

	token, err := h.signJWT(u.ID, u.Role, displayName(&u), 7*24*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, map[string]any{"error": "TOKEN_GEN_FAILED"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"token": token,
		"user":  userSummary(&u),
	})
}

// GET /auth/me
// The body depends on the caller's role: admins get the identity alone,
// teachers get their profile with subjects and classes, students get
// their profile with the enrolled class.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, role := currentUser(c)

	var u models.User
	if err := database.DB.First(&u, uid).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]any{"error": "USER_NOT_FOUND"})
	}

	resp := map[string]any{"user": userSummary(&u)}

	switch role {
	case models.RoleAdmin:
		// identity only

	case models.RoleTeacher:
		if u.TeacherID == nil {
			log.Printf("[integrity] user %d has role teacher but no teacher profile", u.ID)
			break
		}
		var t models.Teacher
		if err := database.DB.Preload("Subjects").Preload("Classes").First(&t, *u.TeacherID).Error; err != nil {
			log.Printf("[integrity] user %d: teacher profile %d missing: %v", u.ID, *u.TeacherID, err)
			break
		}
		resp["teacher"] = t

	case models.RoleStudent:
		if u.StudentID == nil {
			log.Printf("[integrity] user %d has role student but no student profile", u.ID)
			break
		}
		var s models.Student
		if err := database.DB.First(&s, *u.StudentID).Error; err != nil {
			log.Printf("[integrity] user %d: student profile %d missing: %v", u.ID, *u.StudentID, err)
			break
		}
		resp["student"] = studentView(&s)
		var cls models.Class
		if err := database.DB.First(&cls, s.ClassID).Error; err == nil {
			resp["class"] = cls
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// PUT /auth/password
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, _ := currentUser(c)

	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	req.Current = strings.TrimSpace(req.Current)
	req.Next = strings.TrimSpace(req.Next)

	if len(req.Next) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{"error": "WEAK_PASSWORD"})
	}
	// bcrypt refuses inputs past 72 bytes
	if len(req.Next) > 72 {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"error": "PASSWORD_TOO_LONG", "message": "password must be at most 72 bytes",
		})
	}

	var u models.User
	if err := database.DB.First(&u, uid).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]any{"error": "USER_NOT_FOUND"})
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Current)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]any{"error": "INVALID_CURRENT_PASSWORD"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Next), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, map[string]any{"error": "HASH_FAILED"})
	}
	if err := database.DB.Model(&models.User{}).Where("id = ?", uid).
		Update("password", string(hash)).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, map[string]any{"error": "DB_SAVE_FAILED"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}
