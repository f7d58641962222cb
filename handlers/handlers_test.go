package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

// useTestDB swaps the package-global handle for a fresh in-memory
// database. Handlers read database.DB directly, so tests in this
// package must not run in parallel.
func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db
	return db
}

type call struct {
	method string
	target string
	body   any       // JSON-encoded when non-nil
	form   io.Reader // multipart body, paired with ctype
	ctype  string
	uid    uint
	role   models.Role
	params map[string]string
}

// do runs one handler the way the router would, including echo's error
// handler so echo.NewHTTPError responses land in the recorder.
func do(t *testing.T, h echo.HandlerFunc, cl call) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	ctype := cl.ctype
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
		ctype = echo.MIMEApplicationJSON
	} else if cl.form != nil {
		body = cl.form
	}
	if cl.target == "" {
		cl.target = "/"
	}

	e := echo.New()
	req := httptest.NewRequest(cl.method, cl.target, body)
	if ctype != "" {
		req.Header.Set(echo.HeaderContentType, ctype)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if cl.role != "" {
		c.Set("user_id", cl.uid)
		c.Set("role", cl.role)
	}
	if len(cl.params) > 0 {
		names := make([]string, 0, len(cl.params))
		values := make([]string, 0, len(cl.params))
		for k, v := range cl.params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func seedClass(t *testing.T, name, code string, semester int) models.Class {
	t.Helper()
	cls := models.Class{Name: name, Code: code, Semester: semester}
	require.NoError(t, database.DB.Create(&cls).Error)
	return cls
}

func seedSubject(t *testing.T, name, code string, classID uint) models.Subject {
	t.Helper()
	s := models.Subject{Name: name, Code: code, ClassID: classID}
	require.NoError(t, database.DB.Create(&s).Error)
	return s
}

func seedUser(t *testing.T, username, password string, role models.Role) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{Username: username, Email: username + "@example.com", Password: string(hash), Role: role}
	require.NoError(t, database.DB.Create(&u).Error)
	return u
}

// seedStudent creates the profile together with its linked login, the
// same pair the create endpoint produces.
func seedStudent(t *testing.T, fullName, usn string, classID uint) models.Student {
	t.Helper()
	u := seedUser(t, strings.ToLower(usn), "password123", models.RoleStudent)
	s := models.Student{FullName: fullName, USN: usn, ClassID: classID, UserID: u.ID}
	require.NoError(t, database.DB.Create(&s).Error)
	require.NoError(t, database.DB.Model(&u).Update("student_id", s.ID).Error)
	return s
}
