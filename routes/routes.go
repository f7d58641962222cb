package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShubhamSingh-04/attendance-system-server/camera"
	"github.com/ShubhamSingh-04/attendance-system-server/capture"
	"github.com/ShubhamSingh-04/attendance-system-server/config"
	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/handlers"
	"github.com/ShubhamSingh-04/attendance-system-server/middlewares"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
	"github.com/ShubhamSingh-04/attendance-system-server/recognizer"
	"github.com/ShubhamSingh-04/attendance-system-server/storage"
)

// Register wires all HTTP routes.
func Register(e *echo.Echo, cfg *config.Config, store *storage.Store) {
	cams := camera.NewClient()
	rec := recognizer.NewClient(cfg.RecognizerURL)
	orch := capture.New(database.DB, cams, rec, store)

	// ===== Handlers (shared singletons) =====
	auth := handlers.NewAuthHandler(cfg.JWTSecret)
	rooms := handlers.NewRoomHandler()
	classes := handlers.NewClassHandler()
	subjects := handlers.NewSubjectHandler()
	teachers := handlers.NewTeacherHandler()
	students := handlers.NewStudentHandler(store, rec)
	att := handlers.NewAttendanceHandler()
	capt := handlers.NewCaptureHandler(orch)
	admin := handlers.NewAdminHandler()

	// ===== Public =====
	e.GET("/health", handlers.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/auth/login", auth.Login)

	authMW := middlewares.RequireAuth(cfg.JWTSecret)
	adminOnly := middlewares.RequireRole(models.RoleAdmin)
	staff := middlewares.RequireRole(models.RoleTeacher, models.RoleAdmin)

	// ===== Session =====
	session := e.Group("/auth", authMW)
	session.GET("/me", auth.Me)
	session.PUT("/password", auth.ChangePassword)

	// ===== Admin =====
	adm := e.Group("/admin", authMW, adminOnly)
	adm.GET("/overview", admin.Overview)

	// ===== Rooms (cameras ride along) =====
	rm := e.Group("/rooms", authMW)
	rm.GET("", rooms.List, staff)
	rm.GET("/:id", rooms.Get, staff)
	rm.POST("", rooms.Create, adminOnly)
	rm.PUT("/:id", rooms.Update, adminOnly)
	rm.DELETE("/:id", rooms.Delete, adminOnly)

	// ===== Classes =====
	cl := e.Group("/classes", authMW)
	cl.GET("", classes.List, staff)
	cl.GET("/:id", classes.Get, staff)
	cl.POST("", classes.Create, adminOnly)
	cl.PUT("/:id", classes.Update, adminOnly)
	cl.DELETE("/:id", classes.Delete, adminOnly)

	// ===== Subjects =====
	sj := e.Group("/subjects", authMW)
	sj.GET("", subjects.List, staff)
	sj.GET("/:id", subjects.Get, staff)
	sj.POST("", subjects.Create, adminOnly)
	sj.PUT("/:id", subjects.Update, adminOnly)
	sj.DELETE("/:id", subjects.Delete, adminOnly)

	// ===== Teachers (admin scope) =====
	tc := e.Group("/teachers", authMW, adminOnly)
	tc.GET("", teachers.List)
	tc.GET("/:id", teachers.Get)
	tc.POST("", teachers.Create)
	tc.PUT("/:id", teachers.Update)
	tc.DELETE("/:id", teachers.Delete)

	// ===== Students =====
	st := e.Group("/students", authMW)
	st.GET("", students.List, staff)
	st.GET("/:id", students.Get, staff)
	st.POST("", students.Create, adminOnly)
	st.PUT("/:id", students.Update, adminOnly)
	st.DELETE("/:id", students.Delete, adminOnly)

	// ===== Attendance =====
	at := e.Group("/attendance", authMW)
	at.POST("/capture", capt.Capture, staff)
	at.POST("/confirm", att.Confirm, staff)
	at.GET("", att.List, staff)
	at.GET("/summary/class/:id", att.SummaryByClass, staff)
	// students read their own summary; the handler checks ownership
	at.GET("/summary/student/:usn", att.SummaryByStudent)
	at.PATCH("/:id", att.Amend, staff)
}
