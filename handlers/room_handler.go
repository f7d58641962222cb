package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
	"github.com/ShubhamSingh-04/attendance-system-server/saga"
)

type RoomHandler struct{}

func NewRoomHandler() *RoomHandler { return &RoomHandler{} }

type cameraPayload struct {
	CameraID  string `json:"camera_id" validate:"required,max=60"`
	CameraURL string `json:"camera_url" validate:"required,url,max=255"`
}

func (p *cameraPayload) norm() {
	p.CameraID = strings.TrimSpace(p.CameraID)
	p.CameraURL = strings.TrimSpace(p.CameraURL)
}

type roomPayload struct {
	Name    string          `json:"name" validate:"required,max=60"`
	Cameras []cameraPayload `json:"cameras" validate:"omitempty,dive"`
}

func (p *roomPayload) norm() {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	for i := range p.Cameras {
		p.Cameras[i].norm()
	}
}

// Room edits take at most the one camera already linked to the room; a
// cameras array is the create-only shape and is rejected here.
type roomUpdatePayload struct {
	Name    string          `json:"name" validate:"required,max=60"`
	Camera  *cameraPayload  `json:"camera"`
	Cameras json.RawMessage `json:"cameras"`
}

// GET /rooms?q=&page=&size=
func (h *RoomHandler) List(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	page, size := pageParams(c)

	var items []models.Room
	tx := database.DB.Model(&models.Room{})
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(name) LIKE ?", like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_COUNT_FAILED"})
	}
	if err := tx.Preload("Cameras").Order("id DESC").Limit(size).Offset((page - 1) * size).Find(&items).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, map[string]any{"data": items, "page": page, "size": size, "total": total})
}

// GET /rooms/:id
func (h *RoomHandler) Get(c echo.Context) error {
	id := c.Param("id")
	var r models.Room
	if err := database.DB.Preload("Cameras").First(&r, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, r)
}

// POST /rooms
// Creates the room plus its cameras as one unit: if any camera insert
// fails, previously created cameras and the room are compensated away
// before the error is reported.
func (h *RoomHandler) Create(c echo.Context) error {
	var p roomPayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	p.norm()
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	var cnt int64
	database.DB.Model(&models.Room{}).Where("name = ?", p.Name).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_ROOM_NAME"})
	}
	for i := range p.Cameras {
		database.DB.Model(&models.Camera{}).
			Where("camera_id = ? OR camera_url = ?", p.Cameras[i].CameraID, p.Cameras[i].CameraURL).
			Count(&cnt)
		if cnt > 0 {
			return c.JSON(http.StatusConflict, map[string]any{
				"error":   "DUPLICATE_CAMERA",
				"message": "camera " + p.Cameras[i].CameraID + " conflicts with an existing camera id or url",
			})
		}
	}

	room := models.Room{Name: p.Name}
	created := make([]models.Camera, 0, len(p.Cameras))

	s := saga.New("create room")
	s.Add(saga.Step{
		Name:       "room " + p.Name,
		Forward:    func() error { return database.DB.Create(&room).Error },
		Compensate: func() error { return database.DB.Delete(&models.Room{}, room.ID).Error },
	})
	for i := range p.Cameras {
		cp := p.Cameras[i]
		var cam models.Camera
		s.Add(saga.Step{
			Name: "camera " + cp.CameraID,
			Forward: func() error {
				cam = models.Camera{CameraID: cp.CameraID, CameraURL: cp.CameraURL, RoomID: room.ID}
				if err := database.DB.Create(&cam).Error; err != nil {
					return err
				}
				created = append(created, cam)
				return nil
			},
			Compensate: func() error {
				return database.DB.Delete(&models.Camera{}, cam.ID).Error
			},
		})
	}

	if err := s.Run(); err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]any{"error": "DUPLICATE_CAMERA", "message": err.Error()})
		}
		return internalError(c, "DB_SAVE_FAILED", err)
	}

	room.Cameras = created
	return c.JSON(http.StatusCreated, room)
}

// PUT /rooms/:id
func (h *RoomHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var room models.Room
	if err := database.DB.First(&room, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	var p roomUpdatePayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	if len(p.Cameras) > 0 && string(p.Cameras) != "null" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "UNSUPPORTED_CAMERA_SHAPE",
			"message": "room edit accepts a single camera object, not a cameras array",
		})
	}
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	if p.Camera != nil {
		p.Camera.norm()
	}
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}
	if p.Camera != nil {
		if err := validate.Struct(p.Camera); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
		}
	}

	var cnt int64
	database.DB.Model(&models.Room{}).Where("name = ? AND id <> ?", p.Name, room.ID).Count(&cnt)
	if cnt > 0 {
		return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_ROOM_NAME"})
	}

	var cam models.Camera
	if p.Camera != nil {
		// only the camera already linked to the room can be edited
		if err := database.DB.Where("room_id = ?", room.ID).Order("id").First(&cam).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "CAMERA_NOT_FOUND"})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
		}
		database.DB.Model(&models.Camera{}).
			Where("(camera_id = ? OR camera_url = ?) AND id <> ?", p.Camera.CameraID, p.Camera.CameraURL, cam.ID).
			Count(&cnt)
		if cnt > 0 {
			return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_CAMERA"})
		}
	}

	room.Name = p.Name
	if err := database.DB.Save(&room).Error; err != nil {
		if isDuplicate(err) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_ROOM_NAME"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_SAVE_FAILED"})
	}
	if p.Camera != nil {
		cam.CameraID = p.Camera.CameraID
		cam.CameraURL = p.Camera.CameraURL
		if err := database.DB.Save(&cam).Error; err != nil {
			if isDuplicate(err) {
				return c.JSON(http.StatusConflict, map[string]string{"error": "DUPLICATE_CAMERA"})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_SAVE_FAILED"})
		}
	}

	var out models.Room
	if err := database.DB.Preload("Cameras").First(&out, room.ID).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}
	return c.JSON(http.StatusOK, out)
}

// DELETE /rooms/:id
func (h *RoomHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var room models.Room
	if err := database.DB.First(&room, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_QUERY_FAILED"})
	}

	if err := database.DB.Where("room_id = ?", room.ID).Delete(&models.Camera{}).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}
	if err := database.DB.Delete(&room).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "DB_DELETE_FAILED"})
	}
	return c.NoContent(http.StatusNoContent)
}
