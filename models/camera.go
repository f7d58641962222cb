package models

import "time"

// Camera is a device mounted in a room. CameraURL is the live MJPEG
// stream endpoint; the still-image endpoint is derived from it at
// capture time.
type Camera struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	CameraID  string `json:"camera_id" gorm:"uniqueIndex;size:60;not null"` // device identifier
	CameraURL string `json:"camera_url" gorm:"uniqueIndex;size:255;not null"`
	RoomID    uint   `json:"room_id" gorm:"index;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
