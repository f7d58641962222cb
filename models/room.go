package models

import "time"

type Room struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:60;not null"`

	Cameras []Camera `json:"cameras,omitempty" gorm:"foreignKey:RoomID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
