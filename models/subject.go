package models

import "time"

type Subject struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Name    string `json:"name" gorm:"size:100;not null"`
	Code    string `json:"code" gorm:"uniqueIndex;size:20;not null"`
	ClassID uint   `json:"class_id" gorm:"index;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
