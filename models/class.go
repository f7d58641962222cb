package models

import "time"

type Class struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"uniqueIndex;size:60;not null"`
	Code     string `json:"code" gorm:"uniqueIndex;size:20;not null"`
	Semester int    `json:"semester" gorm:"not null"`

	Subjects []Subject `json:"subjects,omitempty" gorm:"foreignKey:ClassID"`
	Students []Student `json:"students,omitempty" gorm:"foreignKey:ClassID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
