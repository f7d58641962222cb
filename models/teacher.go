package models

import "time"

// Teacher is the role profile paired 1:1 with a User identity.
type Teacher struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	FullName    string `json:"full_name" gorm:"size:100;not null"`
	TeacherCode string `json:"teacher_code" gorm:"uniqueIndex;size:20;not null"`
	UserID      uint   `json:"user_id" gorm:"index;not null"`

	Subjects []Subject `json:"subjects,omitempty" gorm:"many2many:teacher_subjects"`
	Classes  []Class   `json:"classes,omitempty" gorm:"many2many:teacher_classes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
