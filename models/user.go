package models

import "time"

// User is the login identity. Role-specific data lives in the Teacher /
// Student profile tables; the matching back-link is set for non-admin
// roles once the paired profile exists.
type User struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Username  string `json:"username" gorm:"uniqueIndex;size:60;not null"`
	Email     string `json:"email" gorm:"uniqueIndex;size:120;not null"`
	Password  string `json:"-" gorm:"not null"` // bcrypt hash
	Role      Role   `json:"role" gorm:"size:20;not null"`
	TeacherID *uint  `json:"teacher_id,omitempty" gorm:"uniqueIndex"`
	StudentID *uint  `json:"student_id,omitempty" gorm:"uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
