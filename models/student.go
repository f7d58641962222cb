package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Student is the role profile paired 1:1 with a User identity and
// enrolled in exactly one class.
type Student struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	FullName string `json:"full_name" gorm:"size:100;not null"`
	USN      string `json:"usn" gorm:"uniqueIndex;size:20;not null"`
	ClassID  uint   `json:"class_id" gorm:"index;not null"`
	UserID   uint   `json:"user_id" gorm:"index;not null"`

	// FaceEmbedding holds the recognizer's vector for this student as a
	// JSON array. It never leaves the API; responses carry has_embedding
	// instead.
	FaceEmbedding datatypes.JSON `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbedding reports whether a face embedding is stored for the student.
func (s *Student) HasEmbedding() bool {
	return len(s.FaceEmbedding) > 0
}

// Embedding decodes the stored vector. Returns nil when none is stored.
func (s *Student) Embedding() []float64 {
	if len(s.FaceEmbedding) == 0 {
		return nil
	}
	var v []float64
	if err := json.Unmarshal(s.FaceEmbedding, &v); err != nil {
		return nil
	}
	return v
}

// SetEmbedding stores the vector as the student's face embedding.
func (s *Student) SetEmbedding(v []float64) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.FaceEmbedding = datatypes.JSON(b)
	return nil
}
