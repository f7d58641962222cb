package models

import "time"

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Attendance is one student's status for one subject on one date.
// The composite unique index enforces a single record per
// (student, subject, date).
type Attendance struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	StudentID uint   `json:"student_id" gorm:"not null;uniqueIndex:idx_attendance_once_per_day"`
	SubjectID uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_attendance_once_per_day"`
	Date      string `json:"date" gorm:"size:10;not null;uniqueIndex:idx_attendance_once_per_day"`
	Time      string `json:"time" gorm:"size:5;not null"`
	Status    string `json:"status" gorm:"size:10;not null"`

	// RecordedBy is the teacher who wrote the record. Amendments are
	// restricted to this teacher.
	RecordedBy uint `json:"recorded_by" gorm:"index;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
