package model

import "time"

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	HOD     UserRole = "hod"
	Dean    UserRole = "dean"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;unique;not null" json:"email"`
	Password     string    `gorm:"size:100;not null" json:"-"`
	Role         UserRole  `gorm:"type:enum('student','teacher','hod','dean','admin');default:'student'" json:"role"`
	DepartmentID uint      `gorm:"index" json:"departmentId"` // 系主任/学生所在系
	SchoolID     uint      `gorm:"index" json:"schoolId"`     // 院长/学生所在学院
	Disabled     bool      `gorm:"default:false" json:"disabled"`
	LastLogin    time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
