package model

// Section 教学班。教师通过班级指派获得对班内全部学生与课程的管辖权
type Section struct {
	BaseModel
	Name         string `gorm:"size:100;not null" json:"name"`
	DepartmentID uint   `gorm:"index" json:"departmentId"`
	SchoolID     uint   `gorm:"index" json:"schoolId"`
}

func (Section) TableName() string {
	return "sections"
}

type SectionTeacher struct {
	BaseModel
	SectionID uint `gorm:"index;uniqueIndex:idx_section_teacher" json:"sectionId"`
	TeacherID uint `gorm:"index;uniqueIndex:idx_section_teacher" json:"teacherId"`
}

func (SectionTeacher) TableName() string {
	return "section_teachers"
}

type SectionStudent struct {
	BaseModel
	SectionID uint `gorm:"index;uniqueIndex:idx_section_student" json:"sectionId"`
	StudentID uint `gorm:"index;uniqueIndex:idx_section_student" json:"studentId"`
}

func (SectionStudent) TableName() string {
	return "section_students"
}

type SectionCourse struct {
	BaseModel
	SectionID uint `gorm:"index;uniqueIndex:idx_section_course" json:"sectionId"`
	CourseID  uint `gorm:"index;uniqueIndex:idx_section_course" json:"courseId"`
}

func (SectionCourse) TableName() string {
	return "section_courses"
}
