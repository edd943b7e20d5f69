package repository

import (
	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

type AccessRepository struct {
	DB *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{DB: db}
}

// LockRow 带展示字段的锁记录行，供待办面板使用
type LockRow struct {
	model.QuizLock
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

// TeacherScope 通过班级指派解析教师可触达的学生与课程集合
func (r *AccessRepository) TeacherScope(teacherID uint) (students []uint, courses []uint, err error) {
	var sectionIDs []uint
	if err = r.DB.Model(&model.SectionTeacher{}).
		Where("teacher_id = ?", teacherID).
		Pluck("section_id", &sectionIDs).Error; err != nil {
		return nil, nil, err
	}
	if len(sectionIDs) == 0 {
		return nil, nil, nil
	}

	if err = r.DB.Model(&model.SectionStudent{}).
		Where("section_id IN ?", sectionIDs).
		Distinct().Pluck("student_id", &students).Error; err != nil {
		return nil, nil, err
	}
	if err = r.DB.Model(&model.SectionCourse{}).
		Where("section_id IN ?", sectionIDs).
		Distinct().Pluck("course_id", &courses).Error; err != nil {
		return nil, nil, err
	}
	return students, courses, nil
}

// CanViewStudentCourse 教师是否有权查看某学生在某课程下的尝试
func (r *AccessRepository) CanViewStudentCourse(teacherID, studentID, courseID uint) (bool, error) {
	students, courses, err := r.TeacherScope(teacherID)
	if err != nil {
		return false, err
	}
	for _, id := range courses {
		if id == courseID {
			return true, nil
		}
	}
	for _, id := range students {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

// ListLockedTeacher 教师视角：课程匹配或学生匹配之一即可见。
// OR 是有意为之——学生在教师班上但课程归属不明确时也要能看到
func (r *AccessRepository) ListLockedTeacher(students, courses []uint) ([]LockRow, error) {
	if len(students) == 0 && len(courses) == 0 {
		return nil, nil
	}

	query := r.lockedQuery().Where("l.authorization_level = ?", model.LevelTeacher)
	switch {
	case len(students) == 0:
		query = query.Where("l.course_id IN ?", courses)
	case len(courses) == 0:
		query = query.Where("l.student_id IN ?", students)
	default:
		query = query.Where("l.course_id IN ? OR l.student_id IN ?", courses, students)
	}

	var rows []LockRow
	err := query.Scan(&rows).Error
	return rows, err
}

// ListLockedByDepartment 系主任视角：本系学生、HOD 层级
func (r *AccessRepository) ListLockedByDepartment(departmentID uint) ([]LockRow, error) {
	var rows []LockRow
	err := r.lockedQuery().
		Where("l.authorization_level = ? AND u.department_id = ?", model.LevelHOD, departmentID).
		Scan(&rows).Error
	return rows, err
}

// ListLockedBySchool 院长视角：本院学生、DEAN 层级
func (r *AccessRepository) ListLockedBySchool(schoolID uint) ([]LockRow, error) {
	var rows []LockRow
	err := r.lockedQuery().
		Where("l.authorization_level = ? AND u.school_id = ?", model.LevelDean, schoolID).
		Scan(&rows).Error
	return rows, err
}

// ListAllLocked 管理员视角：不过滤范围和层级
func (r *AccessRepository) ListAllLocked() ([]LockRow, error) {
	var rows []LockRow
	err := r.lockedQuery().Scan(&rows).Error
	return rows, err
}

func (r *AccessRepository) lockedQuery() *gorm.DB {
	return r.DB.Table("quiz_locks l").
		Select("l.*, u.name as student_name, u.email as student_email").
		Joins("JOIN users u ON l.student_id = u.id").
		Where("l.is_locked = ? AND l.deleted_at IS NULL", true).
		Order("l.locked_at desc")
}
