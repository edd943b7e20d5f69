package service

import (
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"
)

// AccessService 回答"这位操作者现在能看到哪些锁"。每个角色有独立的
// 可见范围：教师按班级指派，系主任按系，院长按学院，管理员全量。
// 教师/系主任/院长只看到停留在自己审批层级的锁
type AccessService struct {
	Access *repository.AccessRepository
	Users  *repository.UserRepository
}

func NewAccessService(access *repository.AccessRepository, users *repository.UserRepository) *AccessService {
	return &AccessService{Access: access, Users: users}
}

func (s *AccessService) PendingLocks(actor *util.Claims) ([]repository.LockRow, error) {
	switch actor.Role {
	case model.Teacher:
		students, courses, err := s.Access.TeacherScope(actor.UserID)
		if err != nil {
			return nil, err
		}
		return s.Access.ListLockedTeacher(students, courses)
	case model.HOD:
		user, err := s.Users.FindByID(actor.UserID)
		if err != nil {
			return nil, err
		}
		return s.Access.ListLockedByDepartment(user.DepartmentID)
	case model.Dean:
		user, err := s.Users.FindByID(actor.UserID)
		if err != nil {
			return nil, err
		}
		return s.Access.ListLockedBySchool(user.SchoolID)
	case model.Admin:
		return s.Access.ListAllLocked()
	default:
		return nil, util.ErrPermissionDenied
	}
}

// CanViewStudentCourse 暴露给尝试查询层的范围校验
func (s *AccessService) CanViewStudentCourse(teacherID, studentID, courseID uint) (bool, error) {
	return s.Access.CanViewStudentCourse(teacherID, studentID, courseID)
}
