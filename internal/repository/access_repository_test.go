package repository

import (
	"quiz_engine_backend/internal/model"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func lockRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "course_id", "authorization_level", "student_name", "student_email",
	})
}

func TestAccessRepositoryTeacherScope(t *testing.T) {
	t.Run("正向测试: 汇总班级指派的学生与课程", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAccessRepository(db)

		mock.ExpectQuery("SELECT `section_id` FROM `section_teachers`").
			WithArgs(21).
			WillReturnRows(sqlmock.NewRows([]string{"section_id"}).AddRow(1).AddRow(2))
		mock.ExpectQuery("SELECT DISTINCT `student_id` FROM `section_students`").
			WithArgs(1, 2).
			WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow(7).AddRow(8))
		mock.ExpectQuery("SELECT DISTINCT `course_id` FROM `section_courses`").
			WithArgs(1, 2).
			WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow(3))

		students, courses, err := repo.TeacherScope(21)
		if err != nil {
			t.Fatalf("解析教师范围失败: %v", err)
		}
		if len(students) != 2 || students[0] != 7 || students[1] != 8 {
			t.Errorf("学生集合不符: %v", students)
		}
		if len(courses) != 1 || courses[0] != 3 {
			t.Errorf("课程集合不符: %v", courses)
		}
	})

	t.Run("反向测试: 无班级指派返回空集且不再查询", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAccessRepository(db)

		mock.ExpectQuery("SELECT `section_id` FROM `section_teachers`").
			WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"section_id"}))

		students, courses, err := repo.TeacherScope(99)
		if err != nil {
			t.Fatalf("解析教师范围失败: %v", err)
		}
		if students != nil || courses != nil {
			t.Errorf("期望空集, 实际 students=%v courses=%v", students, courses)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("不应继续查询学生/课程表: %v", err)
		}
	})
}

func TestAccessRepositoryListLockedTeacher(t *testing.T) {
	t.Run("正向测试: 课程与学生条件取并集", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAccessRepository(db)

		// 课程匹配或学生匹配之一即可见，两个集合都非空时必须生成 OR 条件
		mock.ExpectQuery("FROM quiz_locks l JOIN users u ON l.student_id = u.id.+l.authorization_level = .+l.course_id IN .+ OR l.student_id IN").
			WithArgs(true, string(model.LevelTeacher), 3, 7, 8).
			WillReturnRows(lockRows().
				AddRow(1, 7, 3, "TEACHER", "张三", "zhangsan@example.com"))

		rows, err := repo.ListLockedTeacher([]uint{7, 8}, []uint{3})
		if err != nil {
			t.Fatalf("查询教师待办失败: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("期望 1 条记录, 实际 %d", len(rows))
		}
		if rows[0].StudentName != "张三" || rows[0].StudentEmail != "zhangsan@example.com" {
			t.Errorf("展示字段未映射: %+v", rows[0])
		}
		if rows[0].AuthLevel != model.LevelTeacher {
			t.Errorf("期望教师层级, 实际 %s", rows[0].AuthLevel)
		}
	})

	t.Run("正向测试: 仅课程集合时退化为课程过滤", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAccessRepository(db)

		mock.ExpectQuery("FROM quiz_locks l JOIN users u ON l.student_id = u.id.+l.course_id IN").
			WithArgs(true, string(model.LevelTeacher), 3).
			WillReturnRows(lockRows())

		if _, err := repo.ListLockedTeacher(nil, []uint{3}); err != nil {
			t.Errorf("查询教师待办失败: %v", err)
		}
	})

	t.Run("正向测试: 仅学生集合时退化为学生过滤", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAccessRepository(db)

		mock.ExpectQuery("FROM quiz_locks l JOIN users u ON l.student_id = u.id.+l.student_id IN").
			WithArgs(true, string(model.LevelTeacher), 7).
			WillReturnRows(lockRows())

		if _, err := repo.ListLockedTeacher([]uint{7}, nil); err != nil {
			t.Errorf("查询教师待办失败: %v", err)
		}
	})

	t.Run("反向测试: 范围为空时不触库", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAccessRepository(db)

		rows, err := repo.ListLockedTeacher(nil, nil)
		if err != nil {
			t.Fatalf("空范围不应报错: %v", err)
		}
		if rows != nil {
			t.Errorf("期望空结果, 实际 %v", rows)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("空范围不应发出查询: %v", err)
		}
	})
}

func TestAccessRepositoryListLockedByDepartment(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccessRepository(db)

	// 系主任只看本系学生停留在 HOD 层级的锁
	mock.ExpectQuery("FROM quiz_locks l JOIN users u ON l.student_id = u.id.+l.authorization_level = .+u.department_id =").
		WithArgs(true, string(model.LevelHOD), 2).
		WillReturnRows(lockRows().
			AddRow(5, 9, 4, "HOD", "李四", "lisi@example.com"))

	rows, err := repo.ListLockedByDepartment(2)
	if err != nil {
		t.Fatalf("查询系主任待办失败: %v", err)
	}
	if len(rows) != 1 || rows[0].AuthLevel != model.LevelHOD {
		t.Errorf("期望 1 条 HOD 层级记录, 实际 %+v", rows)
	}
}

func TestAccessRepositoryListLockedBySchool(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccessRepository(db)

	mock.ExpectQuery("FROM quiz_locks l JOIN users u ON l.student_id = u.id.+l.authorization_level = .+u.school_id =").
		WithArgs(true, string(model.LevelDean), 1).
		WillReturnRows(lockRows().
			AddRow(6, 10, 4, "DEAN", "王五", "wangwu@example.com"))

	rows, err := repo.ListLockedBySchool(1)
	if err != nil {
		t.Fatalf("查询院长待办失败: %v", err)
	}
	if len(rows) != 1 || rows[0].AuthLevel != model.LevelDean {
		t.Errorf("期望 1 条 DEAN 层级记录, 实际 %+v", rows)
	}
}

func TestAccessRepositoryListAllLocked(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccessRepository(db)

	// 管理员视角唯一的条件是 is_locked，参数个数钉死没有层级/范围过滤
	mock.ExpectQuery("FROM quiz_locks l JOIN users u ON l.student_id = u.id").
		WithArgs(true).
		WillReturnRows(lockRows().
			AddRow(1, 7, 3, "TEACHER", "张三", "zhangsan@example.com").
			AddRow(6, 10, 4, "DEAN", "王五", "wangwu@example.com"))

	rows, err := repo.ListAllLocked()
	if err != nil {
		t.Fatalf("查询全量待办失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望 2 条记录, 实际 %d", len(rows))
	}
	if rows[0].AuthLevel != model.LevelTeacher || rows[1].AuthLevel != model.LevelDean {
		t.Errorf("各层级记录都应返回: %+v", rows)
	}
}
