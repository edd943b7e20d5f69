package model

import (
	"encoding/json"
	"time"
)

// AuthorizationLevel 解锁审批层级。ADMIN 不是驻留层级，
// 管理员解锁是旁路操作，不改变层级
type AuthorizationLevel string

const (
	LevelTeacher AuthorizationLevel = "TEACHER"
	LevelHOD     AuthorizationLevel = "HOD"
	LevelDean    AuthorizationLevel = "DEAN"
)

// levelRank 用于保证层级单调不降
var levelRank = map[AuthorizationLevel]int{
	LevelTeacher: 1,
	LevelHOD:     2,
	LevelDean:    3,
}

func (l AuthorizationLevel) Rank() int {
	return levelRank[l]
}

type FailureReason string

const (
	ReasonBelowPassingScore FailureReason = "BELOW_PASSING_SCORE"
	ReasonSecurityViolation FailureReason = "SECURITY_VIOLATION"
	ReasonTimeExceeded      FailureReason = "TIME_EXCEEDED"
	ReasonManualLock        FailureReason = "MANUAL_LOCK"
)

// UnlockEntry 解锁历史条目，只追加不修改
type UnlockEntry struct {
	ActorID    uint      `json:"actorId"`
	Tier       string    `json:"tier"` // TEACHER / HOD / DEAN / ADMIN
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// QuizLock 每个 (student, quizSource) 一条，懒创建、永不删除，
// 是一名学生在一份测验上补救路径的完整审计记录
// swagger:model QuizLock
type QuizLock struct {
	BaseModel
	StudentID  uint           `gorm:"index;uniqueIndex:idx_student_quiz" json:"studentId"`
	SourceType QuizSourceType `gorm:"size:10;uniqueIndex:idx_student_quiz" json:"sourceType"`
	SourceID   uint           `gorm:"uniqueIndex:idx_student_quiz" json:"sourceId"`
	CourseID   uint           `gorm:"index" json:"courseId"`
	UnitID     uint           `gorm:"index" json:"unitId"`

	IsLocked         bool               `gorm:"default:false;index" json:"isLocked"`
	FailureReason    FailureReason      `gorm:"size:32" json:"failureReason"`
	LastFailureScore float64            `json:"lastFailureScore"`
	PassingScore     float64            `json:"passingScore"`
	LockedAt         *time.Time         `json:"lockedAt,omitempty"`
	AuthLevel        AuthorizationLevel `gorm:"column:authorization_level;size:16;default:'TEACHER';index" json:"authorizationLevel"`

	TeacherUnlockCount int `gorm:"default:0" json:"teacherUnlockCount"`
	HODUnlockCount     int `gorm:"default:0" json:"hodUnlockCount"`
	DeanUnlockCount    int `gorm:"default:0" json:"deanUnlockCount"`
	AdminUnlockCount   int `gorm:"default:0" json:"adminUnlockCount"`

	UnlockHistoryJSON json.RawMessage `gorm:"type:json" json:"-"`

	TotalAttempts    int        `gorm:"default:0" json:"totalAttempts"`
	LastAttemptScore float64    `json:"lastAttemptScore"`
	LastAttemptAt    *time.Time `json:"lastAttemptAt,omitempty"`
}

func (QuizLock) TableName() string {
	return "quiz_locks"
}

// UnlockTotal 各层级已消耗的解锁次数之和，参与尝试上限计算
func (l *QuizLock) UnlockTotal() int {
	return l.TeacherUnlockCount + l.HODUnlockCount + l.DeanUnlockCount + l.AdminUnlockCount
}

func (l *QuizLock) History() []UnlockEntry {
	if len(l.UnlockHistoryJSON) == 0 {
		return nil
	}
	var entries []UnlockEntry
	if err := json.Unmarshal(l.UnlockHistoryJSON, &entries); err != nil {
		return nil
	}
	return entries
}

func (l *QuizLock) AppendHistory(entry UnlockEntry) error {
	entries := append(l.History(), entry)
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	l.UnlockHistoryJSON = data
	return nil
}
