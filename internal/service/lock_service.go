package service

import (
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/logger"
	"quiz_engine_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// LockStore 锁记录持久化接口。Mutate 必须串行化同一 (student, quiz)
// 上的并发修改（实现里用 SELECT ... FOR UPDATE）
type LockStore interface {
	Find(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizLock, error)
	FindByID(id uint) (*model.QuizLock, error)
	Mutate(studentID uint, st model.QuizSourceType, sourceID uint,
		seed func(*model.QuizLock), fn func(*model.QuizLock) error) error
	MutateExisting(id uint, fn func(*model.QuizLock) error) error
}

// LockService 多级解锁审批状态机。状态：UNLOCKED、LOCKED@TEACHER、
// LOCKED@HOD、LOCKED@DEAN；管理员不是驻留层级，只做旁路解锁
type LockService struct {
	Locks LockStore
	cfg   *config.Config
}

func NewLockService(locks LockStore, cfg *config.Config) *LockService {
	return &LockService{Locks: locks, cfg: cfg}
}

func (s *LockService) teacherLimit() int {
	if s.cfg != nil && s.cfg.Quiz.TeacherUnlockLimit > 0 {
		return s.cfg.Quiz.TeacherUnlockLimit
	}
	return 3
}

func (s *LockService) hodLimit() int {
	if s.cfg != nil {
		return s.cfg.Quiz.HODUnlockLimit
	}
	return 3
}

// tierFor 由已消耗的解锁次数推出当前审批层级；新失败不重置层级。
// 层级只升不降（管理员旁路除外，它根本不动层级）
func (s *LockService) tierFor(lock *model.QuizLock) model.AuthorizationLevel {
	tier := model.LevelTeacher
	if lock.TeacherUnlockCount >= s.teacherLimit() {
		tier = model.LevelHOD
		if limit := s.hodLimit(); limit > 0 && lock.HODUnlockCount >= limit {
			tier = model.LevelDean
		}
	}
	if tier.Rank() < lock.AuthLevel.Rank() {
		return lock.AuthLevel
	}
	return tier
}

// HandleFailure 失败落锁：懒创建锁记录，先记尝试再上锁
func (s *LockService) HandleFailure(attempt *model.QuizAttempt, reason model.FailureReason) error {
	err := s.Locks.Mutate(attempt.StudentID, attempt.SourceType, attempt.SourceID,
		func(lock *model.QuizLock) {
			lock.CourseID = attempt.CourseID
			lock.UnitID = attempt.UnitID
		},
		func(lock *model.QuizLock) error {
			s.recordAttempt(lock, attempt.Percentage)

			now := time.Now()
			lock.IsLocked = true
			lock.FailureReason = reason
			lock.LastFailureScore = attempt.Percentage
			lock.PassingScore = attempt.PassingScorePercent
			lock.LockedAt = &now
			lock.AuthLevel = s.tierFor(lock)
			return nil
		})
	if err != nil {
		return err
	}

	monitoring.LocksApplied.WithLabelValues(string(reason)).Inc()
	logger.Log.Info("quiz locked",
		zap.Uint("studentId", attempt.StudentID),
		zap.String("sourceType", string(attempt.SourceType)),
		zap.Uint("sourceId", attempt.SourceID),
		zap.String("reason", string(reason)))
	return nil
}

// HandlePass 通过即清锁，不消耗任何层级的解锁次数——通过不是"解锁"，
// 是问题的终结。没有锁记录时什么都不做
func (s *LockService) HandlePass(attempt *model.QuizAttempt) error {
	lock, err := s.Locks.Find(attempt.StudentID, attempt.SourceType, attempt.SourceID)
	if err != nil {
		return err
	}
	if lock == nil {
		return nil
	}

	return s.Locks.MutateExisting(lock.ID, func(l *model.QuizLock) error {
		s.recordAttempt(l, attempt.Percentage)
		l.IsLocked = false
		return nil
	})
}

func (s *LockService) recordAttempt(lock *model.QuizLock, score float64) {
	now := time.Now()
	lock.TotalAttempts++
	lock.LastAttemptScore = score
	lock.LastAttemptAt = &now
}

// Unlock 按操作者角色执行层级解锁。教师/系主任/院长只能处理停留在
// 自己层级的锁，层级不符时返回带目标层级的错误，绝不静默降级；
// 管理员任何时候都可旁路，包括其他层级无法清除的 SECURITY_VIOLATION 锁
func (s *LockService) Unlock(lockID uint, actor *util.Claims, reason, notes string) (*model.QuizLock, error) {
	var result *model.QuizLock

	err := s.Locks.MutateExisting(lockID, func(lock *model.QuizLock) error {
		if !lock.IsLocked {
			return util.ErrLockNotFound
		}

		tierName := ""
		switch actor.Role {
		case model.Admin:
			// 旁路：计数递增，层级保持不变
			lock.AdminUnlockCount++
			tierName = "ADMIN"
		case model.Teacher:
			if lock.AuthLevel != model.LevelTeacher {
				return &util.TierLimitExceededError{Required: lock.AuthLevel}
			}
			if lock.TeacherUnlockCount >= s.teacherLimit() {
				return &util.TierLimitExceededError{Required: model.LevelHOD}
			}
			lock.TeacherUnlockCount++
			tierName = string(model.LevelTeacher)
		case model.HOD:
			if lock.AuthLevel != model.LevelHOD {
				return &util.TierLimitExceededError{Required: lock.AuthLevel}
			}
			if limit := s.hodLimit(); limit > 0 && lock.HODUnlockCount >= limit {
				return &util.TierLimitExceededError{Required: model.LevelDean}
			}
			lock.HODUnlockCount++
			tierName = string(model.LevelHOD)
		case model.Dean:
			if lock.AuthLevel != model.LevelDean {
				return &util.TierLimitExceededError{Required: lock.AuthLevel}
			}
			// 院长解锁不设上限
			lock.DeanUnlockCount++
			tierName = string(model.LevelDean)
		default:
			return util.ErrPermissionDenied
		}

		lock.IsLocked = false
		if err := lock.AppendHistory(model.UnlockEntry{
			ActorID:    actor.UserID,
			Tier:       tierName,
			Reason:     reason,
			Notes:      notes,
			UnlockedAt: time.Now(),
		}); err != nil {
			return err
		}

		monitoring.Unlocks.WithLabelValues(tierName).Inc()
		result = lock
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("quiz unlocked",
		zap.Uint("lockId", lockID),
		zap.Uint("actorId", actor.UserID),
		zap.String("role", string(actor.Role)))
	return result, nil
}

// ManualLock 教务人工上锁（如调查期间冻结作答资格）
func (s *LockService) ManualLock(studentID uint, st model.QuizSourceType, sourceID uint,
	courseID, unitID uint, actor *util.Claims, passingScore float64) (*model.QuizLock, error) {

	var result *model.QuizLock
	err := s.Locks.Mutate(studentID, st, sourceID,
		func(lock *model.QuizLock) {
			lock.CourseID = courseID
			lock.UnitID = unitID
		},
		func(lock *model.QuizLock) error {
			now := time.Now()
			lock.IsLocked = true
			lock.FailureReason = model.ReasonManualLock
			lock.PassingScore = passingScore
			lock.LockedAt = &now
			lock.AuthLevel = s.tierFor(lock)
			result = lock
			return nil
		})
	if err != nil {
		return nil, err
	}

	monitoring.LocksApplied.WithLabelValues(string(model.ReasonManualLock)).Inc()
	logger.Log.Info("quiz manually locked",
		zap.Uint("studentId", studentID),
		zap.Uint("actorId", actor.UserID))
	return result, nil
}

// Status 学生视角的锁状态查询
func (s *LockService) Status(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizLock, error) {
	return s.Locks.Find(studentID, st, sourceID)
}
