package service

import (
	"context"
	"encoding/json"
	"quiz_engine_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 进度系统与成绩系统通过 redis 频道订阅测验结果，引擎只负责发布。
// 发布失败不影响评分事务，降级为日志告警
const (
	channelQuizPassed    = "quiz:events:passed"
	channelAttemptGraded = "quiz:events:graded"
)

type quizPassedMessage struct {
	StudentID  uint      `json:"studentId"`
	UnitID     uint      `json:"unitId"`
	OccurredAt time.Time `json:"occurredAt"`
}

type attemptGradedMessage struct {
	AttemptID  uint           `json:"attemptId"`
	Summary    AttemptSummary `json:"summary"`
	OccurredAt time.Time      `json:"occurredAt"`
}

type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) OnQuizPassed(studentID, unitID uint) {
	n.publish(channelQuizPassed, quizPassedMessage{
		StudentID:  studentID,
		UnitID:     unitID,
		OccurredAt: time.Now(),
	})
}

func (n *RedisNotifier) OnAttemptGraded(attemptID uint, summary AttemptSummary) {
	n.publish(channelAttemptGraded, attemptGradedMessage{
		AttemptID:  attemptID,
		Summary:    summary,
		OccurredAt: time.Now(),
	})
}

func (n *RedisNotifier) publish(channel string, message interface{}) {
	if n.rdb == nil {
		return
	}
	payload, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("marshal notification failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Log.Warn("publish notification failed", zap.String("channel", channel), zap.Error(err))
	}
}

// NoopNotifier 未配置 redis 时的空实现
type NoopNotifier struct{}

func (NoopNotifier) OnQuizPassed(studentID, unitID uint)              {}
func (NoopNotifier) OnAttemptGraded(attemptID uint, _ AttemptSummary) {}
