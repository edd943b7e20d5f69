package service

import (
	"math"
	"quiz_engine_backend/internal/model"
)

// SecuritySignals 客户端随提交上报的监考汇总。全部不可信，
// 只用于归类与扣分
type SecuritySignals struct {
	AutoSubmitted        bool             `json:"autoSubmitted"`
	TabSwitchCount       int              `json:"tabSwitchCount"`
	FullscreenExitCount  int              `json:"fullscreenExitCount"`
	BlockedShortcutCount int              `json:"blockedShortcutCount"`
	WindowMinimizeCount  int              `json:"windowMinimizeCount"`
	Events               []RawSignalEvent `json:"events"`
}

// RawSignalEvent 单条原始事件
type RawSignalEvent struct {
	Type       model.ViolationType `json:"type"`
	OccurredAt int64               `json:"occurredAt"` // unix 毫秒
	Payload    map[string]any      `json:"payload,omitempty"`
	Screenshot string              `json:"screenshot,omitempty"` // base64 截图证据
}

// GradeAnswers 对冻结快照逐题判分。按题目 ID 匹配答案；
// 缺失或 null 答案一律记错，不报错
func GradeAnswers(questions []model.AttemptQuestion, answers []model.AttemptAnswer) (score, maxScore float64) {
	byQuestion := make(map[uint]*model.AttemptAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	for i := range questions {
		q := &questions[i]
		maxScore += float64(q.Points)

		ans, ok := byQuestion[q.QuestionID]
		if !ok || ans.SelectedOption == nil {
			continue
		}
		if *ans.SelectedOption == q.CorrectOption {
			score += float64(q.Points)
		}
	}
	return score, maxScore
}

// SecureModePenalty 安全模式（监考）扣分表，各项叠加
func SecureModePenalty(sig SecuritySignals) float64 {
	penalty := 0.0
	if sig.AutoSubmitted {
		penalty += 15
	}
	if sig.TabSwitchCount >= 3 {
		penalty += 10
	}
	if sig.FullscreenExitCount >= 2 {
		penalty += 10
	}
	if sig.BlockedShortcutCount >= 5 {
		penalty += 5
	}
	if sig.WindowMinimizeCount >= 1 {
		penalty += 8
	}
	return penalty
}

// PracticeModePenalty 非安全模式单元测验的简化策略，封顶 20 分
func PracticeModePenalty(violationCount, tabSwitchCount int) float64 {
	penalty := float64(violationCount * 5)
	if tabSwitchCount > 3 {
		penalty += 10
	}
	return math.Min(20, penalty)
}

// FinalPercentage 扣分后的最终百分比，下限 0，不会为负
func FinalPercentage(rawPercentage, penalty float64) float64 {
	return math.Max(0, Round2(rawPercentage-penalty))
}

func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return Round2(100 * score / maxScore)
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
