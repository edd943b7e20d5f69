package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// AttemptQuestion 尝试创建时冻结的题目快照。之后对原题的任何修改
// 都不影响本次判分
type AttemptQuestion struct {
	QuestionID    uint     `json:"questionId"`
	OriginQuizID  uint     `json:"originQuizId"` // 题目来源测验，用于审计
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Points        int      `json:"points"`
}

type AttemptAnswer struct {
	QuestionID     uint `json:"questionId"`
	SelectedOption *int `json:"selectedOption"` // null 表示未作答
}

// SecuritySettings 创建尝试时冻结的监考参数快照
type SecuritySettings struct {
	FullscreenRequired    bool `json:"fullscreenRequired"`
	TabSwitchesAllowed    int  `json:"tabSwitchesAllowed"`
	GraceSeconds          int  `json:"graceSeconds"`
	AutoSubmitOnViolation bool `json:"autoSubmitOnViolation"`
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel
	StudentID  uint           `gorm:"index;type:bigint unsigned" json:"studentId"`
	CourseID   uint           `gorm:"index" json:"courseId"`
	UnitID     uint           `gorm:"index" json:"unitId"`
	SourceType QuizSourceType `gorm:"size:10;index:idx_attempt_source" json:"sourceType"`
	SourceID   uint           `gorm:"index:idx_attempt_source" json:"sourceId"`

	// 开放期间为 "<student>-<type>-<source>"，完成后置 NULL。
	// 唯一索引在持久层保证同一 (student, source) 至多一个未完成尝试
	ActiveKey *string `gorm:"size:64;uniqueIndex" json:"-"`

	QuestionsJSON json.RawMessage `gorm:"type:json" json:"-"`
	AnswersJSON   json.RawMessage `gorm:"type:json" json:"-"`
	SettingsJSON  json.RawMessage `gorm:"type:json" json:"-"`

	Score          float64 `json:"score"`
	MaxScore       float64 `json:"maxScore"`
	Percentage     float64 `json:"percentage"`    // 扣分后，[0,100]
	RawScore       float64 `json:"rawScore"`      // 扣分前
	RawPercentage  float64 `json:"rawPercentage"` // 扣分前
	PenaltyApplied float64 `json:"penaltyApplied"`
	Passed         bool    `gorm:"default:false" json:"passed"`

	IsComplete     bool `gorm:"default:false" json:"isComplete"`
	AutoSubmitted  bool `gorm:"default:false" json:"autoSubmitted"`
	TabSwitchCount int  `gorm:"default:0" json:"tabSwitchCount"`
	TimeExceeded   bool `gorm:"default:false" json:"timeExceeded"`

	TimeLimitMinutes    int     `json:"timeLimitMinutes"`
	PassingScorePercent float64 `json:"passingScorePercent"`
	SecureMode          bool    `json:"secureMode"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func ActiveKeyFor(studentID uint, st QuizSourceType, sourceID uint) string {
	return fmt.Sprintf("%d-%s-%d", studentID, st, sourceID)
}

func (a *QuizAttempt) Questions() ([]AttemptQuestion, error) {
	var qs []AttemptQuestion
	if err := json.Unmarshal(a.QuestionsJSON, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (a *QuizAttempt) SetQuestions(qs []AttemptQuestion) error {
	data, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	a.QuestionsJSON = data
	return nil
}

func (a *QuizAttempt) Answers() ([]AttemptAnswer, error) {
	if len(a.AnswersJSON) == 0 {
		return nil, nil
	}
	var ans []AttemptAnswer
	if err := json.Unmarshal(a.AnswersJSON, &ans); err != nil {
		return nil, err
	}
	return ans, nil
}

func (a *QuizAttempt) EndsAt() time.Time {
	return a.StartedAt.Add(time.Duration(a.TimeLimitMinutes) * time.Minute)
}

// RemainingSeconds 剩余作答秒数，最小为 0
func (a *QuizAttempt) RemainingSeconds(now time.Time) int64 {
	remaining := int64(a.EndsAt().Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
