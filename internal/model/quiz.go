package model

import "encoding/json"

type QuizSourceType string

const (
	SourceQuiz QuizSourceType = "quiz"
	SourcePool QuizSourceType = "pool"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel
	CourseID            uint       `gorm:"index" json:"courseId"`
	UnitID              uint       `gorm:"index" json:"unitId"`
	Title               string     `gorm:"size:255;not null" json:"title"`
	Description         string     `gorm:"type:text" json:"description"`
	TimeLimitMinutes    int        `gorm:"default:30" json:"timeLimitMinutes"`
	PassingScorePercent float64    `gorm:"default:70" json:"passingScorePercent"`
	QuestionsPerAttempt int        `gorm:"default:0" json:"questionsPerAttempt"` // 0 表示整卷出题
	SecureMode          bool       `gorm:"default:true" json:"secureMode"`       // 是否启用监考扣分策略
	IsActive            bool       `gorm:"default:true" json:"isActive"`
	Questions           []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// Question 一经发布不可变更；尝试内的判分只依赖创建时的快照
type Question struct {
	BaseModel
	QuizID        uint            `gorm:"index;type:bigint unsigned" json:"quizId"`
	Text          string          `gorm:"type:text;not null" json:"text"`
	Options       json.RawMessage `gorm:"type:json" json:"options"` // 2~4 个选项（JSON array）
	CorrectOption int             `json:"correctOption"`            // 从 0 开始的正确选项下标
	Points        int             `gorm:"default:1" json:"points"`
	Order         int             `gorm:"default:0" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList 解析选项列表
func (q *Question) OptionList() ([]string, error) {
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// QuizPool 题库：从多份贡献测验中聚合题目，按 QuestionsPerAttempt 随机抽样
// swagger:model QuizPool
type QuizPool struct {
	BaseModel
	CourseID            uint    `gorm:"index" json:"courseId"`
	UnitID              uint    `gorm:"index" json:"unitId"`
	Title               string  `gorm:"size:255;not null" json:"title"`
	QuestionsPerAttempt int     `gorm:"default:10" json:"questionsPerAttempt"` // [5,30]
	TimeLimitMinutes    int     `gorm:"default:30" json:"timeLimitMinutes"`
	PassingScorePercent float64 `gorm:"default:70" json:"passingScorePercent"`
	SecureMode          bool    `gorm:"default:true" json:"secureMode"`
	IsActive            bool    `gorm:"default:true" json:"isActive"`
	Quizzes             []Quiz  `gorm:"many2many:pool_quizzes" json:"quizzes,omitempty"`
}

func (QuizPool) TableName() string {
	return "quiz_pools"
}

const (
	PoolMinQuestionsPerAttempt = 5
	PoolMaxQuestionsPerAttempt = 30
	MinQuestionOptions         = 2
	MaxQuestionOptions         = 4
)
