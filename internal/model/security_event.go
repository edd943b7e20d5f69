package model

import (
	"encoding/json"
	"time"
)

// ViolationType 客户端上报的监考信号类型。信号由不可信客户端产生，
// 引擎只负责归类与处置，不负责检测
type ViolationType string

const (
	ViolationTabSwitch        ViolationType = "tab_switch"
	ViolationFullscreenExit   ViolationType = "fullscreen_exit"
	ViolationWindowMinimize   ViolationType = "window_minimize"
	ViolationKeyboardShortcut ViolationType = "keyboard_shortcut"
	ViolationContextMenu      ViolationType = "context_menu"
	ViolationClipboard        ViolationType = "clipboard"
	ViolationDevTools         ViolationType = "devtools"
	ViolationSuspiciousTiming ViolationType = "suspicious_timing"
	ViolationAutoSubmit       ViolationType = "auto_submit"
	// 综合信号：切屏总数超过阈值时引擎自行生成
	ViolationExcessiveTabSwitching ViolationType = "excessive_tab_switching"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type SecurityAction string

const (
	ActionWarning          SecurityAction = "WARNING"
	ActionPenalty          SecurityAction = "PENALTY"
	ActionAutoSubmit       SecurityAction = "AUTO_SUBMIT"
	ActionDisqualification SecurityAction = "DISQUALIFICATION"
)

// SecurityEvent 每条归类后的违规事件，写入后不可变（处置元数据除外）
// swagger:model SecurityEvent
type SecurityEvent struct {
	BaseModel
	StudentID uint `gorm:"index" json:"studentId"`
	CourseID  uint `gorm:"index" json:"courseId"`
	UnitID    uint `json:"unitId"`
	AttemptID uint `gorm:"index" json:"attemptId"`

	EventType   ViolationType `gorm:"size:40;index" json:"eventType"`
	Severity    Severity      `gorm:"size:10;index" json:"severity"`
	Description string        `gorm:"size:255" json:"description"`

	OccurredAt  time.Time       `json:"occurredAt"`
	UserAgent   string          `gorm:"type:text" json:"userAgent"`
	IPAddress   string          `gorm:"size:45" json:"ipAddress"`
	PayloadJSON json.RawMessage `gorm:"type:json" json:"payload,omitempty"`

	PenaltyApplied bool           `gorm:"default:false" json:"penaltyApplied"`
	Action         SecurityAction `gorm:"size:20" json:"action"`
	EvidenceURL    string         `gorm:"size:512" json:"evidenceUrl,omitempty"`

	ResolvedBy      *uint      `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolutionNotes string     `gorm:"type:text" json:"resolutionNotes,omitempty"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
