package model

// 选课、单元进度与加试授权都是外部协作系统写入的事实表，
// 引擎只读取它们回答资格问题

type Enrollment struct {
	BaseModel
	StudentID uint `gorm:"index;uniqueIndex:idx_enrollment" json:"studentId"`
	CourseID  uint `gorm:"index;uniqueIndex:idx_enrollment" json:"courseId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// UnitProgress 视频进度系统维护的"本单元视频已全部看完"事实
type UnitProgress struct {
	BaseModel
	StudentID        uint `gorm:"index;uniqueIndex:idx_unit_progress" json:"studentId"`
	UnitID           uint `gorm:"index;uniqueIndex:idx_unit_progress" json:"unitId"`
	AllVideosWatched bool `gorm:"default:false" json:"allVideosWatched"`
}

func (UnitProgress) TableName() string {
	return "unit_progress"
}

// ExtraAttemptGrant 教务侧给某学生某单元追加的尝试次数
type ExtraAttemptGrant struct {
	BaseModel
	StudentID uint   `gorm:"index" json:"studentId"`
	UnitID    uint   `gorm:"index" json:"unitId"`
	Attempts  int    `gorm:"default:1" json:"attempts"`
	GrantedBy uint   `json:"grantedBy"`
	Reason    string `gorm:"size:255" json:"reason"`
}

func (ExtraAttemptGrant) TableName() string {
	return "extra_attempt_grants"
}
