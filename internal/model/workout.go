// Package model 定义了训练日志的领域模型。
package model

import (
	"fmt"
	"strings"
	"time"
)

const logDateFormat = "2006-01-02"

// LogDate 是仅含日期的自定义时间类型，在 JSON 中以 "YYYY-MM-DD" 表示。
// 训练日志存储中的 date 字段使用该格式。
type LogDate time.Time

// MarshalJSON implements the json.Marshaler interface.
func (d LogDate) MarshalJSON() ([]byte, error) {
	formatted := fmt.Sprintf("\"%s\"", time.Time(d).Format(logDateFormat))
	return []byte(formatted), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *LogDate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), "\"")
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(logDateFormat, s)
	if err != nil {
		return fmt.Errorf("无效的日志日期 %q: %w", s, err)
	}
	*d = LogDate(t)
	return nil
}

// Time 返回底层的 time.Time。
func (d LogDate) Time() time.Time {
	return time.Time(d)
}

// String 以 "YYYY-MM-DD" 格式返回日期。
func (d LogDate) String() string {
	return time.Time(d).Format(logDateFormat)
}

// WorkoutLogEntry 代表每用户训练日志 JSON 文件中的一条记录。
// set 字段的 JSON 键沿用存量文件的列名（"lbs/bw_reps for ..."），
// 内容为 "重量/自重 次数" 格式的展示字符串。
type WorkoutLogEntry struct {
	Date         LogDate `json:"date"`
	ExerciseName string  `json:"exercise_name"`
	MuscleGroup  string  `json:"muscle_group"`
	WorkoutType  string  `json:"workout_type"`
	Difficulty   string  `json:"difficulty"`
	Set1         string  `json:"lbs/bw_reps for first set"`
	Set2         string  `json:"lbs/bw_reps for second set"`
	Set3         string  `json:"lbs/bw_reps for third set"`
}

// Validate 在加载边界校验必填字段，避免后续代码访问到空记录。
func (e WorkoutLogEntry) Validate() error {
	if e.Date.Time().IsZero() {
		return fmt.Errorf("缺少 date 字段")
	}
	if e.ExerciseName == "" {
		return fmt.Errorf("缺少 exercise_name 字段")
	}
	if e.MuscleGroup == "" {
		return fmt.Errorf("缺少 muscle_group 字段")
	}
	if e.WorkoutType == "" {
		return fmt.Errorf("缺少 workout_type 字段")
	}
	if e.Difficulty == "" {
		return fmt.Errorf("缺少 difficulty 字段")
	}
	return nil
}
