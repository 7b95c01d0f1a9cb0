// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "workout-mate-go/internal/model"

// WorkoutLogTask represents one workout entry waiting to be appended to a
// user's log file. 日志文件只有消费者这一个写入方。
type WorkoutLogTask struct {
	Username string                `json:"username"`
	Entry    model.WorkoutLogEntry `json:"entry"`
}
