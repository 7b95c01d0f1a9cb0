// Package repository 提供了数据访问层的实现。
package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"workout-mate-go/internal/model"
	"workout-mate-go/pkg/log"
)

// WorkoutLogRepository 定义了每用户训练日志 JSON 存储的访问接口。
// 读取返回的是一次性的不可变快照；写入只发生在 Kafka 消费者这一个入口。
type WorkoutLogRepository interface {
	// Load 加载某个用户的训练日志快照。
	// 文件缺失、JSON 损坏、记录缺字段或内容为空时统一返回空快照，
	// 并通过日志给出警告——这些情况对调用方都不是错误。
	Load(username string) []model.WorkoutLogEntry
	// Append 校验并追加一条记录到用户的日志文件。
	Append(username string, entry model.WorkoutLogEntry) error
}

type fileWorkoutLogRepository struct {
	dir string
}

// NewWorkoutLogRepository 创建一个基于 JSON 文件的训练日志存储。
func NewWorkoutLogRepository(dir string) WorkoutLogRepository {
	return &fileWorkoutLogRepository{dir: dir}
}

// path 返回某个用户的日志文件路径，沿用存量文件的命名约定。
func (r *fileWorkoutLogRepository) path(username string) string {
	return filepath.Join(r.dir, fmt.Sprintf("workout_log_hist_%s.json", username))
}

// Load 加载用户日志快照。所有失败路径都退化为空快照加警告。
func (r *fileWorkoutLogRepository) Load(username string) []model.WorkoutLogEntry {
	data, err := os.ReadFile(r.path(username))
	if err != nil {
		log.Warnf("未找到用户 '%s' 的训练日志: %v", username, err)
		return nil
	}

	var entries []model.WorkoutLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warnf("用户 '%s' 的训练日志 JSON 损坏: %v", username, err)
		return nil
	}

	// 加载边界做 schema 校验，缺字段的文件与损坏的文件同等对待
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			log.Warnf("用户 '%s' 的训练日志第 %d 条记录无效: %v", username, i, err)
			return nil
		}
	}

	if len(entries) == 0 {
		log.Warnf("用户 '%s' 的训练日志为空", username)
		return nil
	}
	return entries
}

// Append 校验并追加一条记录。写入采用临时文件加重命名，避免写一半的文件
// 被后续的 Load 当作损坏数据丢弃。
func (r *fileWorkoutLogRepository) Append(username string, entry model.WorkoutLogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("训练日志记录无效: %w", err)
	}

	if err := os.MkdirAll(r.dir, os.ModePerm); err != nil {
		return fmt.Errorf("创建训练日志目录失败: %w", err)
	}

	// 读取现有内容；文件缺失或损坏时从空列表重新开始
	var entries []model.WorkoutLogEntry
	if data, err := os.ReadFile(r.path(username)); err == nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			log.Warnf("用户 '%s' 的训练日志损坏，将重建文件: %v", username, err)
			entries = nil
		}
	}

	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化训练日志失败: %w", err)
	}

	tmpPath := r.path(username) + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("写入训练日志临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, r.path(username)); err != nil {
		return fmt.Errorf("替换训练日志文件失败: %w", err)
	}
	return nil
}
