// Package pipeline 定义了训练日志落盘的核心流程。
package pipeline

import (
	"context"
	"fmt"

	"workout-mate-go/internal/repository"
	"workout-mate-go/pkg/log"
	"workout-mate-go/pkg/tasks"
)

// Processor 封装了训练日志写入的依赖和逻辑。
// 所有写入都经过 Kafka 串行到达这里，同一用户的日志文件只有一个写入者。
type Processor struct {
	workoutLogRepo repository.WorkoutLogRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(workoutLogRepo repository.WorkoutLogRepository) *Processor {
	return &Processor{workoutLogRepo: workoutLogRepo}
}

// Process 是训练日志任务的主函数：校验条目并追加到用户的日志文件。
func (p *Processor) Process(ctx context.Context, task tasks.WorkoutLogTask) error {
	log.Infof("[Processor] 开始处理训练日志, Username: %s, Exercise: %s, Date: %s",
		task.Username, task.Entry.ExerciseName, task.Entry.Date)

	if task.Username == "" {
		return fmt.Errorf("训练日志任务缺少用户名")
	}
	if err := task.Entry.Validate(); err != nil {
		return fmt.Errorf("训练日志条目无效: %w", err)
	}

	if err := p.workoutLogRepo.Append(task.Username, task.Entry); err != nil {
		log.Errorf("[Processor] 追加训练日志失败, Username: %s, Error: %v", task.Username, err)
		return fmt.Errorf("追加训练日志失败: %w", err)
	}

	log.Infof("[Processor] 训练日志写入成功, Username: %s, Exercise: %s", task.Username, task.Entry.ExerciseName)
	return nil
}
