// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"workout-mate-go/internal/model"
	"workout-mate-go/pkg/kafka"
	"workout-mate-go/pkg/log"
	"workout-mate-go/pkg/tasks"
	"workout-mate-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// WorkoutHandler 处理训练日志写入请求。
// 写入走 Kafka 异步管道，保证同一用户的日志文件只有单个写入者。
type WorkoutHandler struct{}

// NewWorkoutHandler 创建一个新的 WorkoutHandler。
func NewWorkoutHandler() *WorkoutHandler {
	return &WorkoutHandler{}
}

// LogWorkout 接收一条训练日志，校验后投递到 Kafka，由消费者落盘。
func (h *WorkoutHandler) LogWorkout(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	var entry model.WorkoutLogEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}
	if err := entry.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": err.Error(),
		})
		return
	}

	task := tasks.WorkoutLogTask{Username: claims.Username, Entry: entry}
	if err := kafka.ProduceWorkoutTask(task); err != nil {
		log.Errorf("LogWorkout: 投递训练日志任务失败, username: %s, error: %v", claims.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "提交训练日志失败",
		})
		return
	}

	log.Infof("训练日志任务已投递, username: %s, exercise: %s", claims.Username, entry.ExerciseName)
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "训练日志已提交",
	})
}
