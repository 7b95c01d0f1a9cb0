// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"fmt"
	"net/http"
	"time"

	"workout-mate-go/internal/config"
	"workout-mate-go/internal/model"
	"workout-mate-go/internal/service"
	"workout-mate-go/pkg/log"
	"workout-mate-go/pkg/storage"
	"workout-mate-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler 处理训练历史分析相关的 API 请求：
// 汇总统计、图表数据、筛选后的历史记录、AI 分析报告与 CSV 导出。
type AnalysisHandler struct {
	analysisService service.AnalysisService
}

// NewAnalysisHandler 创建一个新的 AnalysisHandler。
func NewAnalysisHandler(analysisService service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// GetStats 返回当前用户训练日志的汇总统计。
// 日志缺失或为空不视为错误，返回空数据加提示。
func (h *AnalysisHandler) GetStats(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	entries := h.analysisService.LoadEntries(claims.Username)
	if len(entries) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": service.NoWorkoutDataMessage,
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.analysisService.Summarize(entries),
	})
}

// GetCharts 返回图表用的分组计数（日活动、训练类型、肌群）。
func (h *AnalysisHandler) GetCharts(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	entries := h.analysisService.LoadEntries(claims.Username)
	if len(entries) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": service.NoWorkoutDataMessage,
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.analysisService.Charts(entries),
	})
}

// GetHistory 返回按查询参数筛选后的历史记录，按日期降序。
// workout_type、muscle_group、difficulty 为 "All" 或缺省时不约束该字段。
func (h *AnalysisHandler) GetHistory(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	entries := h.analysisService.LoadEntries(claims.Username)
	filtered := h.analysisService.Filter(entries,
		c.Query("workout_type"),
		c.Query("muscle_group"),
		c.Query("difficulty"),
	)
	if filtered == nil {
		filtered = []model.WorkoutLogEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    filtered,
	})
}

// GenerateReport 请求一段针对该用户训练历史的 AI 分析。
// 分析失败会降级为固定的提示文本，这里不会产生非 200 响应。
func (h *AnalysisHandler) GenerateReport(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	analysis := h.analysisService.Analyze(c.Request.Context(), claims.Username)

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"analysis": analysis},
	})
}

// ExportHistory 把筛选后的历史记录导出为 CSV，上传到对象存储，
// 并返回一个限时的下载链接。
func (h *AnalysisHandler) ExportHistory(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	entries := h.analysisService.LoadEntries(claims.Username)
	filtered := h.analysisService.Filter(entries,
		c.Query("workout_type"),
		c.Query("muscle_group"),
		c.Query("difficulty"),
	)

	data, err := h.analysisService.BuildCSV(filtered)
	if err != nil {
		log.Errorf("ExportHistory: 生成 CSV 失败, username: %s, error: %v", claims.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "导出失败",
		})
		return
	}

	objectName := fmt.Sprintf("exports/%s/exercise_history_%d.csv", claims.Username, time.Now().Unix())
	bucket := config.Conf.MinIO.BucketName
	if err := storage.UploadObject(c.Request.Context(), bucket, objectName, data, "text/csv"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "上传导出文件失败",
		})
		return
	}

	downloadURL, err := storage.GetPresignedURL(bucket, objectName, time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "生成下载链接失败",
		})
		return
	}

	log.Infof("User '%s' exported %d entries to %s", claims.Username, len(filtered), objectName)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"downloadUrl": downloadURL, "entries": len(filtered)},
	})
}
