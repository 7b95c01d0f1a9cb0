// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"workout-mate-go/internal/repository"
	"workout-mate-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// EquipmentHandler 处理器械目录相关的 API 请求。
type EquipmentHandler struct {
	equipmentRepo repository.EquipmentRepository
}

// NewEquipmentHandler 创建一个新的 EquipmentHandler。
func NewEquipmentHandler(equipmentRepo repository.EquipmentRepository) *EquipmentHandler {
	return &EquipmentHandler{equipmentRepo: equipmentRepo}
}

// List 返回器械目录的全部条目。
func (h *EquipmentHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.equipmentRepo.Items(),
	})
}

// GetPurpose 按名称查询器械用途，大小写不敏感。
// 未命中时 data.purpose 为固定的 "Purpose not found" 哨兵值，不是错误。
func (h *EquipmentHandler) GetPurpose(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少 name 查询参数",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"name": name, "purpose": h.equipmentRepo.PurposeOf(name)},
	})
}

// Reload 显式重新加载器械目录 CSV，仅管理员可用。
func (h *EquipmentHandler) Reload(c *gin.Context) {
	if err := h.equipmentRepo.Reload(); err != nil {
		log.Error("重新加载器械目录失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "重新加载器械目录失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "器械目录已重新加载",
	})
}
