// Package repository 提供了数据访问层的实现。
package repository

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"workout-mate-go/internal/model"
	"workout-mate-go/pkg/log"
)

// PurposeNotFound 是器械用途查询未命中时返回的固定哨兵值。
const PurposeNotFound = "Purpose not found"

// EquipmentRepository 定义了器械目录的只读访问接口。
// 目录在进程启动时加载一次，之后视为不可变；Reload 是显式的热加载入口。
type EquipmentRepository interface {
	Items() []model.EquipmentItem
	Names() []string
	// PurposeOf 按名称（大小写不敏感）查询器械用途，未命中返回 PurposeNotFound。
	PurposeOf(name string) string
	Reload() error
}

type csvEquipmentRepository struct {
	csvPath string

	mu    sync.RWMutex
	items []model.EquipmentItem
}

// NewEquipmentRepository 创建器械目录并立即加载 CSV。
// 加载失败不致命：记录警告并以空目录运行，下游提示词自然退化。
func NewEquipmentRepository(csvPath string) EquipmentRepository {
	r := &csvEquipmentRepository{csvPath: csvPath}
	if err := r.Reload(); err != nil {
		log.Warnf("加载器械目录失败，以空目录继续运行: %v", err)
	}
	return r
}

// Reload 重新读取 CSV 文件。失败时保留上一次成功加载的目录。
func (r *csvEquipmentRepository) Reload() error {
	f, err := os.Open(r.csvPath)
	if err != nil {
		return fmt.Errorf("打开器械目录文件失败: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("解析器械目录 CSV 失败: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("器械目录 CSV 为空")
	}

	// 首行为表头，定位 "Equipment Name" 与 "Purpose" 两列
	nameCol, purposeCol := -1, -1
	for i, h := range records[0] {
		switch strings.TrimSpace(h) {
		case "Equipment Name":
			nameCol = i
		case "Purpose":
			purposeCol = i
		}
	}
	if nameCol < 0 || purposeCol < 0 {
		return fmt.Errorf("器械目录 CSV 缺少 'Equipment Name' 或 'Purpose' 列")
	}

	items := make([]model.EquipmentItem, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) <= nameCol || len(rec) <= purposeCol {
			continue
		}
		name := strings.TrimSpace(rec[nameCol])
		if name == "" {
			continue
		}
		items = append(items, model.EquipmentItem{
			Name:    name,
			Purpose: strings.TrimSpace(rec[purposeCol]),
		})
	}

	r.mu.Lock()
	r.items = items
	r.mu.Unlock()

	log.Infof("器械目录加载成功，共 %d 件器械", len(items))
	return nil
}

// Items 返回目录的全部条目。
func (r *csvEquipmentRepository) Items() []model.EquipmentItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.EquipmentItem, len(r.items))
	copy(out, r.items)
	return out
}

// Names 返回全部器械名称，顺序与 CSV 一致。
func (r *csvEquipmentRepository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for _, item := range r.items {
		names = append(names, item.Name)
	}
	return names
}

// PurposeOf 按名称查询器械用途，匹配大小写不敏感。
func (r *csvEquipmentRepository) PurposeOf(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.items {
		if strings.EqualFold(item.Name, name) {
			return item.Purpose
		}
	}
	return PurposeNotFound
}
