// Package model 定义了器械目录的领域模型。
package model

// EquipmentItem 代表器械目录 CSV 中的一行：器械名称及其用途。
// 加载后不可变。
type EquipmentItem struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}
