package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEquipmentCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "equipment.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const equipmentCSV = `Equipment Name,Purpose
Dumbbells,Free weight training
Treadmill,Cardio endurance
Lat Pulldown,Back and lats
`

func TestEquipmentRepositoryLoad(t *testing.T) {
	repo := NewEquipmentRepository(writeEquipmentCSV(t, equipmentCSV))

	items := repo.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "Dumbbells", items[0].Name)
	assert.Equal(t, "Free weight training", items[0].Purpose)

	// 名称顺序与 CSV 一致
	assert.Equal(t, []string{"Dumbbells", "Treadmill", "Lat Pulldown"}, repo.Names())
}

func TestEquipmentRepositoryPurposeOf(t *testing.T) {
	repo := NewEquipmentRepository(writeEquipmentCSV(t, equipmentCSV))

	assert.Equal(t, "Cardio endurance", repo.PurposeOf("Treadmill"))
	// 查询大小写不敏感
	assert.Equal(t, "Cardio endurance", repo.PurposeOf("treadmill"))
	assert.Equal(t, "Back and lats", repo.PurposeOf("LAT PULLDOWN"))
	// 未命中返回固定哨兵值
	assert.Equal(t, PurposeNotFound, repo.PurposeOf("Kettlebell"))
}

func TestEquipmentRepositoryMissingFile(t *testing.T) {
	// 文件缺失不致命：以空目录运行
	repo := NewEquipmentRepository(filepath.Join(t.TempDir(), "missing.csv"))

	assert.Empty(t, repo.Items())
	assert.Empty(t, repo.Names())
	assert.Equal(t, PurposeNotFound, repo.PurposeOf("Dumbbells"))
}

func TestEquipmentRepositoryReload(t *testing.T) {
	path := writeEquipmentCSV(t, equipmentCSV)
	repo := NewEquipmentRepository(path)
	require.Len(t, repo.Items(), 3)

	updated := "Equipment Name,Purpose\nKettlebell,Ballistic training\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.NoError(t, repo.Reload())
	assert.Equal(t, []string{"Kettlebell"}, repo.Names())
	assert.Equal(t, "Ballistic training", repo.PurposeOf("kettlebell"))
}

func TestEquipmentRepositoryReloadKeepsOldCatalogOnFailure(t *testing.T) {
	path := writeEquipmentCSV(t, equipmentCSV)
	repo := NewEquipmentRepository(path)
	require.Len(t, repo.Items(), 3)

	require.NoError(t, os.Remove(path))

	// 重新加载失败时保留上一次成功加载的目录
	assert.Error(t, repo.Reload())
	assert.Len(t, repo.Items(), 3)
}

func TestEquipmentRepositoryMissingColumns(t *testing.T) {
	path := writeEquipmentCSV(t, "Name,Description\nDumbbells,Free weights\n")
	repo := NewEquipmentRepository(path)
	assert.Empty(t, repo.Items())
}

func TestEquipmentRepositorySkipsBlankRows(t *testing.T) {
	csv := "Equipment Name,Purpose\nDumbbells,Free weight training\n,\n"
	repo := NewEquipmentRepository(writeEquipmentCSV(t, csv))
	assert.Equal(t, []string{"Dumbbells"}, repo.Names())
}
