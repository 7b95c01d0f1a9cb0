// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"workout-mate-go/internal/model"
	"workout-mate-go/internal/repository"
	"workout-mate-go/pkg/llm"
	"workout-mate-go/pkg/log"
)

// FilterAll 表示某个筛选条件不做约束。
const FilterAll = "All"

// NoWorkoutDataMessage 是日志为空或不可用时返回给用户的提示。
const NoWorkoutDataMessage = "No workout data found. Start working out to see analysis!"

const analysisSystemPrompt = "You are a knowledgeable fitness instructor analyzing workout data. " +
	"While output report, address the user as you/your."

// CategoryCount 是单个分类及其出现次数。频次表用切片而不是 map 表示，
// 以保留按次数降序、同次数先出现在前的顺序。
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DateCount 是某一天的训练条数，用于活动热力图。
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats 是一份训练日志快照的汇总统计。
type Stats struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	// TotalDays 是首末训练日之间的天数，首尾都算在内。
	TotalDays       int             `json:"totalDays"`
	TotalEntries    int             `json:"totalEntries"`
	ActiveDays      int             `json:"activeDays"`
	UniqueExercises int             `json:"uniqueExercises"`
	MuscleGroups    []CategoryCount `json:"muscleGroups"`
	WorkoutTypes    []CategoryCount `json:"workoutTypes"`
	Difficulties    []CategoryCount `json:"difficulties"`
}

// ChartData 是给前端图表用的分组计数。
type ChartData struct {
	DailyActivity []DateCount     `json:"dailyActivity"`
	WorkoutTypes  []CategoryCount `json:"workoutTypes"`
	MuscleGroups  []CategoryCount `json:"muscleGroups"`
}

// AnalysisService 定义了训练历史分析的业务接口。
type AnalysisService interface {
	// LoadEntries 加载某用户的训练日志快照；不可用时为空。
	LoadEntries(username string) []model.WorkoutLogEntry
	// Summarize 计算快照的汇总统计。
	Summarize(entries []model.WorkoutLogEntry) Stats
	// Charts 计算图表用的分组计数。
	Charts(entries []model.WorkoutLogEntry) ChartData
	// Filter 按等值条件过滤并按日期降序排序（同日期保持原始相对顺序）。
	// 条件为 "All" 或空串时表示不约束该字段。
	Filter(entries []model.WorkoutLogEntry, workoutType, muscleGroup, difficulty string) []model.WorkoutLogEntry
	// Analyze 请求一段针对该用户训练历史的自然语言分析。
	// 失败时返回固定格式的提示文本而不是错误。
	Analyze(ctx context.Context, username string) string
	// BuildCSV 把一组记录渲染为 CSV 字节流。
	BuildCSV(entries []model.WorkoutLogEntry) ([]byte, error)
}

type analysisService struct {
	workoutLogRepo repository.WorkoutLogRepository
	llmClient      llm.Client
}

// NewAnalysisService 创建一个新的 AnalysisService 实例。
func NewAnalysisService(workoutLogRepo repository.WorkoutLogRepository, llmClient llm.Client) AnalysisService {
	return &analysisService{
		workoutLogRepo: workoutLogRepo,
		llmClient:      llmClient,
	}
}

// LoadEntries 加载用户的训练日志快照。
func (s *analysisService) LoadEntries(username string) []model.WorkoutLogEntry {
	return s.workoutLogRepo.Load(username)
}

// Summarize 计算汇总统计。空快照返回零值 Stats。
func (s *analysisService) Summarize(entries []model.WorkoutLogEntry) Stats {
	if len(entries) == 0 {
		return Stats{}
	}

	minDate := entries[0].Date.Time()
	maxDate := entries[0].Date.Time()
	activeDays := make(map[string]struct{})
	uniqueExercises := make(map[string]struct{})

	for _, e := range entries {
		d := e.Date.Time()
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
		activeDays[e.Date.String()] = struct{}{}
		uniqueExercises[e.ExerciseName] = struct{}{}
	}

	return Stats{
		StartDate:       minDate.Format("2006-01-02"),
		EndDate:         maxDate.Format("2006-01-02"),
		TotalDays:       int(maxDate.Sub(minDate).Hours()/24) + 1,
		TotalEntries:    len(entries),
		ActiveDays:      len(activeDays),
		UniqueExercises: len(uniqueExercises),
		MuscleGroups:    countByCategory(entries, func(e model.WorkoutLogEntry) string { return e.MuscleGroup }),
		WorkoutTypes:    countByCategory(entries, func(e model.WorkoutLogEntry) string { return e.WorkoutType }),
		Difficulties:    countByCategory(entries, func(e model.WorkoutLogEntry) string { return e.Difficulty }),
	}
}

// countByCategory 统计各分类的出现次数，按次数降序排序；
// 次数相同时保持首次出现的先后顺序。
func countByCategory(entries []model.WorkoutLogEntry, key func(model.WorkoutLogEntry) string) []CategoryCount {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, e := range entries {
		k := key(e)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}

	result := make([]CategoryCount, 0, len(order))
	for _, k := range order {
		result = append(result, CategoryCount{Name: k, Count: counts[k]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result
}

// Charts 计算图表用的分组计数。每日计数按日期升序排列。
func (s *analysisService) Charts(entries []model.WorkoutLogEntry) ChartData {
	daily := make(map[string]int)
	for _, e := range entries {
		daily[e.Date.String()]++
	}
	dates := make([]string, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	dailyActivity := make([]DateCount, 0, len(dates))
	for _, d := range dates {
		dailyActivity = append(dailyActivity, DateCount{Date: d, Count: daily[d]})
	}

	return ChartData{
		DailyActivity: dailyActivity,
		WorkoutTypes:  countByCategory(entries, func(e model.WorkoutLogEntry) string { return e.WorkoutType }),
		MuscleGroups:  countByCategory(entries, func(e model.WorkoutLogEntry) string { return e.MuscleGroup }),
	}
}

// Filter 按等值条件过滤并按日期降序输出。纯投影，不修改源快照。
func (s *analysisService) Filter(entries []model.WorkoutLogEntry, workoutType, muscleGroup, difficulty string) []model.WorkoutLogEntry {
	matches := func(criterion, value string) bool {
		return criterion == "" || criterion == FilterAll || criterion == value
	}

	filtered := make([]model.WorkoutLogEntry, 0, len(entries))
	for _, e := range entries {
		if matches(workoutType, e.WorkoutType) &&
			matches(muscleGroup, e.MuscleGroup) &&
			matches(difficulty, e.Difficulty) {
			filtered = append(filtered, e)
		}
	}

	// 日期降序；相同日期保持原始相对顺序
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.Time().After(filtered[j].Date.Time())
	})
	return filtered
}

// buildAnalysisPrompt 把统计结果嵌入固定的分析指令模板。
// 模板明确要求模型按时间跨度调整解读口径：短周期谈初始进展，长周期谈趋势。
func buildAnalysisPrompt(stats Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "As a fitness expert, analyze the workout history from %s to %s (%d days):\n",
		stats.StartDate, stats.EndDate, stats.TotalDays)
	fmt.Fprintf(&b, "- Total exercises performed: %d\n", stats.TotalEntries)
	fmt.Fprintf(&b, "- Active days: %d\n", stats.ActiveDays)
	fmt.Fprintf(&b, "- Muscle groups targeted (with frequency): %s\n", formatFrequency(stats.MuscleGroups))
	fmt.Fprintf(&b, "- Types of workouts performed: %s\n", formatFrequency(stats.WorkoutTypes))
	fmt.Fprintf(&b, "- Difficulty levels: %s\n", formatFrequency(stats.Difficulties))
	b.WriteString("\nProvide a brief analysis including:\n")
	b.WriteString("1. Overall consistency and commitment\n")
	b.WriteString("2. Balance of muscle groups (any imbalances?)\n")
	b.WriteString("3. Progression in difficulty over this time period\n")
	b.WriteString("4. Specific recommendations for improvement based on this time period\n")
	b.WriteString("Keep the analysis concise but specific to this user's data.\n")
	b.WriteString("Consider the time period when making your analysis - if it's a short period, focus on initial progress.\n")
	b.WriteString("If it's longer, focus on trends and progression.\n")
	return b.String()
}

// formatFrequency 把频次表渲染为 "name: count" 的逗号分隔串，保持降序。
func formatFrequency(counts []CategoryCount) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s: %d", c.Name, c.Count))
	}
	return strings.Join(parts, ", ")
}

// Analyze 请求对用户训练历史的 AI 分析。
// 返回值以 "Analysis Period" 头开始；补全失败时返回固定格式的提示文本。
func (s *analysisService) Analyze(ctx context.Context, username string) string {
	entries := s.LoadEntries(username)
	if len(entries) == 0 {
		return NoWorkoutDataMessage
	}

	stats := s.Summarize(entries)

	temperature := 0.1
	analysis, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: model.RoleSystem, Content: analysisSystemPrompt},
		{Role: model.RoleUser, Content: buildAnalysisPrompt(stats)},
	}, &llm.GenerationParams{Temperature: &temperature})
	if err != nil {
		log.Errorf("生成训练历史分析失败, username: %s, error: %v", username, err)
		return fmt.Sprintf("Unable to generate AI analysis: %s", err)
	}

	periodContext := fmt.Sprintf("Analysis Period: %s to %s (%d days)",
		stats.StartDate, stats.EndDate, stats.TotalDays)
	return periodContext + "\n\n" + analysis
}

// BuildCSV 把记录渲染为 CSV，列顺序与历史表格一致。
func (s *analysisService) BuildCSV(entries []model.WorkoutLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"date", "exercise_name", "muscle_group", "workout_type", "difficulty",
		"lbs/bw_reps for first set", "lbs/bw_reps for second set", "lbs/bw_reps for third set",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("写入 CSV 表头失败: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.Date.String(), e.ExerciseName, e.MuscleGroup, e.WorkoutType, e.Difficulty,
			e.Set1, e.Set2, e.Set3,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("写入 CSV 记录失败: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("刷新 CSV 缓冲失败: %w", err)
	}
	return buf.Bytes(), nil
}
