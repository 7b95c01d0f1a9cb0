// Package exercises provides a client for the external exercise catalog API.
package exercises

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"workout-mate-go/internal/config"
	"workout-mate-go/pkg/log"
)

// Exercise 是外部动作目录服务返回的单条动作记录。
// 字段原样透传，本服务不拥有也不修改这些数据。
type Exercise struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Muscle       string `json:"muscle"`
	Equipment    string `json:"equipment"`
	Difficulty   string `json:"difficulty"`
	Instructions string `json:"instructions"`
}

// Client defines the interface for an exercise catalog client.
type Client interface {
	// Lookup 按肌群查询动作列表。肌群名称在发送前会被转为小写。
	Lookup(ctx context.Context, muscleGroup string) ([]Exercise, error)
}

type apiNinjasClient struct {
	cfg    config.ExerciseAPIConfig
	client *http.Client
}

// NewClient creates a new exercise catalog client.
func NewClient(cfg config.ExerciseAPIConfig) Client {
	return &apiNinjasClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Lookup calls the exercise catalog API. Each call is independent and
// at-most-once: no retry, no caching.
func (c *apiNinjasClient) Lookup(ctx context.Context, muscleGroup string) ([]Exercise, error) {
	endpoint := fmt.Sprintf("%s/v1/exercises?muscle=%s", c.cfg.BaseURL, url.QueryEscape(strings.ToLower(muscleGroup)))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create exercise request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[ExerciseClient] 调用动作目录 API 失败, muscle: %s, error: %v", muscleGroup, err)
		return nil, fmt.Errorf("failed to call exercise api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[ExerciseClient] 动作目录 API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("exercise api returned non-200 status: %s", resp.Status)
	}

	var result []Exercise
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode exercise response: %w", err)
	}

	log.Infof("[ExerciseClient] 查询到 %d 条动作记录, muscle: %s", len(result), strings.ToLower(muscleGroup))
	return result, nil
}
