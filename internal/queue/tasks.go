package queue

import (
	"encoding/json"

	"github.com/promo-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCodeExport 券码导出任务
	TaskCodeExport = constants.TaskCodeExport
	// TaskUsageExport 核销记录导出任务
	TaskUsageExport = constants.TaskUsageExport
)

// CodeExportPayload 券码导出任务载荷
type CodeExportPayload struct {
	TemplateID uint   `json:"template_id"`
	FileToken  string `json:"file_token"`
}

// UsageExportPayload 核销记录导出任务载荷
type UsageExportPayload struct {
	TemplateID uint   `json:"template_id"`
	FileToken  string `json:"file_token"`
}

// NewCodeExportTask 创建券码导出任务
func NewCodeExportTask(payload CodeExportPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCodeExport, body), nil
}

// NewUsageExportTask 创建核销记录导出任务
func NewUsageExportTask(payload UsageExportPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUsageExport, body), nil
}
