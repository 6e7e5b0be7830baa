package worker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/promo-next/internal/logger"
	"github.com/promo-next/internal/provider"
	"github.com/promo-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCodeExport, c.handleCodeExport)
	mux.HandleFunc(queue.TaskUsageExport, c.handleUsageExport)
}

func (c *Consumer) handleCodeExport(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_code_export_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CodeExportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_code_export_unmarshal_failed", "error", err)
		return err
	}
	if payload.TemplateID == 0 || strings.TrimSpace(payload.FileToken) == "" {
		logger.Debugw("worker_code_export_skip_invalid_payload",
			"template_id", payload.TemplateID,
			"file_token", payload.FileToken)
		return nil
	}
	codes, err := c.CodeRepo.ListByTemplate(payload.TemplateID)
	if err != nil {
		logger.Warnw("worker_code_export_fetch_failed", "template_id", payload.TemplateID, "error", err)
		return err
	}
	content, err := buildCodeCSV(codes)
	if err != nil {
		logger.Warnw("worker_code_export_build_failed", "template_id", payload.TemplateID, "error", err)
		return err
	}
	path, err := writeExportFile(c.Config.Export.Dir, codeExportFilename(payload.TemplateID, payload.FileToken), content)
	if err != nil {
		logger.Warnw("worker_code_export_write_failed", "template_id", payload.TemplateID, "error", err)
		return err
	}
	logger.Infow("worker_code_export_done",
		"template_id", payload.TemplateID,
		"count", len(codes),
		"path", path)
	return nil
}

func (c *Consumer) handleUsageExport(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_usage_export_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.UsageExportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_usage_export_unmarshal_failed", "error", err)
		return err
	}
	if payload.TemplateID == 0 || strings.TrimSpace(payload.FileToken) == "" {
		logger.Debugw("worker_usage_export_skip_invalid_payload",
			"template_id", payload.TemplateID,
			"file_token", payload.FileToken)
		return nil
	}
	usages, err := c.UsageRepo.ListByTemplate(payload.TemplateID)
	if err != nil {
		logger.Warnw("worker_usage_export_fetch_failed", "template_id", payload.TemplateID, "error", err)
		return err
	}
	content, err := buildUsageCSV(usages)
	if err != nil {
		logger.Warnw("worker_usage_export_build_failed", "template_id", payload.TemplateID, "error", err)
		return err
	}
	path, err := writeExportFile(c.Config.Export.Dir, usageExportFilename(payload.TemplateID, payload.FileToken), content)
	if err != nil {
		logger.Warnw("worker_usage_export_write_failed", "template_id", payload.TemplateID, "error", err)
		return err
	}
	logger.Infow("worker_usage_export_done",
		"template_id", payload.TemplateID,
		"count", len(usages),
		"path", path)
	return nil
}
