package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promo-next/internal/config"
	"github.com/promo-next/internal/logger"
	"github.com/promo-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	exportCleanupInterval = time.Hour
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.Container != nil {
		go s.runExportCleanupLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runExportCleanupLoop 周期清理过期导出文件
func (s *Service) runExportCleanupLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.Container == nil {
		return
	}
	exportCfg := s.consumer.Config.Export
	runOnce := func() {
		if err := cleanupExportDir(exportCfg.Dir, exportCfg.RetentionDays); err != nil {
			logger.Warnw("worker_export_cleanup_failed", "dir", exportCfg.Dir, "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(exportCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// cleanupExportDir 删除超过保留期的导出文件
func cleanupExportDir(dir string, retentionDays int) error {
	dir = strings.TrimSpace(dir)
	if dir == "" || retentionDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warnw("worker_export_cleanup_remove_failed", "path", path, "error", err)
			continue
		}
		logger.Debugw("worker_export_cleanup_removed", "path", path)
	}
	return nil
}
