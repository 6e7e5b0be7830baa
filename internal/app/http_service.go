package app

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// APIService 管理后台 HTTP 服务，承载 gin 路由
type APIService struct {
	name   string
	server *http.Server
}

// NewAPIService 创建管理后台 HTTP 服务
func NewAPIService(addr string, handler http.Handler) *APIService {
	return &APIService{
		name: "api",
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Name 服务名称
func (s *APIService) Name() string {
	if s == nil || s.name == "" {
		return "api"
	}
	return s.name
}

// Start 启动监听，ErrServerClosed 视为正常退出
func (s *APIService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("api server not initialized")
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅停机，等待在途请求结束
func (s *APIService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
