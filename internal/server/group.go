package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Group 把多个 Manager 当作一个整体运行
type Group struct {
	managers []*Manager
	logger   *zap.Logger
}

// NewGroup 按传入顺序启动 managers，关闭时全部关闭
func NewGroup(logger *zap.Logger, managers ...*Manager) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Group{managers: managers, logger: logger}
}

// Run 启动全部服务器后阻塞，直到 ctx 结束或任一服务器异常退出，
// 返回前关闭全部服务器。ctx 正常结束时返回 nil。
func (g *Group) Run(ctx context.Context) error {
	for _, m := range g.managers {
		if err := m.Start(); err != nil {
			return errors.Join(err, g.shutdown())
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-egCtx.Done()
		return nil
	})
	for _, m := range g.managers {
		eg.Go(func() error {
			select {
			case err := <-m.Errors():
				return fmt.Errorf("%s server: %w", m.name, err)
			case <-egCtx.Done():
				return nil
			}
		})
	}

	runErr := eg.Wait()
	if runErr != nil {
		g.logger.Error("server exited unexpectedly", zap.Error(runErr))
	} else {
		g.logger.Info("shutdown requested", zap.Error(context.Cause(ctx)))
	}
	return errors.Join(runErr, g.shutdown())
}

func (g *Group) shutdown() error {
	var errs []error
	for _, m := range g.managers {
		errs = append(errs, m.Shutdown(context.Background()))
	}
	return errors.Join(errs...)
}
