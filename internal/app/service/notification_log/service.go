package notification_log

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/tool"
)

// Service writes provider notification audit rows off the request path.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	wg  sync.WaitGroup
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a payment notification log. Nil input is ignored.
// The write outlives request cancellation; Wait drains pending writes.
func (s *Service) Save(ctx context.Context, log *models.PaymentNotificationLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("failed to save notification log", "id", log.ID, "status", log.Status, "error", err)
		}
	}()
}

// Wait blocks until queued writes finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func register(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{OnStop: s.Wait})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(register),
)
