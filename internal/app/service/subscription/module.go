package subscription

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewStore(db *gorm.DB, log *zap.SugaredLogger) Store {
	return NewGormStore(db, log)
}

// Module exposes the subscription gateway and the reconciliation engine via Fx.
var Module = fx.Options(
	fx.Provide(NewStore, NewEngine),
)
