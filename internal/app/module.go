package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/subsync/internal/app/api/server"
	"github.com/fatflowers/subsync/internal/app/service/checkout"
	"github.com/fatflowers/subsync/internal/app/service/discount"
	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	notificationhandler "github.com/fatflowers/subsync/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/subsync/internal/app/service/notification_log"
	"github.com/fatflowers/subsync/internal/app/service/provider"
	"github.com/fatflowers/subsync/internal/app/service/statistics"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/app/service/verification"
	"github.com/fatflowers/subsync/internal/platform/db"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/logger"
	"github.com/fatflowers/subsync/pkg/metrics"
	"github.com/fatflowers/subsync/pkg/ratelimit"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	metrics.Module,
	ratelimit.Module,
	provider.Module,
	normalizer.Module,
	subscription.Module,
	checkout.Module,
	verification.Module,
	discount.Module,
	statistics.Module,
	notificationlog.Module,
	notificationhandler.Module,
	server.Module,
)
