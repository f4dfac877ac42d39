package notification_handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/subsync/internal/app/service/normalizer"
	notificationlog "github.com/fatflowers/subsync/internal/app/service/notification_log"
	"github.com/fatflowers/subsync/internal/app/service/provider"
	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/metrics"
	"github.com/fatflowers/subsync/pkg/types"
)

// Webhook results, also used as the webhook_total result label.
const (
	ResultHandled  = "handled"
	ResultIgnored  = "ignored"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

type Delivery struct {
	Provider types.PaymentProvider
	Header   http.Header
	Body     []byte
	TraceID  string
}

type Result struct {
	Result    string               `json:"result"`
	EventID   string               `json:"event_id,omitempty"`
	EventType string               `json:"event_type,omitempty"`
	Outcome   subscription.Outcome `json:"outcome,omitempty"`
	Reason    string               `json:"reason,omitempty"`
}

type NotificationHandler struct {
	cfg         *config.Config
	providers   *provider.Registry
	normalizers *normalizer.Set
	engine      *subscription.Engine
	notifSvc    *notificationlog.Service
	metrics     *metrics.Metrics
	Logger      *zap.SugaredLogger
}

func NewNotificationHandler(
	cfg *config.Config,
	providers *provider.Registry,
	normalizers *normalizer.Set,
	engine *subscription.Engine,
	notif *notificationlog.Service,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *NotificationHandler {
	return &NotificationHandler{
		cfg:         cfg,
		providers:   providers,
		normalizers: normalizers,
		engine:      engine,
		notifSvc:    notif,
		metrics:     m,
		Logger:      log,
	}
}

// HandleNotification verifies, normalizes and reconciles one provider push.
// A nil error means the provider may stop retrying, including for event types that are deliberately ignored.
func (h *NotificationHandler) HandleNotification(ctx context.Context, d *Delivery) (_ *Result, resErr error) {
	log := logctx.FromCtx(ctx, h.Logger).With("provider", d.Provider)
	norm, err := h.normalizers.For(d.Provider)
	if err != nil {
		return nil, err
	}
	if err := h.verify(ctx, log, d); err != nil {
		h.metrics.ObserveWebhook(string(d.Provider), ResultRejected)
		log.Warnw("webhook_rejected", "error", err)
		return nil, err
	}

	data := rawJSON(d.Body)
	h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
		ProviderID:       string(d.Provider),
		TraceID:          d.TraceID,
		NotificationTime: time.Now(),
		Data:             data,
		Status:           models.PaymentNotificationLogStatusReceived,
	})
	log.Infow("webhook_received", "bytes", len(d.Body))

	var fact *normalizer.Fact
	res := &Result{}
	defer func() {
		status := models.PaymentNotificationLogStatusHandled
		switch {
		case resErr != nil:
			status = models.PaymentNotificationLogStatusHandleFailed
			res.Result = ResultFailed
		case res.Result == ResultIgnored:
			status = models.PaymentNotificationLogStatusIgnored
		}
		h.metrics.ObserveWebhook(string(d.Provider), res.Result)

		resMap := map[string]any{"result": res}
		if resErr != nil {
			resMap["error"] = resErr.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		entry := &models.PaymentNotificationLog{
			ProviderID:       string(d.Provider),
			EventID:          res.EventID,
			EventType:        res.EventType,
			TraceID:          d.TraceID,
			NotificationTime: time.Now(),
			Data:             data,
			Result:           lo.ToPtr(datatypes.JSON(resBytes)),
			Status:           status,
		}
		if fact != nil {
			entry.UserID = lo.EmptyableToPtr(fact.UserID)
			if !fact.OccurredAt.IsZero() {
				entry.NotificationTime = fact.OccurredAt
			}
		}
		h.notifSvc.Save(ctx, entry)
	}()

	fact, err = norm.Normalize(d.Body)
	if errors.Is(err, normalizer.ErrIgnoredEvent) {
		res.Result, res.Reason = ResultIgnored, err.Error()
		log.Infow("webhook_ignored", "reason", res.Reason)
		return res, nil
	}
	if err != nil {
		log.Errorw("webhook_normalize_failed", "error", err)
		return nil, err
	}
	res.EventID, res.EventType = fact.EventID, fact.EventType

	applied, err := h.engine.Apply(ctx, fact)
	if err != nil {
		log.Errorw("webhook_reconcile_failed", "event_id", fact.EventID, "user_id", fact.UserID, "error", err)
		return nil, err
	}
	res.Outcome, res.Reason = applied.Outcome, applied.Reason
	res.Result = ResultHandled
	if applied.Outcome == subscription.OutcomeIgnored {
		res.Result = ResultIgnored
	}
	return res, nil
}

func (h *NotificationHandler) verify(ctx context.Context, log *zap.SugaredLogger, d *Delivery) error {
	if !h.cfg.Webhook.VerifySignatures {
		log.Warnw("webhook_signature_unverified")
		return nil
	}
	client, err := h.providers.Get(d.Provider)
	if err != nil {
		return err
	}
	return client.VerifyWebhook(ctx, d.Header, d.Body)
}

// rawJSON keeps the payload as-is when it is JSON, else stores it as a JSON string.
func rawJSON(body []byte) datatypes.JSON {
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	b, _ := json.Marshal(string(body))
	return datatypes.JSON(b)
}

var Module = fx.Options(
	fx.Provide(NewNotificationHandler),
)
