package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/tool"
	"github.com/fatflowers/subsync/pkg/types"
)

// Patch is a partial write to a subscription record. Nil fields are left untouched.
type Patch struct {
	Status                 *types.SubscriptionStatus
	Provider               *types.PaymentProvider
	ExternalSubscriptionID *string
	ExternalPlanID         *string
	ExternalSessionID      *string
	Interval               *types.Interval
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      *bool
	DiscountCode           *string
	LastEventAt            *time.Time

	// ClearExternalRefs drops provider ids and the discount code before the patch is applied,
	// so a record that moves between providers carries no ids from the previous one.
	ClearExternalRefs bool
}

func (p Patch) apply(m *models.Subscription) {
	if p.ClearExternalRefs {
		m.ExternalSubscriptionID = nil
		m.ExternalPlanID = nil
		m.ExternalSessionID = nil
		m.DiscountCode = nil
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Provider != nil {
		m.Provider = *p.Provider
	}
	if p.ExternalSubscriptionID != nil {
		m.ExternalSubscriptionID = p.ExternalSubscriptionID
	}
	if p.ExternalPlanID != nil {
		m.ExternalPlanID = p.ExternalPlanID
	}
	if p.ExternalSessionID != nil {
		m.ExternalSessionID = p.ExternalSessionID
	}
	if p.Interval != nil {
		m.Interval = *p.Interval
	}
	if p.CurrentPeriodStart != nil {
		m.CurrentPeriodStart = p.CurrentPeriodStart
	}
	if p.CurrentPeriodEnd != nil {
		m.CurrentPeriodEnd = p.CurrentPeriodEnd
	}
	if p.CancelAtPeriodEnd != nil {
		m.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	if p.DiscountCode != nil {
		m.DiscountCode = p.DiscountCode
	}
	if p.LastEventAt != nil {
		m.LastEventAt = p.LastEventAt
	}
}

// Change describes why a write happened; it is recorded in subscription_log.
type Change struct {
	Reason types.SubscriptionChangeReason
	Extra  map[string]any
}

// Store is the only writer of subscription records. Every write is an upsert keyed on user id.
type Store interface {
	Get(ctx context.Context, userID string) (*models.Subscription, error)
	FindBySession(ctx context.Context, provider types.PaymentProvider, sessionID string) (*models.Subscription, error)
	Upsert(ctx context.Context, userID string, patch Patch, change Change) (*models.Subscription, error)
	Scan(ctx context.Context, q *ScanQuery) ([]*models.Subscription, int64, error)
	Stats(ctx context.Context) ([]*StatRow, error)
	// WithTx returns a Store whose writes join tx.
	WithTx(tx *gorm.DB) Store
}

// ScanFields are the columns admin filters and sorts may reference.
var ScanFields = []string{
	"user_id", "status", "provider", "billing_interval", "external_subscription_id",
	"external_session_id", "current_period_end", "cancel_at_period_end", "created_at", "updated_at",
}

type ScanQuery struct {
	Filters []*types.CommonFilter
	From    int
	Size    int
	// SortBy must be one of ScanFields; default updated_at.
	SortBy   string
	SortDesc bool
}

type StatRow struct {
	Status   types.SubscriptionStatus `json:"status"`
	Provider types.PaymentProvider    `json:"provider"`
	Count    int64                    `json:"count"`
}

type GormStore struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewGormStore(db *gorm.DB, log *zap.SugaredLogger) *GormStore {
	return &GormStore{db: db, log: log}
}

func (s *GormStore) WithTx(tx *gorm.DB) Store {
	return &GormStore{db: tx, log: s.log}
}

func (s *GormStore) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	var m models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no subscription for user %s", userID)
		}
		return nil, apperr.Store("get subscription", err)
	}
	return &m, nil
}

func (s *GormStore) FindBySession(ctx context.Context, provider types.PaymentProvider, sessionID string) (*models.Subscription, error) {
	var m models.Subscription
	err := s.db.WithContext(ctx).
		Where("provider = ? AND external_session_id = ?", provider, sessionID).
		Order("updated_at desc").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no subscription for %s session %s", provider, sessionID)
		}
		return nil, apperr.Store("find subscription by session", err)
	}
	return &m, nil
}

// Upsert loads the row for userID, applies patch and writes it back, appending a
// subscription_log entry with before/after snapshots in the same transaction.
func (s *GormStore) Upsert(ctx context.Context, userID string, patch Patch, change Change) (*models.Subscription, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	var result *models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original models.Subscription
		err := tx.Where("user_id = ?", userID).First(&original).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to get original subscription: %w", err)
		}

		var before *models.Subscription
		m := original
		if original.ID == "" {
			m = models.Subscription{
				ID:       tool.GenerateUUIDV7(),
				UserID:   userID,
				Status:   types.SubscriptionStatusNone,
				Provider: types.PaymentProviderNone,
				Interval: types.IntervalMonth,
			}
		} else {
			cp := original
			before = &cp
		}
		patch.apply(&m)

		if before == nil {
			// A concurrent first write for the same user lands on the unique user_id index.
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&m)
			if res.Error != nil {
				return fmt.Errorf("failed to insert subscription: %w", res.Error)
			}
			err = nil
			if res.RowsAffected == 0 {
				// Lost the race: patch the row the other writer stored instead.
				var stored models.Subscription
				if err := tx.Where("user_id = ?", userID).First(&stored).Error; err != nil {
					return fmt.Errorf("failed to reload subscription: %w", err)
				}
				cp := stored
				before = &cp
				m = stored
				patch.apply(&m)
				err = tx.Save(&m).Error
			}
		} else {
			err = tx.Save(&m).Error
		}
		if err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		log := &models.SubscriptionLog{
			ID:     tool.GenerateUUIDV7(),
			UserID: userID,
			Reason: change.Reason,
			Before: datatypes.NewJSONType(before),
			After:  datatypes.NewJSONType(&m),
			Extra:  datatypes.JSONMap(change.Extra),
		}
		if log.Extra == nil {
			log.Extra = datatypes.JSONMap{}
		}
		if err := tx.Create(log).Error; err != nil {
			return fmt.Errorf("failed to save subscription log: %w", err)
		}
		result = &m
		return nil
	})
	if err != nil {
		return nil, apperr.Store("upsert subscription", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_upserted",
		"user_id", userID, "status", result.Status, "provider", result.Provider, "reason", change.Reason)
	return result, nil
}

func (s *GormStore) Scan(ctx context.Context, q *ScanQuery) ([]*models.Subscription, int64, error) {
	if q == nil {
		q = &ScanQuery{}
	}
	tx := s.db.WithContext(ctx).Model(&models.Subscription{})
	for _, f := range q.Filters {
		if err := f.Validate(ScanFields); err != nil {
			return nil, 0, apperr.Validation("%v", err)
		}
		tx = tx.Where(f)
	}
	tx = tx.Session(&gorm.Session{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, apperr.Store("count subscriptions", err)
	}

	sortBy := "updated_at"
	if q.SortBy != "" {
		if !lo.Contains(ScanFields, q.SortBy) {
			return nil, 0, apperr.Validation("sort field not allowed: %s", q.SortBy)
		}
		sortBy = q.SortBy
	}
	size := q.Size
	if size <= 0 || size > 500 {
		size = 50
	}
	var items []*models.Subscription
	err := tx.Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: q.SortDesc}).
		Offset(max(q.From, 0)).Limit(size).Find(&items).Error
	if err != nil {
		return nil, 0, apperr.Store("scan subscriptions", err)
	}
	return items, total, nil
}

func (s *GormStore) Stats(ctx context.Context) ([]*StatRow, error) {
	var rows []*StatRow
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("status, provider, count(*) as count").
		Group("status, provider").
		Order("status, provider").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Store("subscription stats", err)
	}
	return rows, nil
}
