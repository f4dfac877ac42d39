package statistics

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fatflowers/subsync/internal/app/service/subscription"
	"github.com/fatflowers/subsync/internal/models"
	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/types"
)

type StatisticType string

const (
	StatisticTypeCountByStatus   StatisticType = "subscription_count_by_status"
	StatisticTypeCountByProvider StatisticType = "subscription_count_by_provider"
	StatisticTypeEntitledCount   StatisticType = "entitled_count"
	StatisticTypeDiscountUsage   StatisticType = "discount_code_usage"
)

var statisticTypes = []StatisticType{
	StatisticTypeCountByStatus,
	StatisticTypeCountByProvider,
	StatisticTypeEntitledCount,
	StatisticTypeDiscountUsage,
}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	// DataItems defaults to every statistic.
	DataItems []*DataItem `json:"data_items"`
}

type ResponseDataItem struct {
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	db    *gorm.DB
	store subscription.Store
	now   func() time.Time
}

func New(db *gorm.DB, store subscription.Store) *Service {
	return &Service{db: db, store: store, now: time.Now}
}

func (s *Service) countBy(ctx context.Context, key func(*subscription.StatRow) string) ([]ResponseDataItem, error) {
	rows, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64)
	for _, r := range rows {
		totals[key(r)] += r.Count
	}
	out := lo.MapToSlice(totals, func(label string, n int64) ResponseDataItem {
		return ResponseDataItem{Label: label, Value: n}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// getEntitledCount mirrors models.Subscription.Entitled in SQL.
func (s *Service) getEntitledCount(ctx context.Context) ([]ResponseDataItem, error) {
	var n int64
	now := s.now()
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("current_period_end > ?", now).
		Where("status = ? OR (status = ? AND cancel_at_period_end = ?)",
			types.SubscriptionStatusActive, types.SubscriptionStatusCanceled, true).
		Count(&n).Error
	if err != nil {
		return nil, apperr.Store("statistics.entitled", err)
	}
	return []ResponseDataItem{{Value: n}}, nil
}

// getDiscountUsage reports current_uses as value and max_uses as value2 per code.
func (s *Service) getDiscountUsage(ctx context.Context) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.db.WithContext(ctx).Model(&models.DiscountCode{}).
		Select("code as label, current_uses as value, max_uses as value2").
		Order("code").
		Scan(&results).Error
	if err != nil {
		return nil, apperr.Store("statistics.discount_usage", err)
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, id StatisticType) ([]ResponseDataItem, error) {
	switch id {
	case StatisticTypeCountByStatus:
		return s.countBy(ctx, func(r *subscription.StatRow) string { return string(r.Status) })
	case StatisticTypeCountByProvider:
		return s.countBy(ctx, func(r *subscription.StatRow) string { return string(r.Provider) })
	case StatisticTypeEntitledCount:
		return s.getEntitledCount(ctx)
	case StatisticTypeDiscountUsage:
		return s.getDiscountUsage(ctx)
	default:
		return nil, apperr.Validation("invalid data item id: %s", id)
	}
}

// GetSubscriptionStatistic computes the requested items concurrently.
func (s *Service) GetSubscriptionStatistic(ctx context.Context, request *Request) (*Response, error) {
	ids := statisticTypes
	if request != nil && len(request.DataItems) > 0 {
		ids = lo.Uniq(lo.Map(request.DataItems, func(d *DataItem, _ int) StatisticType { return d.ID }))
	}
	for _, id := range ids {
		if !lo.Contains(statisticTypes, id) {
			return nil, apperr.Validation("invalid data item id: %s", id)
		}
	}

	results := make([][]ResponseDataItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.getStatistic(gctx, id)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := &Response{DataItems: make(map[StatisticType][]ResponseDataItem, len(ids))}
	for i, id := range ids {
		out.DataItems[id] = results[i]
	}
	return out, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
