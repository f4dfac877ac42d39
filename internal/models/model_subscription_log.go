package models

import (
	"time"

	"github.com/fatflowers/subsync/pkg/types"
	"gorm.io/datatypes"
)

// SubscriptionLog records changes to user subscriptions.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID     string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);index:idx_user_id_id,priority:1;not null" json:"user_id"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// Before stores the record before the change; null when the row was created.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before" json:"before"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after" json:"after"`
	// Extra stores the triggering provider, event id and similar context.
	Extra     datatypes.JSONMap `gorm:"column:extra" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
