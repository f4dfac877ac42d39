package models

import "time"

// DiscountCode is seeded by operators and only mutated by redemption.
type DiscountCode struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Code            string    `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	DiscountPercent int       `gorm:"column:discount_percent;not null" json:"discount_percent"`
	DurationMonths  int       `gorm:"column:duration_months;not null" json:"duration_months"`
	MaxUses         int       `gorm:"column:max_uses;not null" json:"max_uses"`
	CurrentUses     int       `gorm:"column:current_uses;not null;default:0" json:"current_uses"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (DiscountCode) TableName() string { return "discount_code" }

func (d *DiscountCode) Exhausted() bool {
	return d.CurrentUses >= d.MaxUses
}
