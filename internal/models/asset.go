package models

import "gorm.io/gorm"

// Asset represents a tradable asset tracked by the portfolio.
type Asset struct {
	gorm.Model
	HolderID uint   `gorm:"index;uniqueIndex:idx_holder_symbol" json:"holder_id"`
	Symbol   string `gorm:"uniqueIndex:idx_holder_symbol;not null" json:"symbol"`
	Name     string `gorm:"not null" json:"name"`
}

// Exchange represents a trading venue a transaction took place on.
// Pure reference data, shared across holders.
type Exchange struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}
