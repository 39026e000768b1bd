package models

import "time"

// NativeTokenAddress is the sentinel token address for the chain's native currency
const NativeTokenAddress = "0x0000000000000000000000000000000000000000"

// Tip is one confirmed on-chain transfer. Rows are immutable once written.
type Tip struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ToCreatorID   uint   `gorm:"not null;index:idx_tips_to_created,priority:1" json:"to_creator_id"`
	FromCreatorID *uint  `gorm:"index" json:"from_creator_id"`
	TokenAddress  string `gorm:"size:42;not null" json:"token_address"`
	// Minor units as a canonical base-10 integer string. Summed with arbitrary precision, never in SQL.
	Amount    string    `gorm:"size:78;not null" json:"amount"`
	TxHash    string    `gorm:"size:66;not null;uniqueIndex:uk_tips_tx_hash" json:"tx_hash"`
	CreatedAt time.Time `gorm:"not null;index:idx_tips_to_created,priority:2" json:"created_at"`
}

func (Tip) TableName() string {
	return "tips"
}

// IsNative reports whether the tip moved the chain's native currency
func (t Tip) IsNative() bool {
	return t.TokenAddress == NativeTokenAddress
}
