package models

import "carhub/src/types"

type Car struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Slug        string          `gorm:"uniqueIndex" json:"slug,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       float64         `json:"price,omitempty"`
	Currency    string          `gorm:"default:'usd'" json:"currency,omitempty"`
	Status      types.CarStatus `gorm:"default:'available'" json:"status,omitempty"`
	SellerID    uint            `json:"seller_id,omitempty"`
	PhotoKeys   *types.JSONB    `gorm:"type:jsonb" json:"photo_keys,omitempty"`

	Seller       *User          `gorm:"foreignKey:seller_id" json:"seller,omitempty"`
	Reservations []*Reservation `json:"reservations,omitempty"`

	types.Timestamps
}
