package models

import "time"

type Review struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_reviews_user_product,priority:1" json:"userId"`
	ProductID     string    `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_reviews_user_product,priority:2" json:"productId"`
	AuthorName    string    `gorm:"type:varchar(100)" json:"authorName"`
	Rating        int       `gorm:"not null" json:"rating"`
	Text          string    `gorm:"type:text" json:"text"`
	AdminAuthored bool      `gorm:"not null;default:false" json:"adminAuthored"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (Review) TableName() string {
	return "reviews"
}
