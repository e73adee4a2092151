package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает сущность пользователя маркетплейса.
type User struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Location       string     `db:"location" json:"location"`
	Avatar         *string    `db:"avatar" json:"avatar,omitempty"`
	Verified       bool       `db:"verified" json:"verified"`
	IsPremium      bool       `db:"is_premium" json:"is_premium"`
	Rating         float64    `db:"rating" json:"rating"`
	Followers      int        `db:"followers" json:"followers"`
	Following      int        `db:"following" json:"following"`
	TotalSales     int        `db:"total_sales" json:"total_sales"`
	TotalPurchases int        `db:"total_purchases" json:"total_purchases"`
	ReferralCode   string     `db:"referral_code" json:"referral_code"`
	ReferredBy     *uuid.UUID `db:"referred_by" json:"referred_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicProfile содержит публичную часть профиля продавца или покупателя.
type PublicProfile struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Location       string    `json:"location"`
	Avatar         *string   `json:"avatar,omitempty"`
	Verified       bool      `json:"verified"`
	Rating         float64   `json:"rating"`
	Followers      int       `json:"followers"`
	TotalSales     int       `json:"total_sales"`
	TotalPurchases int       `json:"total_purchases"`
	JoinedAt       time.Time `json:"joined_at"`
}

// ToPublic возвращает публичное представление пользователя без контактов.
func (u *User) ToPublic() *PublicProfile {
	return &PublicProfile{
		ID:             u.ID,
		Name:           u.Name,
		Location:       u.Location,
		Avatar:         u.Avatar,
		Verified:       u.Verified,
		Rating:         u.Rating,
		Followers:      u.Followers,
		TotalSales:     u.TotalSales,
		TotalPurchases: u.TotalPurchases,
		JoinedAt:       u.CreatedAt,
	}
}
