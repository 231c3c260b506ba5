package model

import "time"

// FoodStatus represents where a listing is in its lifecycle.
type FoodStatus string

const (
	FoodStatusAvailable FoodStatus = "available"
	FoodStatusTaken     FoodStatus = "taken"
	FoodStatusExpired   FoodStatus = "expired"
)

// Valid reports whether s is one of the persisted status values.
func (s FoodStatus) Valid() bool {
	switch s {
	case FoodStatusAvailable, FoodStatusTaken, FoodStatusExpired:
		return true
	}
	return false
}

// Food is a surplus-food listing. A taken food always has ClaimedBy and ClaimedAt set;
// an available one never has a claimer.
type Food struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      uint       `json:"user_id" gorm:"not null;index"`
	Title       string     `json:"title" gorm:"size:255;not null"`
	Description *string    `json:"description" gorm:"type:text"`
	Location    string     `json:"location" gorm:"size:255;not null"`
	ImageURL    *string    `json:"image_url" gorm:"size:1024"`
	Status      FoodStatus `json:"status" gorm:"type:varchar(20);not null;default:'available';index"`
	ClaimedBy   *uint      `json:"claimed_by" gorm:"index"`
	ClaimedAt   *time.Time `json:"claimed_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	User    *UserRef `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Claimer *UserRef `json:"claimer,omitempty" gorm:"foreignKey:ClaimedBy;constraint:OnDelete:SET NULL"`
}

// FoodStats holds the per-status counts shown on the admin dashboard.
type FoodStats struct {
	TotalFoods int64 `json:"total_foods"`
	Available  int64 `json:"available"`
	Taken      int64 `json:"taken"`
	Expired    int64 `json:"expired"`
}
