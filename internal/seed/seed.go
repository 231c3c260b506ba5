// Package seed loads the demo admin, students and listings.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"rescueboard/internal/model"
	"rescueboard/internal/repository"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password"

type seedUser struct {
	Name  string
	Email string
	Role  model.Role
}

type seedFood struct {
	OwnerEmail   string
	Title        string
	Description  string
	Location     string
	ClaimerEmail string
}

var users = []seedUser{
	{Name: "Admin", Email: "admin@rezeki.com", Role: model.RoleAdmin},
	{Name: "Ariq Haikal", Email: "ariq@student.com", Role: model.RoleStudent},
	{Name: "Ali Ahmad", Email: "ali@student.com", Role: model.RoleStudent},
	{Name: "Siti Nurhaliza", Email: "siti@student.com", Role: model.RoleStudent},
}

var foods = []seedFood{
	{
		OwnerEmail:  "ariq@student.com",
		Title:       "Nasi Lemak Lebih Event",
		Description: "Ada 10 bungkus lebih dari event FSKTM tadi. Masih panas!",
		Location:    "Foyer FSKTM",
	},
	{
		OwnerEmail:  "ali@student.com",
		Title:       "Kuih Muih Majlis",
		Description: "Pelbagai jenis kuih dari majlis kolej. Ambil cepat!",
		Location:    "Kolej Kediaman 1",
	},
	{
		OwnerEmail:  "siti@student.com",
		Title:       "Pizza 3 Kotak",
		Description: "Meeting cancel, pizza tak sentuh lagi. First come first serve.",
		Location:    "Bilik Mesyuarat Library",
	},
	{
		OwnerEmail:   "ariq@student.com",
		Title:        "Air Kotak & Sandwich",
		Description:  "Leftover from workshop pagi tadi.",
		Location:     "Dewan Kuliah 1",
		ClaimerEmail: "ali@student.com",
	},
}

// Result reports what a Run changed.
type Result struct {
	UsersCreated  int
	UsersExisting int
	FoodsCreated  int
}

// Run creates the demo accounts that do not exist yet, then the sample foods of
// every owner that has none. Running it twice changes nothing.
func Run(ctx context.Context, userRepo repository.UserRepository, foodRepo repository.FoodRepository, now time.Time) (Result, error) {
	var res Result

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), 10)
	if err != nil {
		return res, fmt.Errorf("hash password: %w", err)
	}

	byEmail := make(map[string]*model.User, len(users))
	for _, u := range users {
		existing, err := userRepo.FindByEmail(ctx, u.Email)
		switch {
		case err == nil:
			byEmail[u.Email] = existing
			res.UsersExisting++
			continue
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return res, fmt.Errorf("error checking user %s: %w", u.Email, err)
		}

		user := &model.User{Name: u.Name, Email: u.Email, PasswordHash: string(hash), Role: u.Role}
		if err := userRepo.Create(ctx, user); err != nil {
			return res, fmt.Errorf("error creating user %s: %w", u.Email, err)
		}
		byEmail[u.Email] = user
		res.UsersCreated++
	}

	hasFoods := make(map[uint]bool)
	for _, u := range byEmail {
		owned, err := foodRepo.ListByOwner(ctx, u.ID)
		if err != nil {
			return res, fmt.Errorf("error listing foods of %s: %w", u.Email, err)
		}
		hasFoods[u.ID] = len(owned) > 0
	}

	for _, f := range foods {
		owner := byEmail[f.OwnerEmail]
		if hasFoods[owner.ID] {
			continue
		}

		desc := f.Description
		food := &model.Food{
			UserID:      owner.ID,
			Title:       f.Title,
			Description: &desc,
			Location:    f.Location,
			Status:      model.FoodStatusAvailable,
		}
		if err := foodRepo.Create(ctx, food); err != nil {
			return res, fmt.Errorf("error creating food %q: %w", f.Title, err)
		}
		res.FoodsCreated++

		if f.ClaimerEmail != "" {
			if _, err := foodRepo.Claim(ctx, food.ID, byEmail[f.ClaimerEmail].ID, now); err != nil {
				return res, fmt.Errorf("error claiming food %q: %w", f.Title, err)
			}
		}
	}

	return res, nil
}
