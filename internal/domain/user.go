package domain

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// User is owned by the profile and admin flows. Matching only reads it and
// mutates Credit and Occupation.
type User struct {
	ID          int       `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Gender      Gender    `json:"gender" db:"gender"`
	Status      string    `json:"status" db:"status"`
	Credit      int       `json:"credit" db:"credit"`
	Occupation  bool      `json:"occupation" db:"occupation"`
	Bio         *string   `json:"bio" db:"bio"`
	PhotoURL    *string   `json:"photo_url" db:"photo_url"`
	Interests   []string  `json:"interests" db:"interests"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PublicProfile is what a match partner is allowed to see.
type PublicProfile struct {
	ID          int      `json:"id"`
	DisplayName string   `json:"display_name"`
	Gender      Gender   `json:"gender"`
	Bio         *string  `json:"bio"`
	PhotoURL    *string  `json:"photo_url"`
	Interests   []string `json:"interests"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Gender:      u.Gender,
		Bio:         u.Bio,
		PhotoURL:    u.PhotoURL,
		Interests:   u.Interests,
	}
}
