package model

type Speciality struct {
	Base
	Name            string   `json:"name" db:"name"`
	Location        GeoPoint `json:"location" db:"-"`
	Description     string   `json:"description" db:"description"`
	Department      string   `json:"department" db:"department"`
	Services        []string `json:"services" db:"-"`
	ReferralContact string   `json:"referralContact" db:"referral_contact"`
	Notes           string   `json:"notes" db:"notes"`
}

type SpecialityRequest struct {
	Name            string    `json:"name" binding:"required"`
	Location        *GeoPoint `json:"location"`
	Description     string    `json:"description" binding:"required"`
	Department      string    `json:"department" binding:"required"`
	Services        []string  `json:"services" binding:"required"`
	ReferralContact string    `json:"referralContact" binding:"required"`
	Notes           string    `json:"notes" binding:"required"`
}
