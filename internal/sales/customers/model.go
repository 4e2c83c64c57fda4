package customers

import (
	"strings"
	"time"
)

type Customer struct {
	ID            int64     `json:"id" db:"id"`
	Code          string    `json:"code" db:"code"`
	Name          string    `json:"name" db:"name"`
	Email         *string   `json:"email,omitempty" db:"email"`
	Phone         *string   `json:"phone,omitempty" db:"phone"`
	ContactPerson *string   `json:"contact_person,omitempty" db:"contact_person"`
	AddressLine1  *string   `json:"address_line1,omitempty" db:"address_line1"`
	AddressLine2  *string   `json:"address_line2,omitempty" db:"address_line2"`
	City          *string   `json:"city,omitempty" db:"city"`
	Country       string    `json:"country" db:"country"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedBy     int64     `json:"created_by" db:"created_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// HasContactInfo reports whether the customer can be reached for dispatch.
// Sending a quotation requires at least an email address or phone number.
func (c Customer) HasContactInfo() bool {
	if c.Email != nil && strings.TrimSpace(*c.Email) != "" {
		return true
	}
	return c.Phone != nil && strings.TrimSpace(*c.Phone) != ""
}
