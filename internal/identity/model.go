package identity

import "time"

// User is the durable identity record, keyed by phone.
type User struct {
	ID              string
	Phone           string
	Name            string
	PasswordHash    string
	IsPhoneVerified bool
	IsPanVerified   bool
	// OTP is non-nil only while a re-verification code is outstanding, so code
	// and expiry are always present or absent together.
	OTP          *OTPChallenge
	Country      string
	IPAddress    string
	PANNumber    string
	PANCardImage string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OTPChallenge is an outstanding one-time code stored on an identity.
type OTPChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// PANUpdate carries the outcome of a PAN verification attempt.
type PANUpdate struct {
	Number   string
	Image    string
	Verified bool
}

// Location is the best-effort origin of a request.
type Location struct {
	Country   string
	IPAddress string
}

// View is the outward JSON representation of a user. It never carries the
// password hash or OTP fields.
type View struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Country         string     `json:"country"`
	IPAddress       string     `json:"ipAddress"`
	IsPhoneVerified bool       `json:"isPhoneVerified"`
	IsPanVerified   bool       `json:"isPanVerified"`
	PANNumber       string     `json:"panNumber,omitempty"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ToView projects u for API responses.
func (u User) ToView() View {
	return View{
		ID:              u.ID,
		Name:            u.Name,
		Phone:           u.Phone,
		Country:         orUnknown(u.Country),
		IPAddress:       orUnknown(u.IPAddress),
		IsPhoneVerified: u.IsPhoneVerified,
		IsPanVerified:   u.IsPanVerified,
		PANNumber:       u.PANNumber,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
