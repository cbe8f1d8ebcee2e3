package bank

import (
	"strings"
	"time"
)

// Account types accepted for a linked bank account.
const (
	TypeSavings = "savings"
	TypeCurrent = "current"
	TypeSalary  = "salary"
)

// Account is a bank account linked to a PAN-verified identity. The full
// account number never leaves the service; views carry the masked form.
type Account struct {
	ID                string
	UserID            string
	Phone             string
	AccountHolderName string
	AccountNumber     string
	IFSCCode          string
	BankName          string
	BranchName        string
	AccountType       string
	IsVerified        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// View is the client-facing rendering of an Account.
type View struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	Phone               string    `json:"phone"`
	AccountHolderName   string    `json:"accountHolderName"`
	MaskedAccountNumber string    `json:"maskedAccountNumber"`
	IFSCCode            string    `json:"ifscCode"`
	BankName            string    `json:"bankName"`
	BranchName          string    `json:"branchName"`
	AccountType         string    `json:"accountType"`
	IsVerified          bool      `json:"isVerified"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (a Account) ToView() View {
	return View{
		ID:                  a.ID,
		UserID:              a.UserID,
		Phone:               a.Phone,
		AccountHolderName:   a.AccountHolderName,
		MaskedAccountNumber: Mask(a.AccountNumber),
		IFSCCode:            a.IFSCCode,
		BankName:            a.BankName,
		BranchName:          a.BranchName,
		AccountType:         a.AccountType,
		IsVerified:          a.IsVerified,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

// Mask replaces all but the last four digits with '*'.
func Mask(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
