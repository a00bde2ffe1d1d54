package domain

import "regexp"

var currencyCodePattern = regexp.MustCompile(`^[A-Z0-9]{3,10}$`)

// IsValidCurrencyCode reports whether code is 3 to 10 uppercase letters or digits.
func IsValidCurrencyCode(code string) bool {
	return currencyCodePattern.MatchString(code)
}

// CurrencyScope says who can see a currency: everyone (global) or a single owning user.
// The zero value is the global scope.
type CurrencyScope struct {
	ownerUserID string
}

// GlobalScope returns the scope shared by all users.
func GlobalScope() CurrencyScope {
	return CurrencyScope{}
}

// OwnedBy returns the scope of a custom currency owned by userID.
func OwnedBy(userID string) CurrencyScope {
	return CurrencyScope{ownerUserID: userID}
}

// IsGlobal reports whether the scope is the shared global scope.
func (s CurrencyScope) IsGlobal() bool {
	return s.ownerUserID == ""
}

// OwnerID returns the owning user, if any.
func (s CurrencyScope) OwnerID() (string, bool) {
	return s.ownerUserID, s.ownerUserID != ""
}

// VisibleTo reports whether a user may reference a currency with this scope.
func (s CurrencyScope) VisibleTo(userID string) bool {
	return s.IsGlobal() || s.ownerUserID == userID
}

// String renders the scope for logs and API payloads.
func (s CurrencyScope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "owned"
}

// Currency represents a currency record. The same Code can exist once globally and once
// per user; internal computations always refer to currencies by CurrencyID.
type Currency struct {
	CurrencyID    string        `json:"currencyID"`
	Code          string        `json:"code"`   // e.g., "USD"
	Name          string        `json:"name"`   // e.g., "US Dollar"
	Symbol        string        `json:"symbol"` // e.g., "$"
	DecimalPlaces int           `json:"decimalPlaces"`
	Scope         CurrencyScope `json:"-"`
	AuditFields
}

// EnabledCurrency marks a currency as part of a user's currency universe.
type EnabledCurrency struct {
	UserID     string `json:"userID"`
	CurrencyID string `json:"currencyID"`
	Active     bool   `json:"active"`
	Order      int    `json:"order"`
}

// UserSettings holds per-user preferences relevant to conversion.
type UserSettings struct {
	UserID         string `json:"userID"`
	BaseCurrencyID string `json:"baseCurrencyID"`
}
