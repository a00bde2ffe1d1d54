package models

import "database/sql"

// Currency is a row of the currencies table. OwnerUserID is NULL for global currencies.
type Currency struct {
	CurrencyID    string         `db:"currency_id"`
	Code          string         `db:"code"`
	Symbol        string         `db:"symbol"`
	Name          string         `db:"name"`
	DecimalPlaces int            `db:"decimal_places"`
	OwnerUserID   sql.NullString `db:"owner_user_id"`
	AuditFields
}

// EnabledCurrency is a row of the enabled_currencies table.
type EnabledCurrency struct {
	UserID     string `db:"user_id"`
	CurrencyID string `db:"currency_id"`
	Active     bool   `db:"active"`
	SortOrder  int    `db:"sort_order"`
}

// UserSettings is a row of the user_settings table.
type UserSettings struct {
	UserID         string         `db:"user_id"`
	BaseCurrencyID sql.NullString `db:"base_currency_id"`
}
