package entity

// Address is a structured postal address. It is embedded into tables with a
// column prefix (address_, shipping_, billing_).
type Address struct {
	Street  string `bun:"street" json:"street" validate:"required"`
	City    string `bun:"city" json:"city" validate:"required"`
	State   string `bun:"state" json:"state" validate:"required"`
	Zip     string `bun:"zip" json:"zip" validate:"required"`
	Country string `bun:"country" json:"country" validate:"required"`
}
