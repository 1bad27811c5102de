package shop

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BasketState int

const (
	BasketStateOpen BasketState = iota
	BasketStateSubmitted
)

// Basket is the pre-purchase cart. It is the source of truth for what is
// charged until an order is placed from it; after that it is frozen.
type Basket struct {
	UID          string
	OrderNumber  string
	State        BasketState
	CreatedAt    time.Time
	LastModified *time.Time
	Currency     string
	Owner        Buyer
	Lines        []Line
	// AllowedBin optionally restricts the card-number prefixes the gateway may accept
	AllowedBin string
}

type Buyer struct {
	Username string
	Email    string
	FullName string
}

// Line prices are stored as decimal strings: that is the format the gateway
// speaks and it survives the datastore round-trip unchanged.
type Line struct {
	ProductID        string
	Description      string
	Quantity         int
	UnitPriceExclTax string
	UnitPriceInclTax string
	Currency         string
}

func (l Line) PriceExclTax() decimal.Decimal {
	price, _ := decimal.NewFromString(l.UnitPriceExclTax)
	return price
}

func (l Line) PriceInclTax() decimal.Decimal {
	price, _ := decimal.NewFromString(l.UnitPriceInclTax)
	return price
}

func (l Line) Validate() error {
	if l.Quantity <= 0 {
		return fmt.Errorf("line %s: quantity must be positive", l.ProductID)
	}

	exclTax, err := decimal.NewFromString(l.UnitPriceExclTax)
	if err != nil {
		return fmt.Errorf("line %s: invalid price excluding tax: %s", l.ProductID, err)
	}
	inclTax, err := decimal.NewFromString(l.UnitPriceInclTax)
	if err != nil {
		return fmt.Errorf("line %s: invalid price including tax: %s", l.ProductID, err)
	}

	if exclTax.IsNegative() {
		return fmt.Errorf("line %s: price excluding tax must not be negative", l.ProductID)
	}
	if inclTax.LessThan(exclTax) {
		return fmt.Errorf("line %s: price including tax must not be below price excluding tax", l.ProductID)
	}

	return nil
}

func (b Basket) TotalInclTax() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.Lines {
		total = total.Add(line.PriceInclTax().Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return total
}

func (b Basket) TotalExclTax() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.Lines {
		total = total.Add(line.PriceExclTax().Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return total
}

func (b Basket) Validate() error {
	if len(b.Lines) == 0 {
		return fmt.Errorf("basket %s has no lines", b.UID)
	}
	if b.Currency == "" {
		return fmt.Errorf("basket %s has no currency", b.UID)
	}
	if b.OrderNumber == "" {
		return fmt.Errorf("basket %s has no order number", b.UID)
	}

	for _, line := range b.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (b Basket) GetProductSummary() string {
	lines := []string{}
	for _, l := range b.Lines {
		lines = append(lines, fmt.Sprintf("%d x %s", l.Quantity, l.Description))
	}

	return strings.Join(lines, ", ")
}
