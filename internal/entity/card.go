package entity

import "fmt"

// Card is a saved payment card used as the source of fiat deposits.
type Card struct {
	ID    string `json:"id"`
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// PaymentMethod renders the card as the payment_method tag the backend expects.
func (c Card) PaymentMethod() string {
	return fmt.Sprintf("card_%s_%s", c.Brand, c.Last4)
}
