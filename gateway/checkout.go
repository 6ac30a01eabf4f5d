package gateway

import "github.com/xraph/billing/types"

// Customer holds the contact fields the checkout page requires.
type Customer struct {
	CustomerID string `json:"customer_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

// InitiationParams is the signed payload a client posts to the checkout URL.
type InitiationParams struct {
	CheckoutURL string `json:"checkout_url"`
	Sandbox     bool   `json:"sandbox"`
	MerchantID  string `json:"merchant_id"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifyURL   string `json:"notify_url"`
	OrderID     string `json:"order_id"`
	Items       string `json:"items"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Hash        string `json:"hash"`
	PaymentID   string `json:"payment_id"`
}

// Initiate builds the signed checkout payload for an order.
func (s *Signer) Initiate(orderID, items string, amount types.Money, c Customer) *InitiationParams {
	country := c.Country
	if country == "" {
		country = "Sri Lanka"
	}
	return &InitiationParams{
		CheckoutURL: s.cfg.CheckoutURL(),
		Sandbox:     s.cfg.Sandbox,
		MerchantID:  s.cfg.MerchantID,
		ReturnURL:   s.cfg.ReturnURL,
		CancelURL:   s.cfg.CancelURL,
		NotifyURL:   s.cfg.NotifyURL,
		OrderID:     orderID,
		Items:       items,
		Currency:    amount.CurrencyCode(),
		Amount:      amount.FormatMajor(),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		City:        c.City,
		Country:     country,
		Hash:        s.Sign(orderID, amount),
	}
}
