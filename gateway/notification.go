package gateway

import (
	"net/url"
	"strings"

	"github.com/xraph/billing/types"
)

// Notification is the form-encoded callback posted by the gateway.
// Fields hold the raw strings as received; they are signed verbatim.
type Notification struct {
	MerchantID    string `form:"merchant_id" json:"merchant_id"`
	OrderID       string `form:"order_id" json:"order_id"`
	PaymentID     string `form:"payment_id" json:"payment_id"`
	Amount        string `form:"payhere_amount" json:"payhere_amount"`
	Currency      string `form:"payhere_currency" json:"payhere_currency"`
	StatusCode    string `form:"status_code" json:"status_code"`
	Signature     string `form:"md5sig" json:"md5sig"`
	StatusMessage string `form:"status_message" json:"status_message,omitempty"`
	Method        string `form:"method" json:"method,omitempty"`
	CardHolder    string `form:"card_holder_name" json:"card_holder_name,omitempty"`
	CardNumber    string `form:"card_no" json:"card_no,omitempty"`
	CardExpiry    string `form:"card_expiry" json:"card_expiry,omitempty"`
}

// ParseNotification reads a notification from decoded form values.
func ParseNotification(v url.Values) Notification {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	return Notification{
		MerchantID:    get("merchant_id"),
		OrderID:       get("order_id"),
		PaymentID:     get("payment_id"),
		Amount:        get("payhere_amount"),
		Currency:      get("payhere_currency"),
		StatusCode:    get("status_code"),
		Signature:     get("md5sig"),
		StatusMessage: get("status_message"),
		Method:        get("method"),
		CardHolder:    get("card_holder_name"),
		CardNumber:    get("card_no"),
		CardExpiry:    get("card_expiry"),
	}
}

// Succeeded reports whether the status code confirms the payment.
func (n Notification) Succeeded() bool {
	return n.StatusCode == StatusCodeSuccess
}

// Money parses the notified amount in the notified currency.
func (n Notification) Money() (types.Money, error) {
	return types.ParseMoney(n.Amount, n.Currency)
}

// Form encodes the notification back into form values, as the gateway
// would post it.
func (n Notification) Form() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("merchant_id", n.MerchantID)
	set("order_id", n.OrderID)
	set("payment_id", n.PaymentID)
	set("payhere_amount", n.Amount)
	set("payhere_currency", n.Currency)
	set("status_code", n.StatusCode)
	set("md5sig", n.Signature)
	set("status_message", n.StatusMessage)
	set("method", n.Method)
	set("card_holder_name", n.CardHolder)
	set("card_no", n.CardNumber)
	set("card_expiry", n.CardExpiry)
	return v
}

// SignNotification fills n.Signature using the inbound formula. Useful
// for test traffic and sandbox replays.
func SignNotification(n Notification, secret string) Notification {
	n.Signature = md5Upper([]byte(n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + secret))
	return n
}
