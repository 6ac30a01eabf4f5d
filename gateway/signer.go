// Package gateway implements the hosted-checkout handshake: signing
// outbound checkout requests and verifying inbound payment notifications.
package gateway

import (
	"crypto/md5" //nolint:gosec // md5 is mandated by the gateway protocol
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/xraph/billing/types"
)

// Checkout endpoints.
const (
	LiveCheckoutURL    = "https://www.payhere.lk/pay/checkout"
	SandboxCheckoutURL = "https://sandbox.payhere.lk/pay/checkout"
)

// Gateway status codes carried in notifications.
const (
	StatusCodeSuccess    = "2"
	StatusCodePending    = "0"
	StatusCodeCanceled   = "-1"
	StatusCodeFailed     = "-2"
	StatusCodeChargeback = "-3"
)

// Config is the merchant configuration. It is read-only once a Signer
// has been built from it.
type Config struct {
	MerchantID     string `json:"merchant_id" mapstructure:"merchant_id" yaml:"merchant_id"`
	MerchantSecret string `json:"-" mapstructure:"merchant_secret" yaml:"merchant_secret"`
	Sandbox        bool   `json:"sandbox" mapstructure:"sandbox" yaml:"sandbox"`
	ReturnURL      string `json:"return_url" mapstructure:"return_url" yaml:"return_url"`
	CancelURL      string `json:"cancel_url" mapstructure:"cancel_url" yaml:"cancel_url"`
	NotifyURL      string `json:"notify_url" mapstructure:"notify_url" yaml:"notify_url"`
}

// Validate reports missing credentials.
func (c Config) Validate() error {
	if strings.TrimSpace(c.MerchantID) == "" {
		return errors.New("gateway: merchant id is required")
	}
	if strings.TrimSpace(c.MerchantSecret) == "" {
		return errors.New("gateway: merchant secret is required")
	}
	return nil
}

// CheckoutURL returns the endpoint matching the sandbox flag.
func (c Config) CheckoutURL() string {
	if c.Sandbox {
		return SandboxCheckoutURL
	}
	return LiveCheckoutURL
}

// Signer computes and checks the gateway's chained MD5 digests.
type Signer struct {
	cfg Config
}

// NewSigner creates a Signer for cfg.
func NewSigner(cfg Config) *Signer {
	return &Signer{cfg: cfg}
}

// Config returns the merchant configuration.
func (s *Signer) Config() Config { return s.cfg }

// Sign returns the checkout digest for an order.
func (s *Signer) Sign(orderID string, amount types.Money) string {
	return Sign(s.cfg.MerchantID, orderID, amount.FormatMajor(), amount.CurrencyCode(), s.cfg.MerchantSecret)
}

// Verify reports whether n carries a valid signature for this merchant.
func (s *Signer) Verify(n Notification) bool {
	return Verify(n, s.cfg.MerchantSecret)
}

// Sign computes
//
//	upper(md5(merchantID + orderID + amount + currency + upper(md5(secret))))
//
// amount must already be formatted with two decimals. A base64 encoded
// secret is decoded before hashing; anything else is hashed as given.
func Sign(merchantID, orderID, amount, currency, secret string) string {
	hashedSecret := md5Upper(secretBytes(secret))
	return md5Upper([]byte(merchantID + orderID + amount + currency + hashedSecret))
}

// Verify recomputes
//
//	upper(md5(merchant_id + order_id + payhere_amount + payhere_currency + status_code + secret))
//
// from the notification and compares it with md5sig ignoring case.
// Notifications concatenate the raw secret, not its digest.
func Verify(n Notification, secret string) bool {
	if n.Signature == "" {
		return false
	}
	expected := md5Upper([]byte(n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + secret))
	got := strings.ToUpper(strings.TrimSpace(n.Signature))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func secretBytes(secret string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil && len(decoded) > 0 {
		return decoded
	}
	return []byte(secret)
}

func md5Upper(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec // protocol digest
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
