package registry

import (
	"encoding/json"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/text/unicode/norm"
)

// Subscription is a platform push subscription in the W3C JSON shape:
// an opaque endpoint plus the p256dh/auth keys the server encrypts with.
type Subscription = webpush.Subscription

// Keys holds the encryption material of a Subscription.
type Keys = webpush.Keys

// KeyInfo is the server's application key as returned by GET /push/vapid-key.
type KeyInfo struct {
	PublicKey string `json:"publicKey"`
	Available bool   `json:"available"`
}

// Device is the server-side registration of a subscription.
type Device struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	Keys      Keys      `json:"keys"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription returns the push subscription the device was registered with.
func (d Device) Subscription() Subscription {
	return Subscription{Endpoint: d.Endpoint, Keys: d.Keys}
}

// Kind is the closed set of notification categories.
type Kind string

const (
	KindBillReminder Kind = "bill_reminder"
	KindPostFailed   Kind = "post_failed"
	KindMention      Kind = "mention"
	KindMarketing    Kind = "marketing"
	KindSystem       Kind = "system"
)

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindBillReminder, KindPostFailed, KindMention, KindMarketing, KindSystem}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindBillReminder, KindPostFailed, KindMention, KindMarketing, KindSystem:
		return true
	}
	return false
}

// UnmarshalJSON maps kinds unknown to this client onto KindSystem so a newer
// server cannot break decoding of the whole page.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = Kind(s)
	if !k.Valid() {
		*k = KindSystem
	}
	return nil
}

// Notification is a single record of the notification feed.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

const maxLabelRunes = 64

// UnknownDeviceLabel replaces blank device labels.
const UnknownDeviceLabel = "Unknown device"

// NormalizeLabel trims, NFC-normalizes and caps a device label.
func NormalizeLabel(label string) string {
	label = norm.NFC.String(strings.TrimSpace(label))
	if label == "" {
		return UnknownDeviceLabel
	}
	if r := []rune(label); len(r) > maxLabelRunes {
		label = strings.TrimSpace(string(r[:maxLabelRunes]))
	}
	return label
}
