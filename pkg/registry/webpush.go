package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// PushPayload is the JSON document delivered to a device by SendTest and
// consumed by the client-side relay.
type PushPayload struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

func encodePushPayload(n Notification) ([]byte, error) {
	return json.Marshal(PushPayload{
		ID:    n.ID,
		Kind:  n.Kind,
		Title: n.Title,
		Body:  n.Body,
		Tag:   "pushkit-" + string(n.Kind),
	})
}

// WebPusher sends encrypted Web Push messages signed with a VAPID key pair.
type WebPusher struct {
	Subscriber string // contact address, e.g. "ops@example.com"
	PublicKey  string
	PrivateKey string
	TTL        time.Duration
	HTTPClient *http.Client
}

// Push implements Pusher. 404 and 410 responses become ErrDeviceGone.
func (w WebPusher) Push(ctx context.Context, device Device, payload []byte) error {
	sub := device.Subscription()

	ttl := w.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	opts := &webpush.Options{
		Subscriber:      w.Subscriber,
		VAPIDPublicKey:  w.PublicKey,
		VAPIDPrivateKey: w.PrivateKey,
		TTL:             int(ttl.Seconds()),
		Urgency:         webpush.UrgencyNormal,
	}
	if w.HTTPClient != nil {
		opts.HTTPClient = w.HTTPClient
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, opts)
	if err != nil {
		return fmt.Errorf("webpush: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrDeviceGone
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return nil
}
