package push

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pushkit/pkg/kv"
	"github.com/dmitrymomot/pushkit/pkg/registry"
)

// Op names a MemoryPlatform call for failure injection.
type Op string

const (
	OpPermission        Op = "permission"
	OpRequestPermission Op = "request_permission"
	OpOpenChannel       Op = "open_channel"
	OpCloseChannel      Op = "close_channel"
	OpActiveChannel     Op = "active_channel"
)

const keyPlatform = "platform/channel"

type platformState struct {
	Permission Permission             `json:"permission"`
	Channel    *registry.Subscription `json:"channel,omitempty"`
	ServerKey  []byte                 `json:"serverKey,omitempty"`
}

// MemoryPlatform is a scriptable Platform. The permission prompt resolves to
// a preset answer, channels get generated endpoints and real P-256 keys, and
// any call can be made to fail. With WithPlatformStore the channel survives
// process restarts.
type MemoryPlatform struct {
	mu           sync.Mutex
	supported    bool
	answer       Permission
	prompt       func(context.Context) Permission
	endpointBase string
	store        kv.Store
	loaded       bool
	state        platformState
	failures     map[Op]error
	calls        map[Op]int
}

var _ Platform = (*MemoryPlatform)(nil)

// PlatformOption configures a MemoryPlatform.
type PlatformOption func(*MemoryPlatform)

// WithUnsupported makes Supported report false.
func WithUnsupported() PlatformOption {
	return func(p *MemoryPlatform) { p.supported = false }
}

// WithPermission sets the current permission.
func WithPermission(perm Permission) PlatformOption {
	return func(p *MemoryPlatform) { p.state.Permission = perm }
}

// WithPromptAnswer sets what the user answers when prompted. Default is granted.
func WithPromptAnswer(perm Permission) PlatformOption {
	return func(p *MemoryPlatform) { p.answer = perm }
}

// WithPrompt asks fn instead of using the preset answer. fn runs without the
// platform lock held.
func WithPrompt(fn func(context.Context) Permission) PlatformOption {
	return func(p *MemoryPlatform) { p.prompt = fn }
}

// WithEndpointBase sets the URL prefix of generated endpoints.
func WithEndpointBase(base string) PlatformOption {
	return func(p *MemoryPlatform) { p.endpointBase = strings.TrimRight(base, "/") }
}

// WithPlatformStore persists permission and channel in s.
func WithPlatformStore(s kv.Store) PlatformOption {
	return func(p *MemoryPlatform) { p.store = s }
}

func NewMemoryPlatform(opts ...PlatformOption) *MemoryPlatform {
	p := &MemoryPlatform{
		supported:    true,
		answer:       PermissionGranted,
		endpointBase: "https://push.example.invalid/send",
		state:        platformState{Permission: PermissionDefault},
		failures:     make(map[Op]error),
		calls:        make(map[Op]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fail makes every subsequent op call return err until cleared with a nil err.
func (p *MemoryPlatform) Fail(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls returns how many times op was invoked.
func (p *MemoryPlatform) Calls(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Channel returns the active subscription without counting as a call.
func (p *MemoryPlatform) Channel() *registry.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneSub(p.state.Channel)
}

func (p *MemoryPlatform) Supported() bool {
	return p.supported
}

func (p *MemoryPlatform) Permission(ctx context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpPermission); err != nil {
		return "", err
	}
	return p.state.Permission, nil
}

// RequestPermission resolves an undecided permission with the prompt answer.
// A prompt returning PermissionDefault leaves it undecided, like a dismissed
// browser dialog.
func (p *MemoryPlatform) RequestPermission(ctx context.Context) (Permission, error) {
	p.mu.Lock()
	if err := p.enter(ctx, OpRequestPermission); err != nil {
		p.mu.Unlock()
		return "", err
	}
	if p.state.Permission != PermissionDefault {
		perm := p.state.Permission
		p.mu.Unlock()
		return perm, nil
	}
	answer, prompt := p.answer, p.prompt
	p.mu.Unlock()

	if prompt != nil {
		answer = prompt(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Permission == PermissionDefault && answer != PermissionDefault {
		p.state.Permission = answer
		if err := p.save(ctx); err != nil {
			return "", err
		}
	}
	return p.state.Permission, nil
}

// OpenChannel returns the existing channel when it was opened with the same
// key and replaces it otherwise.
func (p *MemoryPlatform) OpenChannel(ctx context.Context, opts ChannelOptions) (*registry.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpOpenChannel); err != nil {
		return nil, err
	}
	if p.state.Permission != PermissionGranted {
		return nil, ErrPermissionDenied
	}
	if len(opts.ServerKey) == 0 {
		return nil, errors.New("application server key is required")
	}

	if p.state.Channel != nil && bytes.Equal(p.state.ServerKey, opts.ServerKey) {
		return cloneSub(p.state.Channel), nil
	}

	keys, err := generateKeys()
	if err != nil {
		return nil, err
	}
	p.state.Channel = &registry.Subscription{
		Endpoint: p.endpointBase + "/" + uuid.NewString(),
		Keys:     keys,
	}
	p.state.ServerKey = bytes.Clone(opts.ServerKey)
	if err := p.save(ctx); err != nil {
		return nil, err
	}
	return cloneSub(p.state.Channel), nil
}

func (p *MemoryPlatform) CloseChannel(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpCloseChannel); err != nil {
		return err
	}
	if p.state.Channel == nil {
		return nil
	}
	p.state.Channel = nil
	p.state.ServerKey = nil
	return p.save(ctx)
}

func (p *MemoryPlatform) ActiveChannel(ctx context.Context) (*registry.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, OpActiveChannel); err != nil {
		return nil, err
	}
	return cloneSub(p.state.Channel), nil
}

// enter records the call, loads persisted state and applies injected failures.
// Caller holds p.mu.
func (p *MemoryPlatform) enter(ctx context.Context, op Op) error {
	p.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.failures[op]; err != nil {
		return err
	}
	if p.store == nil || p.loaded {
		return nil
	}

	var st platformState
	err := kv.GetJSON(ctx, p.store, keyPlatform, &st)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return err
	default:
		if st.Permission == "" {
			st.Permission = PermissionDefault
		}
		p.state = st
	}
	p.loaded = true
	return nil
}

func (p *MemoryPlatform) save(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	return kv.SetJSON(ctx, p.store, keyPlatform, p.state)
}

// generateKeys creates the p256dh/auth pair a browser would hand out.
func generateKeys() (registry.Keys, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return registry.Keys{}, err
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return registry.Keys{}, err
	}
	return registry.Keys{
		P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(auth),
	}, nil
}

func cloneSub(s *registry.Subscription) *registry.Subscription {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
