package registry

import (
	"fmt"
	"strconv"
)

// Digest is the e-mail digest frequency.
type Digest string

const (
	DigestOff    Digest = "off"
	DigestDaily  Digest = "daily"
	DigestWeekly Digest = "weekly"
)

func (d Digest) Valid() bool {
	return d == DigestOff || d == DigestDaily || d == DigestWeekly
}

// Channel is a delivery channel gated by preferences.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Field names a single preference switch. Values match the JSON keys.
type Field string

const (
	FieldEnabled       Field = "enabled"
	FieldPush          Field = "push"
	FieldEmail         Field = "email"
	FieldBillReminders Field = "billReminders"
	FieldPostFailures  Field = "postFailures"
	FieldMentions      Field = "mentions"
	FieldMarketing     Field = "marketing"
	FieldDigest        Field = "digest"
)

// Fields lists every preference field.
var Fields = []Field{
	FieldEnabled, FieldPush, FieldEmail,
	FieldBillReminders, FieldPostFailures, FieldMentions, FieldMarketing,
	FieldDigest,
}

// Preferences is the flat record of delivery switches for one user.
// When Enabled is false nothing is delivered, but the remaining switches keep
// their stored values so re-enabling restores them.
type Preferences struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Push          bool   `json:"push" yaml:"push"`
	Email         bool   `json:"email" yaml:"email"`
	BillReminders bool   `json:"billReminders" yaml:"billReminders"`
	PostFailures  bool   `json:"postFailures" yaml:"postFailures"`
	Mentions      bool   `json:"mentions" yaml:"mentions"`
	Marketing     bool   `json:"marketing" yaml:"marketing"`
	Digest        Digest `json:"digest" yaml:"digest"`
}

// DefaultPreferences is what a user gets before the server says otherwise.
func DefaultPreferences() Preferences {
	return Preferences{
		Enabled:       true,
		Push:          true,
		Email:         true,
		BillReminders: true,
		PostFailures:  true,
		Mentions:      true,
		Marketing:     false,
		Digest:        DigestOff,
	}
}

// Allows reports whether a notification of kind may be delivered on channel.
func (p Preferences) Allows(kind Kind, channel Channel) bool {
	if !p.Enabled {
		return false
	}

	switch channel {
	case ChannelPush:
		if !p.Push {
			return false
		}
	case ChannelEmail:
		if !p.Email {
			return false
		}
	default:
		return false
	}

	switch kind {
	case KindBillReminder:
		return p.BillReminders
	case KindPostFailed:
		return p.PostFailures
	case KindMention:
		return p.Mentions
	case KindMarketing:
		return p.Marketing
	default:
		return true
	}
}

// PreferencesPatch is a partial update. Nil fields are left untouched.
type PreferencesPatch struct {
	Enabled       *bool   `json:"enabled,omitempty"`
	Push          *bool   `json:"push,omitempty"`
	Email         *bool   `json:"email,omitempty"`
	BillReminders *bool   `json:"billReminders,omitempty"`
	PostFailures  *bool   `json:"postFailures,omitempty"`
	Mentions      *bool   `json:"mentions,omitempty"`
	Marketing     *bool   `json:"marketing,omitempty"`
	Digest        *Digest `json:"digest,omitempty"`
}

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool { return &v }

// DigestPtr returns a pointer to d, for building patches.
func DigestPtr(d Digest) *Digest { return &d }

// Fields returns the fields set in the patch, in Fields order.
func (p PreferencesPatch) Fields() []Field {
	var out []Field
	for _, f := range Fields {
		if f == FieldDigest {
			if p.Digest != nil {
				out = append(out, f)
			}
			continue
		}
		if *p.boolFieldPtr(f) != nil {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p PreferencesPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Validate rejects unknown enum values.
func (p PreferencesPatch) Validate() error {
	if p.Digest != nil && !p.Digest.Valid() {
		return fmt.Errorf("%w: unknown digest %q", ErrInvalidRequest, *p.Digest)
	}
	return nil
}

// ApplyTo returns prefs with the patch merged in.
func (p PreferencesPatch) ApplyTo(prefs Preferences) Preferences {
	if p.Enabled != nil {
		prefs.Enabled = *p.Enabled
	}
	if p.Push != nil {
		prefs.Push = *p.Push
	}
	if p.Email != nil {
		prefs.Email = *p.Email
	}
	if p.BillReminders != nil {
		prefs.BillReminders = *p.BillReminders
	}
	if p.PostFailures != nil {
		prefs.PostFailures = *p.PostFailures
	}
	if p.Mentions != nil {
		prefs.Mentions = *p.Mentions
	}
	if p.Marketing != nil {
		prefs.Marketing = *p.Marketing
	}
	if p.Digest != nil {
		prefs.Digest = *p.Digest
	}
	return prefs
}

// PatchFrom builds a patch that sets the given fields to their values in prefs.
func PatchFrom(prefs Preferences, fields ...Field) PreferencesPatch {
	var p PreferencesPatch
	for _, f := range fields {
		switch f {
		case FieldEnabled:
			p.Enabled = Bool(prefs.Enabled)
		case FieldPush:
			p.Push = Bool(prefs.Push)
		case FieldEmail:
			p.Email = Bool(prefs.Email)
		case FieldBillReminders:
			p.BillReminders = Bool(prefs.BillReminders)
		case FieldPostFailures:
			p.PostFailures = Bool(prefs.PostFailures)
		case FieldMentions:
			p.Mentions = Bool(prefs.Mentions)
		case FieldMarketing:
			p.Marketing = Bool(prefs.Marketing)
		case FieldDigest:
			p.Digest = DigestPtr(prefs.Digest)
		}
	}
	return p
}

// Set parses value into field. Used by command line tooling.
func (p *PreferencesPatch) Set(field Field, value string) error {
	if field == FieldDigest {
		d := Digest(value)
		if !d.Valid() {
			return fmt.Errorf("%w: unknown digest %q", ErrInvalidRequest, value)
		}
		p.Digest = &d
		return nil
	}

	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRequest, field, err)
	}

	ptr := p.boolFieldPtr(field)
	if ptr == nil {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidRequest, field)
	}
	*ptr = &v
	return nil
}

func (p *PreferencesPatch) boolFieldPtr(f Field) **bool {
	switch f {
	case FieldEnabled:
		return &p.Enabled
	case FieldPush:
		return &p.Push
	case FieldEmail:
		return &p.Email
	case FieldBillReminders:
		return &p.BillReminders
	case FieldPostFailures:
		return &p.PostFailures
	case FieldMentions:
		return &p.Mentions
	case FieldMarketing:
		return &p.Marketing
	}
	return nil
}
