package registry_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/registry"
)

func TestPreferences_Allows(t *testing.T) {
	defaults := registry.DefaultPreferences()

	disabled := defaults
	disabled.Enabled = false

	noPush := defaults
	noPush.Push = false

	noBills := defaults
	noBills.BillReminders = false

	tests := []struct {
		name    string
		prefs   registry.Preferences
		kind    registry.Kind
		channel registry.Channel
		want    bool
	}{
		{"defaults allow bill push", defaults, registry.KindBillReminder, registry.ChannelPush, true},
		{"marketing off by default", defaults, registry.KindMarketing, registry.ChannelPush, false},
		{"system always on", defaults, registry.KindSystem, registry.ChannelEmail, true},
		{"master switch wins", disabled, registry.KindSystem, registry.ChannelPush, false},
		{"channel off", noPush, registry.KindMention, registry.ChannelPush, false},
		{"other channel still on", noPush, registry.KindMention, registry.ChannelEmail, true},
		{"category off", noBills, registry.KindBillReminder, registry.ChannelEmail, false},
		{"unknown channel", defaults, registry.KindSystem, registry.Channel("sms"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.prefs.Allows(tt.kind, tt.channel))
		})
	}
}

func TestPreferences_MasterSwitchKeepsValues(t *testing.T) {
	prefs := registry.DefaultPreferences()
	prefs = registry.PreferencesPatch{Enabled: registry.Bool(false)}.ApplyTo(prefs)
	prefs = registry.PreferencesPatch{Enabled: registry.Bool(true)}.ApplyTo(prefs)
	assert.Equal(t, registry.DefaultPreferences(), prefs)
}

func TestPreferencesPatch_ApplyTouchesOnlySetFields(t *testing.T) {
	prefs := registry.DefaultPreferences()
	patch := registry.PreferencesPatch{Mentions: registry.Bool(false)}

	got := patch.ApplyTo(prefs)
	want := prefs
	want.Mentions = false
	assert.Equal(t, want, got)
	assert.True(t, prefs.Mentions, "input is not mutated")
}

func TestPreferencesPatch_Fields(t *testing.T) {
	assert.True(t, registry.PreferencesPatch{}.IsEmpty())

	patch := registry.PreferencesPatch{
		Digest:   registry.DigestPtr(registry.DigestDaily),
		Enabled:  registry.Bool(true),
		Mentions: registry.Bool(false),
	}
	assert.Equal(t, []registry.Field{registry.FieldEnabled, registry.FieldMentions, registry.FieldDigest}, patch.Fields())
	assert.False(t, patch.IsEmpty())
}

func TestPatchFrom(t *testing.T) {
	prefs := registry.DefaultPreferences()
	prefs.Digest = registry.DigestWeekly

	inverse := registry.PatchFrom(prefs, registry.FieldPush, registry.FieldDigest)
	assert.Equal(t, []registry.Field{registry.FieldPush, registry.FieldDigest}, inverse.Fields())

	changed := registry.PreferencesPatch{Push: registry.Bool(false), Digest: registry.DigestPtr(registry.DigestOff)}.ApplyTo(prefs)
	assert.Equal(t, prefs, inverse.ApplyTo(changed))
}

func TestPreferencesPatch_Set(t *testing.T) {
	var p registry.PreferencesPatch

	require.NoError(t, p.Set(registry.FieldMarketing, "true"))
	require.NoError(t, p.Set(registry.FieldEmail, "0"))
	require.NoError(t, p.Set(registry.FieldDigest, "weekly"))

	require.NotNil(t, p.Marketing)
	assert.True(t, *p.Marketing)
	require.NotNil(t, p.Email)
	assert.False(t, *p.Email)
	assert.Equal(t, registry.DigestWeekly, *p.Digest)

	assert.ErrorIs(t, p.Set(registry.FieldDigest, "monthly"), registry.ErrInvalidRequest)
	assert.ErrorIs(t, p.Set(registry.FieldPush, "maybe"), registry.ErrInvalidRequest)
	assert.ErrorIs(t, p.Set(registry.Field("colour"), "true"), registry.ErrInvalidRequest)
}

func TestPreferencesPatch_JSONOmitsUnset(t *testing.T) {
	data, err := json.Marshal(registry.PreferencesPatch{Push: registry.Bool(false)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"push":false}`, string(data))
}

func TestNormalizeLabel(t *testing.T) {
	long := ""
	for range 80 {
		long += "é"
	}

	assert.Equal(t, "Unknown device", registry.NormalizeLabel("   "))
	assert.Equal(t, "Phone", registry.NormalizeLabel("\tPhone\n"))
	// decomposed e + combining acute becomes a single rune
	assert.Equal(t, "Caf\u00e9", registry.NormalizeLabel("Cafe\u0301"))
	assert.Len(t, []rune(registry.NormalizeLabel(long)), 64)
}

func TestKind_UnmarshalJSON(t *testing.T) {
	var k registry.Kind
	require.NoError(t, json.Unmarshal([]byte(`"mention"`), &k))
	assert.Equal(t, registry.KindMention, k)

	require.NoError(t, json.Unmarshal([]byte(`"weather"`), &k))
	assert.Equal(t, registry.KindSystem, k)

	assert.Error(t, json.Unmarshal([]byte(`42`), &k))
}
