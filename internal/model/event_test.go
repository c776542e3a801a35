package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestApplyRSVP(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	alice, bob := uuid.New(), uuid.New()

	t.Run("yes appends once", func(t *testing.T) {
		e := &MobileClinicEvent{Capacity: 2}
		assert.False(t, e.ApplyRSVP(alice, RSVPYes, now))
		assert.False(t, e.ApplyRSVP(alice, RSVPYes, now.Add(time.Minute)))
		assert.Len(t, e.RSVPs, 1)
		assert.Equal(t, now.Add(time.Minute), e.RSVPs[0].RespondedAt)
		assert.True(t, e.HasRSVP(alice))
	})

	t.Run("no and cancel remove", func(t *testing.T) {
		e := &MobileClinicEvent{Capacity: 2}
		e.ApplyRSVP(alice, RSVPYes, now)
		e.ApplyRSVP(bob, RSVPYes, now)

		assert.False(t, e.ApplyRSVP(alice, RSVPNo, now))
		assert.False(t, e.HasRSVP(alice))
		assert.False(t, e.ApplyRSVP(bob, RSVPCancel, now))
		assert.Empty(t, e.RSVPs)

		// removing an absent patient is a no-op
		assert.False(t, e.ApplyRSVP(bob, RSVPCancel, now))
		assert.Empty(t, e.RSVPs)
	})

	t.Run("full event rejects newcomers only", func(t *testing.T) {
		e := &MobileClinicEvent{Capacity: 1}
		assert.False(t, e.ApplyRSVP(alice, RSVPYes, now))
		assert.True(t, e.ApplyRSVP(bob, RSVPYes, now))
		assert.False(t, e.HasRSVP(bob))
		assert.False(t, e.ApplyRSVP(alice, RSVPYes, now))
		assert.Len(t, e.RSVPs, 1)
	})
}

func TestParseRSVPAction(t *testing.T) {
	tests := []struct {
		in   string
		want RSVPAction
		ok   bool
	}{
		{"yes", RSVPYes, true},
		{" YES ", RSVPYes, true},
		{"no", RSVPNo, true},
		{"cancel", RSVPCancel, true},
		{"maybe", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRSVPAction(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSlotStatusSettable(t *testing.T) {
	assert.True(t, SlotStatusOpen.Settable())
	assert.True(t, SlotStatusHeld.Settable())
	assert.True(t, SlotStatusClosed.Settable())
	assert.False(t, SlotStatusBooked.Settable())
	assert.True(t, SlotStatusBooked.Valid())
	assert.False(t, SlotStatus("free").Valid())
}

func TestReferralStatusActive(t *testing.T) {
	assert.True(t, ReferralStatusBooked.Active())
	assert.True(t, ReferralStatusConfirmed.Active())
	assert.False(t, ReferralStatusCancelled.Active())
}
