package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tcases := []struct {
		emoji string
		valid bool
	}{
		{emoji: "📨", valid: true},
		{emoji: "☄️", valid: true},
		{emoji: "👨‍👩", valid: true},
		{emoji: "", valid: false},
		{emoji: " \t", valid: false},
		{emoji: "abcde", valid: false},
	}

	for _, tc := range tcases {
		err := Validate(tc.emoji)
		if tc.valid {
			assert.NoError(t, err, tc.emoji)
		} else {
			assert.ErrorIs(t, err, ErrInvalidEmoji, tc.emoji)
		}
	}
}

func TestPremiumCatalogue(t *testing.T) {
	seen := make(map[string]struct{}, len(PremiumEmojis))
	for _, e := range PremiumEmojis {
		assert.NoError(t, Validate(e), e)
		_, dup := seen[e]
		assert.False(t, dup, "duplicate %s", e)
		seen[e] = struct{}{}
	}
	assert.Len(t, PremiumEmojis, 50)
}
