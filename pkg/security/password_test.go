package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	h := NewBcryptHasher(4)

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "password123"))
	assert.ErrorIs(t, h.Compare(hash, "password124"), ErrMismatch)
	assert.ErrorIs(t, h.Compare("not-a-hash", "password123"), ErrMismatch)
}

func TestPasswordLength(t *testing.T) {
	h := NewBcryptHasher(4)

	_, err := h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordShort)

	_, err = h.Hash(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordLong)

	_, err = h.Hash(strings.Repeat("a", 72))
	assert.NoError(t, err)
}

func TestCompareMissingAlwaysFails(t *testing.T) {
	h := NewBcryptHasher(4)
	assert.ErrorIs(t, h.CompareMissing("referral-api-missing-account"), ErrMismatch)
	assert.ErrorIs(t, h.CompareMissing(""), ErrMismatch)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "dr.amina@clinic.ke", NormalizeEmail("  Dr.Amina@Clinic.KE "))
}

func TestOutOfRangeCostFallsBack(t *testing.T) {
	h := NewBcryptHasher(0).(*bcryptHasher)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}
