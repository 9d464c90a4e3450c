package dbcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierAllowList_Validate(t *testing.T) {
	allow := NewIdentifierAllowList("attractions", "hotels", "name_en")

	assert.NoError(t, allow.Validate("attractions"))
	assert.NoError(t, allow.Validate("name_en"))

	err := allow.Validate("drop table users;")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentifierNotAllowed))
}

func TestIdentifierAllowList_Add(t *testing.T) {
	allow := NewIdentifierAllowList("attractions")
	assert.Error(t, allow.Validate("restaurants"))

	allow.Add("restaurants")
	assert.NoError(t, allow.Validate("restaurants"))
}

func TestIdentifierAllowList_MustValidate_PanicsOnUnknown(t *testing.T) {
	allow := NewIdentifierAllowList("attractions")

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustValidate to panic for an unregistered identifier")
		}
	}()

	allow.MustValidate("unknown_table")
}

func TestIsRetryableCode(t *testing.T) {
	assert.True(t, IsRetryableCode("40001"))
	assert.True(t, IsRetryableCode("08006"))
	assert.False(t, IsRetryableCode("23505")) // unique_violation
}
