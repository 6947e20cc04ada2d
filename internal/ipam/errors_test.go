package ipam

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_TaggedAndWrapped(t *testing.T) {
	err := E(KindQuotaExceeded, "allocate_region", "region quota 10/10").WithUser("user-1")
	assert.Equal(t, KindQuotaExceeded, KindOf(err))
	assert.True(t, IsKind(err, KindQuotaExceeded))

	wrapped := fmt.Errorf("handling request: %w", err)
	assert.Equal(t, KindQuotaExceeded, KindOf(wrapped))
}

func TestKindOf_UntaggedIsUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestError_MessageCarriesContext(t *testing.T) {
	err := E(KindConflict, "convert_reservation", "reservation no longer active").
		WithUser("user-1").WithResource("res-9")

	msg := err.Error()
	assert.Contains(t, msg, "convert_reservation")
	assert.Contains(t, msg, "conflict")
	assert.Contains(t, msg, "user-1")
	assert.Contains(t, msg, "res-9")
}

func TestWrap_Unwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindTransaction, "retire_region", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransaction, KindOf(err))
}
