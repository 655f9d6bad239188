package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(NotFound("post not found")))
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("update: %w", Forbidden("not authorized"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("dial tcp: connection refused")))
}

func TestIsMatchesKindOnly(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("post not found"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: relation \"posts\" does not exist")
	err := Internal(cause)

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, internalMessage, MessageOf(err))
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, Internal(nil))
}

func TestInternalKeepsDomainErrors(t *testing.T) {
	domain := Conflict("email or username already exists")
	err := Internal(domain)

	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "email or username already exists", MessageOf(err))
}
