package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearer(t *testing.T) {
	assert.Equal(t, "abc", bearer("Bearer abc"))
	assert.Equal(t, "abc", bearer("bearer   abc "))
	assert.Equal(t, "abc", bearer("abc"))
	assert.Equal(t, "", bearer(""))
	assert.Equal(t, "Bearer", bearer("Bearer"))
}
