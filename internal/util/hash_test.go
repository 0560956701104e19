package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentKey(t *testing.T) {
	assert.Equal(t, ContentKey("384", "encrypt data"), ContentKey("384", "encrypt data"))
	assert.NotEqual(t, ContentKey("ab", "c"), ContentKey("a", "bc"))
	assert.NotEqual(t, ContentKey("384", "x"), ContentKey("768", "x"))
	assert.Len(t, ContentKey(), 64)
}
