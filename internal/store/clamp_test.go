package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 0, ClampProgress(-1))
	assert.Equal(t, 0, ClampProgress(0))
	assert.Equal(t, 42, ClampProgress(42))
	assert.Equal(t, 100, ClampProgress(100))
	assert.Equal(t, 100, ClampProgress(250))
}
