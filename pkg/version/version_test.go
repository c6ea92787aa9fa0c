package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "r1234.0123456", Format(1234, "0123456789abcdef"))
	assert.Equal(t, "r5.unknown", Format(5, ""))
	assert.Equal(t, "r0.abc", Format(0, "abc"))
}

func TestStringDefault(t *testing.T) {
	assert.Equal(t, "r0.unknown", String())
}
