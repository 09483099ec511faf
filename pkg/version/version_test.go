package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullVersion(t *testing.T) {
	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "dev", GetBuildID())
	assert.Equal(t, "dev (build: dev)", GetFullVersion())
}
