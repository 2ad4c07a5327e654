package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "public", c.PublicDir)
	assert.Equal(t, 3000, c.Port)
	assert.Equal(t, "VITE_", c.ConfigPrefix)
	assert.True(t, c.LogRequests)
	assert.False(t, c.Dev)
	assert.False(t, c.SPA)
}
