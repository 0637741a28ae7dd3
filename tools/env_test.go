package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetenvDefault(t *testing.T) {
	t.Setenv("RGNB_TEST_VALUE", "")
	assert.Equal(t, "fallback", GetenvDefault("RGNB_TEST_VALUE", "fallback"))

	t.Setenv("RGNB_TEST_VALUE", "gnb.yaml")
	assert.Equal(t, "gnb.yaml", GetenvDefault("RGNB_TEST_VALUE", "fallback"))
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("RGNB_TEST_TIMEOUT", "")
	assert.Equal(t, 3*time.Second, GetenvDuration("RGNB_TEST_TIMEOUT", 3*time.Second))

	t.Setenv("RGNB_TEST_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, GetenvDuration("RGNB_TEST_TIMEOUT", 3*time.Second))

	t.Setenv("RGNB_TEST_TIMEOUT", "soon")
	assert.Equal(t, 3*time.Second, GetenvDuration("RGNB_TEST_TIMEOUT", 3*time.Second))
}
