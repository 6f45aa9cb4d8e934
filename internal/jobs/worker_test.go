package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 8*time.Second, backoff(3))
	assert.Equal(t, 600*time.Second, backoff(20))
}
