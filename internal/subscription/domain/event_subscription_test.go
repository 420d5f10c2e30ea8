package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventSubscription_Attempts(t *testing.T) {
	assert.Equal(t, 3, (&EventSubscription{RetryCount: 3}).Attempts())
	assert.Equal(t, 1, (&EventSubscription{RetryCount: 0}).Attempts())
	assert.Equal(t, 1, (&EventSubscription{RetryCount: -2}).Attempts())
}

func TestEventSubscription_Timeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, (&EventSubscription{TimeoutSeconds: 30}).Timeout())
}
