package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew_RequiresDSN(t *testing.T) {
	_, err := New(context.Background(), Options{}, zap.NewNop())
	assert.EqualError(t, err, "postgres dsn is required")
}

func TestNew_MalformedDSNIsPermanent(t *testing.T) {
	// a permanent error must stop the retry loop on the first attempt
	_, err := New(context.Background(), Options{DSN: "postgres://%zz", ConnectRetries: 5}, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse postgres dsn")
}
