package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/config"
)

func TestProofKey(t *testing.T) {
	assert.Equal(t, "proofs/7/abc.png", ProofKey(7, "abc", "screen.png"))
	assert.Equal(t, "proofs/7/abc", ProofKey(7, "abc", "noext"))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.URL(ctx, "proofs/1/x.png")
	assert.Error(t, err)

	require.NoError(t, m.Put(ctx, "proofs/1/x.png", strings.NewReader("img"), 3))
	url, err := m.URL(ctx, "proofs/1/x.png")
	require.NoError(t, err)
	assert.Equal(t, "memory://proofs/1/x.png", url)
}

func TestNewS3RequiresSettings(t *testing.T) {
	_, err := NewS3(context.Background(), &config.Config{})
	assert.Error(t, err)

	_, err = NewS3(context.Background(), &config.Config{S3Bucket: "proofs"})
	assert.Error(t, err)
}
