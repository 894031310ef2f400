package discard

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDiscardCounts 计数且不落盘
func TestDiscardCounts(t *testing.T) {
	d := New(nil)
	require.NoError(t, d.Write(context.Background(), "train.jsonl", strings.NewReader("abc\n")))
	n, ok := d.Size("train.jsonl")
	assert.True(t, ok)
	assert.EqualValues(t, 4, n)
	_, ok = d.Size("val.jsonl")
	assert.False(t, ok)
}

// TestDiscardUpstreamError 上游错误上抛
func TestDiscardUpstreamError(t *testing.T) {
	pr, pw := io.Pipe()
	go func() { _ = pw.CloseWithError(errors.New("boom")) }()
	err := New(nil).Write(context.Background(), "x", pr)
	assert.EqualError(t, err, "boom")
}

// TestDiscardCanceled 取消上抛
func TestDiscardCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New(nil).Write(ctx, "x", strings.NewReader("a")), context.Canceled)
}
