package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sftcorpus/plugins/writer/discard"
	fswriter "sftcorpus/plugins/writer/filesystem"
	"sftcorpus/pkg/contract"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sample() []contract.Record {
	return []contract.Record{
		{
			Prompt:   "Category: Gui",
			Response: "Gui, Add, Text,, <b>&</b>\n",
			Metadata: contract.Metadata{SourcePath: "Gui/a.ahk", Category: "Gui", Filename: "a.ahk", LineCount: contract.IntPtr(1), RecordType: contract.RecordSnippet, ContentHash: "h1"},
		},
		{
			Prompt:   "Element Name: MsgBox",
			Response: "Shows a message.\n",
			Metadata: contract.Metadata{SourcePath: "e.csv#MsgBox", Category: "Function", RecordType: contract.RecordReference, ContentHash: "h2", ElementName: "MsgBox", SourceTable: "e.csv"},
		},
	}
}

func newFS(t *testing.T) (*fswriter.FS, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := fswriter.New(&fswriter.Options{OutputDir: dir})
	require.NoError(t, err)
	return w, dir
}

// TestWriteJSONL 每行一个对象，顺序与输入一致，内容逐字节往返。
func TestWriteJSONL(t *testing.T) {
	w, dir := newFS(t)
	recs := sample()
	st, err := New(w, nil).Write(context.Background(), "train.jsonl", recs)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Lines)
	assert.Positive(t, st.Tokens)

	b, err := os.ReadFile(filepath.Join(dir, "train.jsonl"))
	require.NoError(t, err)
	assert.EqualValues(t, len(b), st.Bytes)
	assert.Contains(t, string(b), "<b>&</b>", "HTML escaping must be off")

	var got []contract.Record
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var r contract.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		got = append(got, r)
	}
	require.NoError(t, sc.Err())
	if diff := cmp.Diff(recs, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, strings.Count(string(b), "\n"))
}

// TestWriteEmpty 空分区产出存在的空文件。
func TestWriteEmpty(t *testing.T) {
	w, dir := newFS(t)
	st, err := New(w, nil).Write(context.Background(), "val.jsonl", nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
	info, err := os.Stat(filepath.Join(dir, "val.jsonl"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

// TestWriteDiscard dry-run：统计与真实写出一致，不产生文件。
func TestWriteDiscard(t *testing.T) {
	fw, dir := newFS(t)
	want, err := New(fw, nil).Write(context.Background(), "t.jsonl", sample())
	require.NoError(t, err)

	d := discard.New(nil)
	dry, err := New(d, nil).Write(context.Background(), "t.jsonl", sample())
	require.NoError(t, err)
	assert.Equal(t, want, dry)
	n, ok := d.Size("t.jsonl")
	require.True(t, ok)
	assert.Equal(t, want.Bytes, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type failWriter struct{ err error }

func (f failWriter) Write(_ context.Context, _ contract.ArtifactID, r io.Reader) error {
	buf := make([]byte, 8)
	_, _ = r.Read(buf)
	return f.err
}

// TestWriteWriterError Writer 失败：错误携带工件名并可 errors.Is。
func TestWriteWriterError(t *testing.T) {
	boom := errors.New("disk full")
	recs := make([]contract.Record, 500)
	for i := range recs {
		recs[i] = contract.Record{Prompt: strings.Repeat("p", 100), Response: "r"}
	}
	_, err := New(failWriter{err: boom}, nil).Write(context.Background(), "test.jsonl", recs)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "test.jsonl")
}

// TestWriteCanceled 取消后不留下目标文件。
func TestWriteCanceled(t *testing.T) {
	w, dir := newFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(w, nil).Write(ctx, "train.jsonl", sample())
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(dir, "train.jsonl"))
	assert.True(t, os.IsNotExist(statErr))
}

// TestStreamFillError fill 失败：原子写入不产生目标文件。
func TestStreamFillError(t *testing.T) {
	w, dir := newFS(t)
	bad := errors.New("encode failed")
	_, err := Stream(context.Background(), w, "x.jsonl", func(enc *Encoder) error {
		require.NoError(t, enc.Encode(map[string]int{"a": 1}))
		return bad
	})
	assert.ErrorIs(t, err, bad)
	_, statErr := os.Stat(filepath.Join(dir, "x.jsonl"))
	assert.True(t, os.IsNotExist(statErr))
}

// TestEncoderUnsupported 不可编码的值不写出字节。
func TestEncoderUnsupported(t *testing.T) {
	var buf bytes.Buffer
	enc := newEncoder(&buf)
	require.Error(t, enc.Encode(make(chan int)))
	assert.Zero(t, buf.Len())
	assert.Zero(t, enc.Lines())
}

func TestStatsAdd(t *testing.T) {
	s := Stats{Lines: 1, Bytes: 10, Tokens: 3}
	s.Add(Stats{Lines: 2, Bytes: 5, Tokens: 1})
	assert.Equal(t, Stats{Lines: 3, Bytes: 15, Tokens: 4}, s)
}

func BenchmarkWriteDiscard(b *testing.B) {
	recs := make([]contract.Record, 1000)
	for i := range recs {
		recs[i] = contract.Record{Prompt: strings.Repeat("p", 200), Response: strings.Repeat("r\n", 50)}
	}
	w := New(discard.New(nil), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := w.Write(context.Background(), "bench.jsonl", recs); err != nil {
			b.Fatal(err)
		}
	}
}
