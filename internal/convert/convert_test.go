package convert

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sftcorpus/internal/dataset"
	"sftcorpus/plugins/chat/harmony"
	"sftcorpus/plugins/writer/discard"
	fswriter "sftcorpus/plugins/writer/filesystem"
	"sftcorpus/pkg/contract"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const system = "Reasoning medium. You are a helpful assistant."

func newFormatter(t *testing.T, opts Options) (*Formatter, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := fswriter.New(&fswriter.Options{OutputDir: dir})
	require.NoError(t, err)
	return New(w, harmony.WithSystem(system), opts), dir
}

func readConversations(t *testing.T, path string) []contract.ConversationRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []contract.ConversationRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<24)
	for sc.Scan() {
		var c contract.ConversationRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &c))
		out = append(out, c)
	}
	require.NoError(t, sc.Err())
	return out
}

// TestFormatRoundTrip dataset 写出的记录经转换后 user/assistant 与原 prompt/response 逐字节一致。
func TestFormatRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := fswriter.New(&fswriter.Options{OutputDir: dir})
	require.NoError(t, err)
	recs := []contract.Record{
		{Prompt: "Category: Gui", Response: "  leading and trailing  \n\n", Metadata: contract.Metadata{SourcePath: "Gui/a.ahk", RecordType: contract.RecordSnippet}},
		{Prompt: "p2", Response: "", Metadata: contract.Metadata{SourcePath: "b.ahk", RecordType: contract.RecordSnippet}},
		{Prompt: "统一码 <tag>", Response: "line1\r\nline2\t\"q\"", Metadata: contract.Metadata{SourcePath: "c.ahk", RecordType: contract.RecordSnippet}},
	}
	_, err = dataset.New(w, nil).Write(context.Background(), "train.jsonl", recs)
	require.NoError(t, err)

	f := New(w, harmony.WithSystem(system), Options{})
	st, err := f.Format(context.Background(), filepath.Join(dir, "train.jsonl"), "train_harmony.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Read)
	assert.Equal(t, 3, st.Written)
	assert.Empty(t, st.Skipped)

	got := readConversations(t, filepath.Join(dir, "train_harmony.jsonl"))
	require.Len(t, got, len(recs))
	for i, c := range got {
		want := []contract.Message{
			{Role: contract.RoleSystem, Content: system},
			{Role: contract.RoleUser, Content: recs[i].Prompt},
			{Role: contract.RoleAssistant, Content: recs[i].Response},
		}
		if diff := cmp.Diff(want, c.Messages); diff != "" {
			t.Fatalf("record %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

// TestFormatSkips 空白行忽略；非法行与缺字段行计数跳过，其余照常写出。
func TestFormatSkips(t *testing.T) {
	var skips []contract.Skip
	f, dir := newFormatter(t, Options{OnSkip: func(s contract.Skip) { skips = append(skips, s) }})
	in := strings.Join([]string{
		`{"prompt":"a","response":"1"}`,
		``,
		`   `,
		`not json`,
		`{"prompt":"b"}`,
		`{"prompt":null,"response":"x"}`,
		`[1,2]`,
		`{"prompt":"c","response":"3","metadata":{"x":1}}`,
	}, "\n")
	st, err := f.FormatReader(context.Background(), "val.jsonl", strings.NewReader(in), "out.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 6, st.Read)
	assert.Equal(t, 2, st.Written)
	assert.Equal(t, map[contract.SkipReason]int{contract.SkipMalformedLine: 2, contract.SkipMissingField: 2}, st.Skipped)

	require.Len(t, skips, 4)
	assert.Equal(t, "val.jsonl:4", skips[0].Source)
	assert.Equal(t, contract.SkipMalformedLine, skips[0].Reason)
	assert.ErrorIs(t, skips[1], contract.ErrMissingField)

	got := readConversations(t, filepath.Join(dir, "out.jsonl"))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Messages[1].Content)
	assert.Equal(t, "3", got[1].Messages[2].Content)
}

// TestFormatLongLine 超过常见缓冲区的长行完整保留。
func TestFormatLongLine(t *testing.T) {
	f, dir := newFormatter(t, Options{})
	long := strings.Repeat("x", 200_000)
	b, err := json.Marshal(map[string]string{"prompt": "p", "response": long})
	require.NoError(t, err)
	st, err := f.FormatReader(context.Background(), "in", strings.NewReader(string(b)), "out.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Written)
	got := readConversations(t, filepath.Join(dir, "out.jsonl"))
	require.Len(t, got, 1)
	assert.Equal(t, long, got[0].Messages[2].Content)
}

// TestFormatEmptyInput 空输入产出空文件。
func TestFormatEmptyInput(t *testing.T) {
	f, dir := newFormatter(t, Options{})
	st, err := f.FormatReader(context.Background(), "in", strings.NewReader(""), "out.jsonl")
	require.NoError(t, err)
	assert.Zero(t, st.Written)
	info, err := os.Stat(filepath.Join(dir, "out.jsonl"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

// TestFormatMissingInput 输入不存在：配置错误，不写出。
func TestFormatMissingInput(t *testing.T) {
	f, dir := newFormatter(t, Options{})
	_, err := f.Format(context.Background(), filepath.Join(dir, "nope.jsonl"), "out.jsonl")
	assert.ErrorIs(t, err, contract.ErrConfig)
	_, statErr := os.Stat(filepath.Join(dir, "out.jsonl"))
	assert.True(t, os.IsNotExist(statErr))
}

// TestFormatDryRun discard 写出不落盘，统计照常。
func TestFormatDryRun(t *testing.T) {
	d := discard.New(nil)
	f := New(d, harmony.WithSystem(system), Options{})
	st, err := f.FormatReader(context.Background(), "in", strings.NewReader(`{"prompt":"a","response":"b"}`+"\n"), "out.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Written)
	n, ok := d.Size("out.jsonl")
	require.True(t, ok)
	assert.Equal(t, st.Bytes, n)
}

// TestFormatCanceled 取消后返回 context.Canceled 且不留下目标文件。
func TestFormatCanceled(t *testing.T) {
	f, dir := newFormatter(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FormatReader(ctx, "in", strings.NewReader(`{"prompt":"a","response":"b"}`), "out.jsonl")
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(dir, "out.jsonl"))
	assert.True(t, os.IsNotExist(statErr))
}
