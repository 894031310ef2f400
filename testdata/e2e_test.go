package testdata

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	cfgpkg "sftcorpus/internal/config"
	"sftcorpus/internal/pipeline"
	"sftcorpus/pkg/contract"
)

const corpusDir = "files/corpus"

// loadConfig 以 YAML 文本构造配置（与 CLI 同一路径：默认值 < 文件）。
func loadConfig(t *testing.T, yamlText string) cfgpkg.Config {
	t.Helper()
	over, err := cfgpkg.LoadYAML([]byte(yamlText))
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return cfgpkg.Merge(cfgpkg.Defaults(), over)
}

func build(t *testing.T, cfg cfgpkg.Config) (pipeline.Summary, error) {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	set.RunID = "e2e"
	return pipeline.Build(context.Background(), comp, set, nil, nil)
}

func readRecords(t *testing.T, path string) []contract.Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var out []contract.Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r contract.Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func skipCounts(s pipeline.Summary) map[string]int64 {
	m := map[string]int64{}
	for _, c := range s.Skipped {
		m[c.Key] = c.N
	}
	return m
}

func TestEndToEnd(t *testing.T) {
	out := t.TempDir()
	cfg := loadConfig(t, fmt.Sprintf(`
input_dir: %s
references: [files/reference.csv]
output_dir: %s
val_ratio: 0
test_ratio: 0
workers: 3
logging: {level: error}
`, corpusDir, out))

	sum, err := build(t, cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sum.Snippets != 7 || sum.References != 2 || sum.Duplicates != 1 || sum.Unique != 8 {
		t.Fatalf("summary=%+v", sum)
	}
	wantSkips := map[string]int64{
		string(contract.SkipUndecodable):  1,
		string(contract.SkipEmptyField):   1,
		string(contract.SkipMalformedRow): 1,
	}
	if diff := cmp.Diff(wantSkips, skipCounts(sum)); diff != "" {
		t.Fatalf("skips (-want +got):\n%s", diff)
	}

	recs := readRecords(t, filepath.Join(out, "train.jsonl"))
	if len(recs) != 8 {
		t.Fatalf("train 行数=%d", len(recs))
	}
	byPath := map[string]contract.Record{}
	for _, r := range recs {
		if r.Metadata.ContentHash == "" {
			t.Fatalf("缺少 content_hash: %+v", r.Metadata)
		}
		byPath[r.Metadata.SourcePath] = r
	}
	if _, dup := byPath["Misc/hello_copy.ahk"]; dup {
		t.Fatalf("重复内容应只保留首个（GUI/hello.ahk）")
	}

	got := byPath["Hotkeys/always_on_top.ahk"]
	got.Metadata.ContentHash = ""
	want := contract.Record{
		Prompt: "You are maintaining a knowledge base of AutoHotkey examples.\n" +
			"Category: Hotkeys\n" +
			"Example ID: always_on_top\n" +
			"Source Path: Hotkeys/always_on_top.ahk\n" +
			"Return the exact AutoHotkey snippet associated with this reference.",
		Response: "; Toggle always-on-top\n^SPACE:: Winset, Alwaysontop, , A\n",
		Metadata: contract.Metadata{
			SourcePath: "Hotkeys/always_on_top.ahk",
			Category:   "Hotkeys",
			Filename:   "always_on_top.ahk",
			LineCount:  contract.IntPtr(2),
			RecordType: contract.RecordSnippet,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snippet record (-want +got):\n%s", diff)
	}

	if r := byPath["Hotkeys/launch_site.ahk"]; strings.Contains(r.Response, "\r") {
		t.Fatalf("CRLF 未归一: %q", r.Response)
	}
	if r := byPath["root_level.ahk"]; r.Metadata.Category != "corpus" {
		t.Fatalf("根层级类别=%q", r.Metadata.Category)
	}
	if r, ok := byPath["Misc/empty.ahk"]; !ok || r.Response != "" {
		t.Fatalf("空文件应保留: %+v", r)
	}

	ref := byPath["reference.csv#MsgBox"]
	if ref.Metadata.RecordType != contract.RecordReference || ref.Metadata.Category != "Function" {
		t.Fatalf("reference metadata=%+v", ref.Metadata)
	}
	wantResp := "Displays the specified text in a small window.\n" +
		"Signature Type: Built-in\nReturn Type: String\nParameters: Text, Title, Options\n"
	if ref.Response != wantResp {
		t.Fatalf("reference response=%q", ref.Response)
	}
	if !strings.Contains(ref.Prompt, "Category Path: Commands/Output") {
		t.Fatalf("reference prompt=%q", ref.Prompt)
	}

	// 会话格式：逐行对应且内容逐字节保留
	chatOut := t.TempDir()
	w, chat, err := cfgpkg.AssembleFormat(cfg, chatOut, "")
	if err != nil {
		t.Fatalf("assemble format: %v", err)
	}
	st, err := pipeline.Format(context.Background(), w, chat, filepath.Join(out, "train.jsonl"), "train_chat.jsonl", nil, nil)
	if err != nil || st.Written != 8 {
		t.Fatalf("format: %v %+v", err, st)
	}
	f, err := os.Open(filepath.Join(chatOut, "train_chat.jsonl"))
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for i := 0; sc.Scan(); i++ {
		var c contract.ConversationRecord
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			t.Fatalf("decode chat: %v", err)
		}
		if c.Messages[1].Content != recs[i].Prompt || c.Messages[2].Content != recs[i].Response {
			t.Fatalf("第 %d 行内容不一致", i)
		}
	}
}

// Scenario B 的比例在本语料上：8 条唯一记录，0.25/0.25 → 4/2/2
func TestEndToEndSplit(t *testing.T) {
	out := t.TempDir()
	cfg := loadConfig(t, fmt.Sprintf(`
input_dir: %s
references: [files/reference.csv]
output_dir: %s
val_ratio: 0.25
test_ratio: 0.25
seed: 11
`, corpusDir, out))
	sum, err := build(t, cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for name, want := range map[string]int{"train.jsonl": 4, "val.jsonl": 2, "test.jsonl": 2} {
		if got := len(readRecords(t, filepath.Join(out, name))); got != want {
			t.Fatalf("%s: got %d want %d", name, got, want)
		}
	}
	if sum.Total().Lines != sum.Unique {
		t.Fatalf("计数不守恒: %+v", sum)
	}
}

// Scenario C: 参考表缺少 Name 列
func TestEndToEndSchemaSkip(t *testing.T) {
	out := t.TempDir()
	cfg := loadConfig(t, fmt.Sprintf(`
input_dir: %s
references: [files/noname.csv]
output_dir: %s
`, corpusDir, out))
	sum, err := build(t, cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sum.References != 0 || sum.Snippets != 7 || skipCounts(sum)[string(contract.SkipSchema)] != 1 {
		t.Fatalf("summary=%+v", sum)
	}
}

// Scenario D: 空输入且无参考表 → 三个空文件
func TestEndToEndEmpty(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	cfg := loadConfig(t, fmt.Sprintf("input_dir: %s\noutput_dir: %s\n", in, out))
	if _, err := build(t, cfg); err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, name := range []string{"train.jsonl", "val.jsonl", "test.jsonl"} {
		st, err := os.Stat(filepath.Join(out, name))
		if err != nil || st.Size() != 0 {
			t.Fatalf("%s: %v size=%v", name, err, st)
		}
	}
}

// Scenario E: dry-run 不创建/修改任何输出文件，统计与真实运行一致
func TestEndToEndDryRun(t *testing.T) {
	out := t.TempDir()
	stale := filepath.Join(out, "train.jsonl")
	if err := os.WriteFile(stale, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	text := fmt.Sprintf("input_dir: %s\nreferences: [files/reference.csv]\noutput_dir: %s\nmanifest: %s\n",
		corpusDir, out, filepath.Join(out, "manifest.db"))

	dryCfg := loadConfig(t, text+"dry_run: true\n")
	dry, err := build(t, dryCfg)
	if err != nil {
		t.Fatalf("dry build: %v", err)
	}
	entries, err := os.ReadDir(out)
	if err != nil || len(entries) != 1 {
		t.Fatalf("dry-run 改动了输出目录: %v %v", err, entries)
	}
	if b, _ := os.ReadFile(stale); string(b) != "stale\n" {
		t.Fatalf("dry-run 修改了已有文件")
	}

	live, err := build(t, loadConfig(t, text))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	opts := cmp.Options{cmpIgnoreRun()}
	if diff := cmp.Diff(live, dry, opts...); diff != "" {
		t.Fatalf("dry-run 统计与真实运行不一致 (-live +dry):\n%s", diff)
	}
}

// cmpIgnoreRun 忽略与运行身份相关的字段。
func cmpIgnoreRun() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		switch p.Last().String() {
		case ".DryRun", ".Duration", ".Drift", ".PreviousRun", ".RunID":
			return true
		}
		return false
	}, cmp.Ignore())
}
