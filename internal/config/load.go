package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"sftcorpus/pkg/contract"
)

// EnvPrefix 环境变量前缀。
const EnvPrefix = "SFTCORPUS_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		InputDir:  "data/raw_scripts",
		OutputDir: "data/prepared",
		Files:     Files{Train: "train.jsonl", Val: "val.jsonl", Test: "test.jsonl"},
		ValRatio:  ptr(0.1),
		TestRatio: ptr(0.1),
		Seed:      ptr(int64(2025)),
		Workers:   4,
		Subject:   "AutoHotkey",
		Logging:   Logging{Level: "info"},
		Components: Components{
			Reader: "fs",
			Writer: "fs",
			Table:  "csv",
			Chat:   "harmony",
		},
	}
}

// LoadFile 解析配置文件（严格拒绝未知字段）。
// .yaml/.yml 先经 yaml.v3 解析再转 JSON，与 JSON 共用同一套严格解码。
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", contract.ErrConfig, path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(b)
	default:
		return LoadJSON(b)
	}
}

// LoadJSON 从原始 JSON 解析 Config。
func LoadJSON(raw []byte) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return cfg, nil
}

// LoadYAML 从原始 YAML 解析 Config。空文档等价于空配置。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	if doc == nil {
		return Config{}, nil
	}
	j, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	return LoadJSON(j)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.InputDir); s != "" {
		out.InputDir = s
	}
	if len(over.References) > 0 {
		out.References = cloneStrings(over.References)
	}
	if s := strings.TrimSpace(over.OutputDir); s != "" {
		out.OutputDir = s
	}
	if over.Files.Train != "" {
		out.Files.Train = over.Files.Train
	}
	if over.Files.Val != "" {
		out.Files.Val = over.Files.Val
	}
	if over.Files.Test != "" {
		out.Files.Test = over.Files.Test
	}
	if over.ValRatio != nil {
		out.ValRatio = ptr(*over.ValRatio)
	}
	if over.TestRatio != nil {
		out.TestRatio = ptr(*over.TestRatio)
	}
	if over.Seed != nil {
		out.Seed = ptr(*over.Seed)
	}
	if over.DryRun != nil {
		out.DryRun = ptr(*over.DryRun)
	}
	if over.Workers != 0 {
		out.Workers = over.Workers
	}
	if s := strings.TrimSpace(over.Subject); s != "" {
		out.Subject = s
	}
	if s := strings.TrimSpace(over.Manifest); s != "" {
		out.Manifest = s
	}
	if over.BytesPerToken != 0 {
		out.BytesPerToken = over.BytesPerToken
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}
	if over.Logging.MaxBytes != 0 {
		out.Logging.MaxBytes = over.Logging.MaxBytes
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}
	if over.Components.Table != "" {
		out.Components.Table = over.Components.Table
	}
	if over.Components.Chat != "" {
		out.Components.Chat = over.Components.Chat
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Table) > 0 {
		out.Options.Table = cloneRaw(over.Options.Table)
	}
	if len(over.Options.Chat) > 0 {
		out.Options.Chat = cloneRaw(over.Options.Chat)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 SFTCORPUS_；集合之外的键忽略；空值视为未设置；数值无法解析时返回配置错误。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			continue
		}
		if err := applyEnv(&over, key, val); err != nil {
			return Config{}, fmt.Errorf("%w: %s%s: %v", contract.ErrConfig, EnvPrefix, key, err)
		}
	}
	return over, nil
}

func applyEnv(c *Config, key, val string) error {
	switch key {
	case "INPUT_DIR":
		c.InputDir = val
	case "OUTPUT_DIR":
		c.OutputDir = val
	case "REFERENCES":
		c.References = splitComma(val)
	case "TRAIN_FILE":
		c.Files.Train = val
	case "VAL_FILE":
		c.Files.Val = val
	case "TEST_FILE":
		c.Files.Test = val
	case "VAL_RATIO", "TEST_RATIO":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		if key == "VAL_RATIO" {
			c.ValRatio = &f
		} else {
			c.TestRatio = &f
		}
	case "SEED":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		c.Seed = &n
	case "DRY_RUN":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		c.DryRun = &b
	case "WORKERS":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.Workers = n
	case "BYTES_PER_TOKEN":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.BytesPerToken = n
	case "SUBJECT":
		c.Subject = val
	case "MANIFEST":
		c.Manifest = val
	case "LOG_LEVEL":
		c.Logging.Level = val
	case "LOG_DIR":
		c.Logging.Dir = val
	case "COMPONENTS_READER":
		c.Components.Reader = val
	case "COMPONENTS_WRITER":
		c.Components.Writer = val
	case "COMPONENTS_TABLE":
		c.Components.Table = val
	case "COMPONENTS_CHAT":
		c.Components.Chat = val
	case "OPTIONS_READER_JSON":
		c.Options.Reader = json.RawMessage(val)
	case "OPTIONS_WRITER_JSON":
		c.Options.Writer = json.RawMessage(val)
	case "OPTIONS_TABLE_JSON":
		c.Options.Table = json.RawMessage(val)
	case "OPTIONS_CHAT_JSON":
		c.Options.Chat = json.RawMessage(val)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
