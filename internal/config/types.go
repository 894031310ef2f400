package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
// 指针字段区分“未设置”与显式零值（例如 val_ratio: 0）。
type Config struct {
	InputDir   string   `json:"input_dir"`
	References []string `json:"references"`
	OutputDir  string   `json:"output_dir"`
	Files      Files    `json:"files"`

	ValRatio  *float64 `json:"val_ratio"`
	TestRatio *float64 `json:"test_ratio"`
	Seed      *int64   `json:"seed"`
	DryRun    *bool    `json:"dry_run"`

	Workers int    `json:"workers"`
	Subject string `json:"subject"`
	// Manifest: bbolt 文件路径；为空不记录划分。
	Manifest string `json:"manifest"`
	// BytesPerToken: 摘要中 token 估算系数；0 使用默认 4。
	BytesPerToken int     `json:"bytes_per_token"`
	Logging       Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Files: 三个分区的文件名（相对 output_dir）。
type Files struct {
	Train string `json:"train"`
	Val   string `json:"val"`
	Test  string `json:"test"`
}

// Logging: 等级与可选的轮转文件目录；目录为空时写 stderr。
type Logging struct {
	Level    string `json:"level"`
	Dir      string `json:"dir"`
	MaxBytes int64  `json:"max_bytes"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader string `json:"reader"`
	Writer string `json:"writer"`
	Table  string `json:"table"`
	Chat   string `json:"chat"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader json.RawMessage `json:"reader,omitempty"`
	Writer json.RawMessage `json:"writer,omitempty"`
	Table  json.RawMessage `json:"table,omitempty"`
	Chat   json.RawMessage `json:"chat,omitempty"`
}

// EffectiveDryRun 返回 dry_run 的生效值（未设置为 false）。
func (c Config) EffectiveDryRun() bool { return c.DryRun != nil && *c.DryRun }
