package config

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 目录与分区文件名取默认值；
// - 组件名采用仓库内置实现；
// - 选项包含全部键并给出中性默认值。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.References = []string{}
	cfg.DryRun = ptr(false)
	cfg.BytesPerToken = 4
	cfg.Logging.MaxBytes = 10 << 20
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules"],
  "allow_exts": []
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.Table = json.RawMessage(`{
  "comma": "",
  "lazy_quotes": false,
  "max_field_bytes": 0
}`)
	cfg.Options.Chat = json.RawMessage(`{
  "inline_system_template": "",
  "system_template_path": "",
  "reasoning": "medium"
}`)
	return cfg
}

// MarshalYAML 以块风格 YAML 输出配置，键序与 JSON 字段序一致。
// 经 JSON 中转，保证输出可被 LoadYAML 严格读回。
func MarshalYAML(c Config) ([]byte, error) {
	j, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(j, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

// blockStyle 去掉 JSON 带来的流式与双引号样式；需要引号的标量由编码器自行补上。
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		if len(n.Content) > 0 {
			n.Style &^= yaml.FlowStyle
		}
	case yaml.ScalarNode:
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// EnvTemplate 返回 .env 模板内容（全部键留空）。
func EnvTemplate() string {
	var b strings.Builder
	b.WriteString("# sftcorpus .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源\n")
	b.WriteString(EnvPrefix + "CONFIG_FILE=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{
		"INPUT_DIR", "OUTPUT_DIR", "REFERENCES",
		"TRAIN_FILE", "VAL_FILE", "TEST_FILE",
		"VAL_RATIO", "TEST_RATIO", "SEED", "DRY_RUN",
		"WORKERS", "SUBJECT", "MANIFEST", "BYTES_PER_TOKEN",
		"LOG_LEVEL", "LOG_DIR",
	} {
		b.WriteString(EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"READER", "WRITER", "TABLE", "CHAT"} {
		b.WriteString(EnvPrefix + "COMPONENTS_" + k + "=\n")
	}
	b.WriteString("\n# 组件 Options（原样 JSON）\n")
	for _, k := range []string{"READER", "WRITER", "TABLE", "CHAT"} {
		b.WriteString(EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}
	return b.String()
}
