package harmony

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"sftcorpus/pkg/contract"
)

// DefaultSystemTemplate 默认 system 消息模板。
const DefaultSystemTemplate = "Reasoning {{.Reasoning}}. You are a helpful assistant."

// Options 为三段式会话模板的最小配置。
// - InlineSystemTemplate / SystemTemplatePath: system 消息模板（二选一，均为空时使用内置默认模板）。
// - Reasoning: 模板变量，默认 medium。
type Options struct {
	InlineSystemTemplate string `json:"inline_system_template"`
	SystemTemplatePath   string `json:"system_template_path"`
	Reasoning            string `json:"reasoning"`
}

// Template: 以固定 system 消息包裹 prompt/response。
// 模板在构造期渲染一次，运行期不做 I/O。
type Template struct {
	system string
}

// New 创建会话模板。
func New(opts *Options) (*Template, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	src := DefaultSystemTemplate
	if o.InlineSystemTemplate != "" {
		src = o.InlineSystemTemplate
	} else if o.SystemTemplatePath != "" {
		b, err := os.ReadFile(o.SystemTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("system template read: %w", err)
		}
		src = strings.TrimRight(string(b), "\r\n")
	}
	tpl, err := template.New("system").Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("system template parse: %w", err)
	}
	reasoning := strings.TrimSpace(o.Reasoning)
	if reasoning == "" {
		reasoning = "medium"
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, struct{ Reasoning string }{reasoning}); err != nil {
		return nil, fmt.Errorf("system template execute: %w", err)
	}
	return &Template{system: buf.String()}, nil
}

// WithSystem 直接使用给定 system 文本（不经模板渲染）。
func WithSystem(system string) *Template { return &Template{system: system} }

var _ contract.ChatTemplate = (*Template)(nil)

// System 返回渲染后的 system 消息。
func (t *Template) System() string { return t.system }

// Render 产出 [system, user, assistant]；user/assistant 内容逐字节保留。
func (t *Template) Render(prompt, response string) contract.ConversationRecord {
	return contract.ConversationRecord{Messages: []contract.Message{
		{Role: contract.RoleSystem, Content: t.system},
		{Role: contract.RoleUser, Content: prompt},
		{Role: contract.RoleAssistant, Content: response},
	}}
}
