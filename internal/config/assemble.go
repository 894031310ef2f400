package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"sftcorpus/internal/diag"
	"sftcorpus/internal/pipeline"
	"sftcorpus/internal/split"
	"sftcorpus/pkg/contract"
	"sftcorpus/pkg/registry"
)

// Ratios 返回生效的划分比例（未设置时取默认值）。
func (c Config) Ratios() split.Ratios {
	d := Defaults()
	r := split.Ratios{Val: *d.ValRatio, Test: *d.TestRatio}
	if c.ValRatio != nil {
		r.Val = *c.ValRatio
	}
	if c.TestRatio != nil {
		r.Test = *c.TestRatio
	}
	return r
}

// EffectiveSeed 返回生效的种子。
func (c Config) EffectiveSeed() int64 {
	if c.Seed != nil {
		return *c.Seed
	}
	return *Defaults().Seed
}

// Validate 对构建所需的最小边界做静态校验。
// 比例错误包装 ErrRatioInvalid，其余包装 ErrConfig。
func Validate(cfg Config) error {
	if err := cfg.Ratios().Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.InputDir) == "" {
		return fmt.Errorf("%w: input_dir empty", contract.ErrConfig)
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return fmt.Errorf("%w: output_dir empty", contract.ErrConfig)
	}
	for _, r := range cfg.References {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: reference path cannot be empty", contract.ErrConfig)
		}
	}
	if err := validateFiles(cfg.Files); err != nil {
		return err
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1", contract.ErrConfig)
	}
	if cfg.BytesPerToken < 0 {
		return fmt.Errorf("%w: bytes_per_token must be >= 0", contract.ErrConfig)
	}
	if cfg.Logging.MaxBytes < 0 {
		return fmt.Errorf("%w: logging.max_bytes must be >= 0", contract.ErrConfig)
	}
	if _, err := diag.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", contract.ErrConfig, err)
	}
	return validateComponents(cfg)
}

// validateFiles: 非空、相对且不越界、互不相同。
func validateFiles(f Files) error {
	seen := map[string]string{}
	for _, kv := range []struct{ part, name string }{
		{"train", f.Train}, {"val", f.Val}, {"test", f.Test},
	} {
		name := strings.TrimSpace(kv.name)
		if name == "" {
			return fmt.Errorf("%w: files.%s empty", contract.ErrConfig, kv.part)
		}
		clean := filepath.Clean(filepath.FromSlash(name))
		if !filepath.IsLocal(clean) {
			return fmt.Errorf("%w: files.%s %q must be a relative path inside output_dir", contract.ErrConfig, kv.part, name)
		}
		if other, dup := seen[clean]; dup {
			return fmt.Errorf("%w: files.%s and files.%s both map to %q", contract.ErrConfig, other, kv.part, name)
		}
		seen[clean] = kv.part
	}
	return nil
}

func validateComponents(cfg Config) error {
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Table, d.Components.Table); registry.Table[name] == nil {
		return fmt.Errorf("%w: table %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Chat, d.Components.Chat); registry.Chat[name] == nil {
		return fmt.Errorf("%w: chat %q not registered", contract.ErrConfig, name)
	}
	return nil
}

// Assemble 构造构建所需的 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// dry_run 时 Writer 固定为 discard，输出目录不被触碰。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	wn := effName(cfg.Components.Writer, d.Components.Writer)
	tn := effName(cfg.Components.Table, d.Components.Table)
	dry := cfg.EffectiveDryRun()

	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, factoryErr("reader", rn, err)
	}
	w, err := newWriter(wn, cfg.OutputDir, cfg, dry)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	tbl, err := registry.Table[tn](cfg.Options.Table)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, factoryErr("table", tn, err)
	}
	byExt, err := tablesByExt(tn, tbl)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	comp := pipeline.Components{
		Reader:     r,
		Writer:     w,
		Table:      tbl,
		TableByExt: byExt,
	}
	set := pipeline.Settings{
		InputDir:   cfg.InputDir,
		References: cloneStrings(cfg.References),
		Files: pipeline.Files{
			Train: filepath.ToSlash(filepath.Clean(cfg.Files.Train)),
			Val:   filepath.ToSlash(filepath.Clean(cfg.Files.Val)),
			Test:  filepath.ToSlash(filepath.Clean(cfg.Files.Test)),
		},
		Ratios:        cfg.Ratios(),
		Seed:          cfg.EffectiveSeed(),
		Workers:       cfg.Workers,
		Subject:       cfg.Subject,
		DryRun:        dry,
		Manifest:      cfg.Manifest,
		BytesPerToken: cfg.BytesPerToken,
	}
	return comp, set, nil
}

// AssembleFormat 构造格式转换所需的 Writer 与会话模板。
// root 为输出文件所在目录；system 非空时覆盖模板渲染的 system 消息。
func AssembleFormat(cfg Config, root, system string) (contract.Writer, contract.ChatTemplate, error) {
	if _, err := diag.ParseLevel(cfg.Logging.Level); err != nil {
		return nil, nil, fmt.Errorf("%w: logging.level: %v", contract.ErrConfig, err)
	}
	if err := validateComponents(cfg); err != nil {
		return nil, nil, err
	}
	d := Defaults()
	wn := effName(cfg.Components.Writer, d.Components.Writer)
	cn := effName(cfg.Components.Chat, d.Components.Chat)
	w, err := newWriter(wn, root, cfg, cfg.EffectiveDryRun())
	if err != nil {
		return nil, nil, err
	}
	if system != "" {
		ctor, ok := registry.ChatSystem[cn]
		if !ok {
			return nil, nil, fmt.Errorf("%w: chat %q does not accept a system override", contract.ErrConfig, cn)
		}
		return w, ctor(system), nil
	}
	chat, err := registry.Chat[cn](cfg.Options.Chat)
	if err != nil {
		return nil, nil, factoryErr("chat", cn, err)
	}
	return w, chat, nil
}

// newWriter: dry-run 固定使用 discard，且不向其传递为真实 Writer 准备的选项。
func newWriter(name, root string, cfg Config, dry bool) (contract.Writer, error) {
	raw := cfg.Options.Writer
	if dry {
		name, raw = "discard", nil
	}
	w, err := registry.Writer[name](root, raw)
	if err != nil {
		return nil, factoryErr("writer", name, err)
	}
	return w, nil
}

// tablesByExt: 按扩展名选择解析器；默认表用已配置实例，其余注册名使用默认选项。
func tablesByExt(defName string, def contract.TableReader) (map[string]contract.TableReader, error) {
	names := make([]string, 0, len(registry.Table))
	for n := range registry.Table {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make(map[string]contract.TableReader, len(names))
	for _, n := range names {
		if n == defName {
			out["."+n] = def
			continue
		}
		t, err := registry.Table[n](nil)
		if err != nil {
			return nil, factoryErr("table", n, err)
		}
		out["."+n] = t
	}
	return out, nil
}

func factoryErr(kind, name string, err error) error {
	if errors.Is(err, contract.ErrConfig) {
		return err
	}
	return fmt.Errorf("%w: %s %q: %v", contract.ErrConfig, kind, name, err)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
