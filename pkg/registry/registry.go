package registry

import (
	"bytes"
	"encoding/json"

	"sftcorpus/pkg/contract"
	charm "sftcorpus/plugins/chat/harmony"
	rfs "sftcorpus/plugins/reader/filesystem"
	tdl "sftcorpus/plugins/table/delimited"
	wdis "sftcorpus/plugins/writer/discard"
	wfs "sftcorpus/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewWriter 工厂签名：root 为输出根目录，raw 为原样 JSON Options。
type NewWriter func(root string, raw json.RawMessage) (contract.Writer, error)

// NewTable 工厂签名：接收原样 JSON Options。
type NewTable func(raw json.RawMessage) (contract.TableReader, error)

// NewChat 工厂签名：接收原样 JSON Options。
type NewChat func(raw json.RawMessage) (contract.ChatTemplate, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 本地目录树 Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（原子替换）；root 覆盖 options.output_dir
	"fs": func(root string, raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		if root != "" {
			opts.OutputDir = root
		}
		return wfs.New(&opts)
	},
	// discard: dry-run，读尽并计数，不触碰文件
	"discard": func(_ string, raw json.RawMessage) (contract.Writer, error) {
		var opts wdis.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wdis.New(&opts), nil
	},
}

// Table 工厂注册表。
var Table = map[string]NewTable{
	// csv: 逗号分隔（默认）
	"csv": func(raw json.RawMessage) (contract.TableReader, error) {
		var opts tdl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tdl.New(&opts, ',')
	},
	// tsv: 制表符分隔
	"tsv": func(raw json.RawMessage) (contract.TableReader, error) {
		var opts tdl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tdl.New(&opts, '\t')
	},
}

// Chat 工厂注册表。
var Chat = map[string]NewChat{
	// harmony: 固定 system + user + assistant 三段式
	"harmony": func(raw json.RawMessage) (contract.ChatTemplate, error) {
		var opts charm.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return charm.New(&opts)
	},
}

// ChatSystem: 以固定 system 文本直接构造会话模板（不经模板渲染）；未登记的实现不支持覆盖。
var ChatSystem = map[string]func(system string) contract.ChatTemplate{
	"harmony": func(system string) contract.ChatTemplate { return charm.WithSystem(system) },
}
