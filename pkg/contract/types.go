package contract

// FileID: 逻辑文档ID（根相对路径，正斜杠分隔，跨平台一致）。
type FileID string

// RecordType: 记录来源类别。
type RecordType string

const (
	RecordSnippet   RecordType = "snippet"
	RecordReference RecordType = "reference"
)

// Metadata: 记录元信息（固定形状，不使用开放 map）。
// 约束：
// - SourcePath/Category/RecordType 总是存在；
// - Filename/LineCount 仅 snippet 记录携带；
// - ContentHash 由去重阶段写入，此前为空；
// - Element*/Source* 仅 reference 记录携带。
type Metadata struct {
	SourcePath   string     `json:"source_path"`
	Category     string     `json:"category"`
	Filename     string     `json:"filename,omitempty"`
	LineCount    *int       `json:"line_count,omitempty"`
	RecordType   RecordType `json:"record_type"`
	ContentHash  string     `json:"content_hash,omitempty"`
	ElementName  string     `json:"element_name,omitempty"`
	SourceTable  string     `json:"source_table,omitempty"`
	SourceFile   string     `json:"source_file,omitempty"`
	CategoryPath string     `json:"category_path,omitempty"`
}

// Record: 一条 prompt/response 训练样本。
// 创建后仅允许去重阶段补写 Metadata.ContentHash，之后不再修改。
type Record struct {
	Prompt   string   `json:"prompt"`
	Response string   `json:"response"`
	Metadata Metadata `json:"metadata"`
}

// Partition: 数据集分区名。
type Partition string

const (
	PartitionTrain Partition = "train"
	PartitionVal   Partition = "val"
	PartitionTest  Partition = "test"
)

// Partitions 以固定顺序返回全部分区（train → val → test）。
func Partitions() []Partition {
	return []Partition{PartitionTrain, PartitionVal, PartitionTest}
}

// Role: 会话消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message: 单条会话消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationRecord: 三段式会话（system → user → assistant）。
type ConversationRecord struct {
	Messages []Message `json:"messages"`
}

// IntPtr 返回 n 的指针（用于可选整型字段）。
func IntPtr(n int) *int { return &n }
