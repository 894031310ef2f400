package contract

import "fmt"

// SkipReason: 记录级跳过原因（用于汇总计数）。
type SkipReason string

const (
	SkipUnreadable    SkipReason = "unreadable"
	SkipUndecodable   SkipReason = "undecodable"
	SkipSchema        SkipReason = "schema"
	SkipMalformedRow  SkipReason = "malformed_row"
	SkipEmptyField    SkipReason = "empty_field"
	SkipMalformedLine SkipReason = "malformed_line"
	SkipMissingField  SkipReason = "missing_field"
)

// Skip: 被跳过的输入单元（文件、表行或 JSONL 行）。
type Skip struct {
	// Source: 定位信息（根相对路径、"table.csv:12" 等）。
	Source string
	Reason SkipReason
	Err    error
}

func (s Skip) Error() string {
	if s.Err == nil {
		return fmt.Sprintf("%s: %s", s.Source, s.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", s.Source, s.Reason, s.Err)
}

func (s Skip) Unwrap() error { return s.Err }

// Result: Collector/Loader 的带标签输出，Record 与 Skip 二选一。
type Result struct {
	Record *Record
	Skip   *Skip
}

// Emit 构造携带记录的 Result。
func Emit(rec Record) Result { return Result{Record: &rec} }

// Skipped 构造携带跳过信息的 Result。
func Skipped(source string, reason SkipReason, err error) Result {
	return Result{Skip: &Skip{Source: source, Reason: reason, Err: err}}
}
