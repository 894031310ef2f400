// Package dedupe 提供内容哈希与按首次出现保留的去重器。
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"

	"sftcorpus/pkg/contract"
)

// Hash 返回 b 的 SHA-256 小写十六进制摘要。
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString 对字符串的 UTF-8 字节计算 Hash。
func HashString(s string) string { return Hash([]byte(s)) }

// Deduplicator 按 response 内容哈希去重，保留首次出现的记录。
// seen 集合归属单次运行；实例非并发安全，调用方须在单一 goroutine 中顺序调用 Admit。
type Deduplicator struct {
	seen    map[string]struct{}
	removed int
}

// New 创建空的去重器。
func New() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Admit 计算 rec 的内容哈希并写入 Metadata.ContentHash。
// 首次出现返回 (rec, true)；重复返回 (rec, false) 并计入 Removed。
func (d *Deduplicator) Admit(rec contract.Record) (contract.Record, bool) {
	h := HashString(rec.Response)
	rec.Metadata.ContentHash = h
	if _, dup := d.seen[h]; dup {
		d.removed++
		return rec, false
	}
	d.seen[h] = struct{}{}
	return rec, true
}

// Removed 返回被判定为重复的记录数。
func (d *Deduplicator) Removed() int { return d.removed }

// Len 返回已保留的唯一记录数。
func (d *Deduplicator) Len() int { return len(d.seen) }
