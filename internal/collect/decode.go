package collect

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"sftcorpus/pkg/contract"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText 将文件字节解码为 UTF-8 文本：
// - 去除 UTF-8 BOM；带 BOM 的 UTF-16 转码为 UTF-8；
// - 非法 UTF-8 或含 NUL 字节视为不可解码（包装 ErrDecode）；
// - 行尾 CRLF/CR 统一为 LF，不做其他裁剪。
func decodeText(b []byte) (string, error) {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		b = b[len(bomUTF8):]
	case bytes.HasPrefix(b, bomUTF16LE), bytes.HasPrefix(b, bomUTF16BE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("%w: utf-16: %v", contract.ErrDecode, err)
		}
		b = out
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8", contract.ErrDecode)
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return "", fmt.Errorf("%w: NUL byte in content", contract.ErrDecode)
	}
	return normalizeNewlines(string(b)), nil
}

func normalizeNewlines(s string) string {
	if strings.IndexByte(s, '\r') < 0 {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// lineCount: 以 LF 结尾的行数，末尾未终止的行另计一行；空文本为 0。
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
