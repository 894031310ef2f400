// Package dataset 将分区记录序列化为 JSONL 工件。
package dataset

import (
	"context"

	"sftcorpus/internal/prompt"
	"sftcorpus/pkg/contract"
)

// Stats 单个工件的写出统计。
type Stats struct {
	Lines  int
	Bytes  int64
	Tokens int
}

// Add 累加统计。
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Bytes += o.Bytes
	s.Tokens += o.Tokens
}

// Writer 将 Record 列表按行写为 {prompt,response,metadata}。
type Writer struct {
	out contract.Writer
	est prompt.TokenEstimator
}

// New 创建数据集写出器；est 为空时使用默认估算器。
func New(out contract.Writer, est prompt.TokenEstimator) *Writer {
	if est == nil {
		est = prompt.MakeEstimator(0)
	}
	return &Writer{out: out, est: est}
}

// Write 按给定顺序写出 recs；空列表产出空工件。
func (w *Writer) Write(ctx context.Context, id contract.ArtifactID, recs []contract.Record) (Stats, error) {
	tokens := 0
	st, err := Stream(ctx, w.out, id, func(enc *Encoder) error {
		for i := range recs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := enc.Encode(&recs[i]); err != nil {
				return err
			}
			tokens += w.est(recs[i].Prompt) + w.est(recs[i].Response)
		}
		return nil
	})
	st.Tokens = tokens
	return st, err
}
