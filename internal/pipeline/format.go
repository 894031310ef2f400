package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sftcorpus/internal/convert"
	"sftcorpus/internal/diag"
	"sftcorpus/pkg/contract"
)

// Format 执行格式转换：inPath(JSONL) → chat 模板 → outID。
// 输入不可打开属配置错误；逐行问题只计数与记录日志。
func Format(ctx context.Context, w contract.Writer, chat contract.ChatTemplate, inPath string, outID contract.ArtifactID, logger *diag.Logger, term *diag.Terminal) (convert.Stats, error) {
	if w == nil || chat == nil {
		return convert.Stats{}, fmt.Errorf("sanity: %w: writer and chat template required", contract.ErrConfig)
	}
	start := time.Now()
	term.RunStart("format", 1, false)
	ft := logger.Start("format", "convert", zap.String("input", inPath), zap.String("artifact", string(outID)))
	f := convert.New(w, chat, convert.Options{
		OnSkip: func(s contract.Skip) { logger.Skip("format", s) },
	})
	st, err := f.Format(ctx, inPath, outID)
	if err != nil {
		logger.Error("format", diag.Classify(err), "convert failed", err, zap.String("input", inPath))
		return st, err
	}
	skipped := 0
	for _, n := range st.Skipped {
		skipped += n
	}
	ft.Finish("converted", int64(st.Written),
		zap.Int("read", st.Read), zap.Int("skipped", skipped), zap.Int64("bytes", st.Bytes))
	term.StageFinish("format", fmt.Sprintf("read %d | written %d | skipped %d", st.Read, st.Written, skipped))
	term.Artifact(string(outID), st.Written, st.Bytes)
	term.RunFinish(true, time.Since(start))
	return st, nil
}
