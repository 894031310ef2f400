package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sftcorpus/pkg/contract"
)

// Logger 在 zap 之上保留固定的事件词汇：每条事件带 corr_id/comp/stage。
// nil *Logger 的所有方法为 no-op。
type Logger struct {
	z    *zap.Logger
	sink io.Closer
}

// ParseLevel 解析日志级别（debug|info|warn|error），空串为 info。
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(s))
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
}

// NewLogger 构造写入 ws 的 JSON 日志器；非法级别回退为 info。
func NewLogger(corrID, level string, ws zapcore.WriteSyncer) *Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), ws, lvl)
	return FromZap(zap.New(core).With(zap.String("corr_id", corrID)))
}

// Open 按配置选择输出：dir 非空时写入 dir 下的轮转文件，否则写 stderr。
func Open(corrID, level, dir string, maxBytes int64) *Logger {
	if strings.TrimSpace(dir) == "" {
		return NewLogger(corrID, level, zapcore.Lock(os.Stderr))
	}
	rf := NewRotatingFile(dir, maxBytes)
	l := NewLogger(corrID, level, rf)
	l.sink = rf
	return l
}

// FromZap 包装已有的 zap.Logger。
func FromZap(z *zap.Logger) *Logger { return &Logger{z: z} }

// Zap 返回底层 zap.Logger；nil 时返回 no-op。
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// Close 刷新缓冲并关闭文件输出。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

func (l *Logger) with(comp, stage string) *zap.Logger {
	return l.z.With(zap.String("comp", comp), zap.String("stage", stage))
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string, fields ...zap.Field) *Timer {
	if l == nil || l.z == nil {
		return nil
	}
	l.with(comp, "start").Info(msg, fields...)
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// Info 记录 info 事件。
func (l *Logger) Info(comp, msg string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	l.with(comp, "info").Info(msg, fields...)
}

// Debug 记录调试事件（仅 level=debug 时输出）。
func (l *Logger) Debug(comp, msg string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	l.with(comp, "debug").Debug(msg, fields...)
}

// Skip 以 warn 级别记录一个被跳过的输入单元。
func (l *Logger) Skip(comp string, s contract.Skip) {
	if l == nil || l.z == nil {
		return
	}
	fields := []zap.Field{zap.String("source", s.Source), zap.String("reason", string(s.Reason))}
	if s.Err != nil {
		fields = append(fields, zap.Error(s.Err))
	}
	l.with(comp, "skip").Warn("skipped", fields...)
}

// Error 记录 error 事件；code 由 Classify 给出。
func (l *Logger) Error(comp string, code Code, msg string, err error, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	fields = append(fields, zap.String("code", string(code)))
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.with(comp, "error").Error(msg, fields...)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l    *Logger
	comp string
	t0   time.Time
}

// Finish 记录 finish 事件，附带耗时与计数。
func (t *Timer) Finish(msg string, count int64, fields ...zap.Field) {
	if t == nil || t.l == nil {
		return
	}
	fields = append(fields, zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()), zap.Int64("count", count))
	t.l.with(t.comp, "finish").Info(msg, fields...)
}

// Since 返回计时起点至今的时长。
func (t *Timer) Since() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.t0)
}
