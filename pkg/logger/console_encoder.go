package logger

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var _bufferPool = buffer.NewPool()

var levelColors = map[string]*color.Color{
	"DEBUG":   color.New(color.FgCyan),
	"INFO":    color.New(color.FgBlue),
	"SUCCESS": color.New(color.FgGreen),
	"WARN":    color.New(color.FgYellow),
	"ERROR":   color.New(color.FgRed),
	"FAIL":    color.New(color.FgRed, color.Bold),
}

// consoleEncoder renders one human-readable line per entry:
//
//	15:04:05 [LEVEL] message key=value
//
// It recognizes the custom-level field attached by the Logger wrapper and
// substitutes the SUCCESS/FAIL label for zap's own level.
type consoleEncoder struct {
	zapcore.Encoder
	colors bool
}

func newConsoleEncoder(cfg zapcore.EncoderConfig, colors bool) zapcore.Encoder {
	return &consoleEncoder{
		Encoder: zapcore.NewJSONEncoder(cfg),
		colors:  colors,
	}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{Encoder: enc.Encoder.Clone(), colors: enc.colors}
}

func (enc *consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := _bufferPool.Get()

	label := levelLabel(entry.Level)
	kept := fields[:0]
	for _, f := range fields {
		if f.Key == customLevelKey {
			switch f.String {
			case SuccessLevel.String():
				label = "SUCCESS"
			case FailLevel.String():
				label = "FAIL"
			}
			continue
		}
		kept = append(kept, f)
	}

	tag := fmt.Sprintf("[%s]", label)
	if enc.colors {
		if c, ok := levelColors[label]; ok {
			tag = c.Sprint(tag)
		}
	}

	line.AppendString(entry.Time.Format(time.TimeOnly))
	line.AppendString(" ")
	line.AppendString(tag)
	line.AppendString(" ")
	line.AppendString(entry.Message)

	for _, f := range kept {
		line.AppendString(" ")
		line.AppendString(f.Key)
		line.AppendString("=")
		line.AppendString(fieldString(f))
	}

	line.AppendString("\n")
	return line, nil
}

func levelLabel(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.InfoLevel:
		return "INFO"
	case zapcore.WarnLevel:
		return "WARN"
	case zapcore.ErrorLevel:
		return "ERROR"
	case zapcore.FatalLevel, zapcore.PanicLevel, zapcore.DPanicLevel:
		return "FAIL"
	default:
		return l.CapitalString()
	}
}

func fieldString(f zapcore.Field) string {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return fmt.Sprintf("%d", f.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%t", f.Integer == 1)
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			return err.Error()
		}
		return fmt.Sprintf("%v", f.Interface)
	default:
		if f.Interface != nil {
			return fmt.Sprintf("%v", f.Interface)
		}
		return f.String
	}
}
