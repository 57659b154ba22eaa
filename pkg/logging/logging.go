package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type Fields struct {
	Service     string
	OrderID     string
	OrderNumber string
	TxID        string
	EventID     string
	Step        string
	Status      string
	Count       int
	DurationMS  int64
	Message     string
	Err         error
}

// Setup installs a JSON slog logger as the process default and returns it.
func Setup(w io.Writer, level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Log writes one structured line. Entries carrying an error are logged at
// error level, everything else at info.
func Log(fields Fields) {
	LogTo(slog.Default(), fields)
}

func LogTo(logger *slog.Logger, fields Fields) {
	attrs := make([]slog.Attr, 0, 10)
	attrs = append(attrs, slog.String("service", fields.Service))
	add := func(key, val string) {
		if val != "" {
			attrs = append(attrs, slog.String(key, val))
		}
	}
	add("order_id", fields.OrderID)
	add("order_number", fields.OrderNumber)
	add("txid", fields.TxID)
	add("event_id", fields.EventID)
	add("step", fields.Step)
	add("status", fields.Status)
	if fields.Count != 0 {
		attrs = append(attrs, slog.Int("count", fields.Count))
	}
	if fields.DurationMS != 0 {
		attrs = append(attrs, slog.Int64("duration_ms", fields.DurationMS))
	}

	level := slog.LevelInfo
	if fields.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", fields.Err.Error()))
	}
	msg := fields.Message
	if msg == "" {
		msg = fields.Step
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
