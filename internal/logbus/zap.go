package logbus

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the console logger. Unknown levels fall back to info.
func NewZapLogger(level string, production bool) (*zap.Logger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Forward writes bus messages to logger until ctx is done or the bus is closed.
// The returned channel is closed once forwarding has stopped.
func Forward(ctx context.Context, b *Bus, logger *zap.Logger) <-chan struct{} {
	ch, cancel := b.Subscribe(512)
	done := make(chan struct{})
	sugar := logger.Sugar()
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				writeMessage(sugar, msg)
			}
		}
	}()
	return done
}

func writeMessage(l *zap.SugaredLogger, msg Message) {
	switch data := msg.Data.(type) {
	case LogData:
		kv := make([]any, 0, len(data.Fields)*2)
		for k, v := range data.Fields {
			kv = append(kv, k, v)
		}
		switch data.Level {
		case "debug":
			l.Debugw(data.Msg, kv...)
		case "warn":
			l.Warnw(data.Msg, kv...)
		case "error":
			l.Errorw(data.Msg, kv...)
		default:
			l.Infow(data.Msg, kv...)
		}
	case StockCheckData:
		l.Infow("stock check", "productId", data.ProductID, "attempt", data.Attempt, "running", data.Elapsed)
	default:
		l.Debugw(msg.Type, "data", msg.Data)
	}
}
