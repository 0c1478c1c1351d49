package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"example.com/spdywire/internal/config"
	"example.com/spdywire/internal/spdy"
)

// Logger emits structured, leveled log events for decoded frames and
// session errors.
type Logger struct {
	log    zerolog.Logger
	output io.WriteCloser // non-nil only for file targets
}

// New creates a Logger from the logging configuration: target selection
// (stdout, stderr, or append to a file) plus level gating.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	var w io.Writer
	var output io.WriteCloser
	switch cfg.Target {
	case "stdout":
		w = os.Stdout
	case "stderr", "":
		w = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Target, err)
		}
		w = file
		output = file
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		if output != nil {
			output.Close()
		}
		return nil, err
	}

	l := newLogger(w, level)
	l.output = output
	return l, nil
}

func newLogger(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{
		log: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

func parseLevel(level config.LogLevel) (zerolog.Level, error) {
	switch level {
	case config.LogLevelDebug:
		return zerolog.DebugLevel, nil
	case config.LogLevelInfo, "":
		return zerolog.InfoLevel, nil
	case config.LogLevelWarning:
		return zerolog.WarnLevel, nil
	case config.LogLevelError:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}

// Close releases a file target. It is a no-op for stdout/stderr.
func (l *Logger) Close() error {
	if l.output != nil {
		return l.output.Close()
	}
	return nil
}

// Infof logs a formatted message at INFO.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

// Errorf logs a formatted message at ERROR.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

// FrameEvent logs one decoded frame at DEBUG with fields typed per
// frame variant.
func (l *Logger) FrameEvent(remote string, f spdy.Frame) {
	e := l.log.Debug()
	if e == nil {
		return
	}
	e = e.Str("remote", remote).Stringer("frame", f.FrameType())

	switch f := f.(type) {
	case *spdy.DataFrame:
		e = e.Uint32("stream_id", f.StreamID).
			Bool("last", f.Last).
			Str("payload", humanize.Bytes(uint64(len(f.Payload))))
	case *spdy.SynStreamFrame:
		e = e.Uint32("stream_id", f.StreamID).
			Uint32("associated_to", f.AssociatedToStreamID).
			Uint8("priority", f.Priority).
			Bool("last", f.Last).
			Bool("unidirectional", f.Unidirectional).
			Int("headers", len(f.Headers)).
			Bool("invalid", f.Invalid).
			Bool("truncated", f.Truncated)
	case *spdy.SynReplyFrame:
		e = e.Uint32("stream_id", f.StreamID).
			Bool("last", f.Last).
			Int("headers", len(f.Headers)).
			Bool("invalid", f.Invalid).
			Bool("truncated", f.Truncated)
	case *spdy.HeadersFrame:
		e = e.Uint32("stream_id", f.StreamID).
			Bool("last", f.Last).
			Int("headers", len(f.Headers)).
			Bool("invalid", f.Invalid).
			Bool("truncated", f.Truncated)
	case *spdy.RstStreamFrame:
		e = e.Uint32("stream_id", f.StreamID).Stringer("status", f.Status)
	case *spdy.SettingsFrame:
		e = e.Bool("clear_persisted", f.ClearPreviouslyPersisted).
			Int("entries", len(f.Entries))
	case *spdy.PingFrame:
		e = e.Int32("id", f.ID)
	case *spdy.GoAwayFrame:
		e = e.Uint32("last_good_stream_id", f.LastGoodStreamID).Stringer("status", f.Status)
	case *spdy.WindowUpdateFrame:
		e = e.Uint32("stream_id", f.StreamID).Uint32("delta", f.DeltaWindowSize)
	}
	e.Msg("frame")
}

// DecodeError logs the decoder's error event at ERROR.
func (l *Logger) DecodeError(remote string, err error) {
	l.log.Error().Str("remote", remote).Err(err).Msg("decode error")
}

// SessionClosed logs the end of a connection with its byte count.
func (l *Logger) SessionClosed(remote string, received uint64) {
	l.log.Info().Str("remote", remote).
		Str("received", humanize.Bytes(received)).
		Msg("session closed")
}
