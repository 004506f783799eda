package report

import (
	"sync"

	"go.uber.org/zap"
)

// Reporter captura errores para monitoreo externo. Fire-and-forget:
// nunca devuelve error ni bloquea de forma apreciable.
type Reporter interface {
	Capture(err error, context map[string]interface{})
}

type zapReporter struct {
	logger *zap.Logger
}

// NewZapReporter reporta errores via el logger estructurado del proceso.
func NewZapReporter(logger *zap.Logger) Reporter {
	return &zapReporter{logger: logger}
}

func (r *zapReporter) Capture(err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	r.logger.Error("captured error", zap.Error(err), zap.Any("context", context))
}

// CapturedError es una entrada retenida por el Recorder.
type CapturedError struct {
	Err     error
	Context map[string]interface{}
}

// Recorder acumula capturas en memoria; util en tests.
type Recorder struct {
	mu       sync.Mutex
	captured []CapturedError
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Capture(err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.captured = append(r.captured, CapturedError{Err: err, Context: context})
	r.mu.Unlock()
}

func (r *Recorder) Captured() []CapturedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CapturedError, len(r.captured))
	copy(out, r.captured)
	return out
}
