package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// 警告の出力先。structured が設定されていればそちらを優先する。
// pkg/log は import 循環を避けるため SetZerologWarnFunc で自分を登録する。
var warnSinks = struct {
	sync.Mutex
	fallback   func(error)
	structured func(error)
}{
	fallback: func(w error) { log.Printf("tabml-warning: %v", w) },
}

// SetWarningHandler replaces the handler used when no structured logger is registered.
func SetWarningHandler(handler func(w error)) {
	warnSinks.Lock()
	warnSinks.fallback = handler
	warnSinks.Unlock()
}

// SetZerologWarnFunc registers the structured warning sink. nil unregisters it.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warnSinks.Lock()
	warnSinks.structured = warnFunc
	warnSinks.Unlock()
}

// Warn reports a non-fatal estimator condition such as a ConvergenceWarning.
func Warn(w error) {
	warnSinks.Lock()
	sink := warnSinks.structured
	if sink == nil {
		sink = warnSinks.fallback
	}
	warnSinks.Unlock()

	if sink != nil {
		sink(w)
	}
}

// ConvergenceWarning は反復ソルバーが max_iter までに収束しなかったことを表す。
// 学習自体は成功扱いで、最後の係数がそのまま使われる。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	msg := fmt.Sprintf("%s failed to converge after %d iterations", w.Algorithm, w.Iterations)
	if w.Message == "" {
		return msg
	}
	return msg + ": " + w.Message
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning returns a ConvergenceWarning. Unlike errors it carries no stack.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}
