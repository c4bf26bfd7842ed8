package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	tmerrors "github.com/YuminosukeSato/tabml/pkg/errors"
)

// ErrFmtHandler decorates records carrying ErrAttr with the error's stack
// trace and, for pipeline errors, its category. The zerolog adapter adds the
// same two fields in addError.
type ErrFmtHandler struct {
	next slog.Handler
}

// WrapByErrFmtHandler wraps next with ErrFmtHandler.
func WrapByErrFmtHandler(next slog.Handler) slog.Handler {
	return &ErrFmtHandler{next: next}
}

func (h *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := recordError(r); err != nil {
		if st := extractStacktrace(err); st != "" {
			r.AddAttrs(slog.String(StacktraceAttrKey, st))
		}
		if cat := tmerrors.CategoryOf(err); cat != tmerrors.CategoryUnknown {
			r.AddAttrs(slog.String(ErrorCategoryKey, cat.String()))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithGroup(g)}
}

// recordError returns the first error attached under ErrAttrKey.
func recordError(r slog.Record) (found error) {
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		found, _ = attr.Value.Any().(error)
		return found == nil
	})
	return found
}

func extractStacktrace(err error) string {
	if details := errors.GetSafeDetails(err).SafeDetails; len(details) > 0 {
		return details[0]
	}
	return ""
}
