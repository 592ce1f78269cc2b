package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lsst-sqre/vo-siav2/adapters/clock"
	"github.com/lsst-sqre/vo-siav2/adapters/votable"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/rs/zerolog"
)

// handlerFunc is an endpoint that reports failures by returning them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// FaultRecorder counts faults by kind.
type FaultRecorder interface {
	RecordFault(kind string)
}

// pipeline builds endpoint handlers as timing -> fault translation ->
// endpoint.
type pipeline struct {
	logger zerolog.Logger
	clock  ports.Clock
	writer *votable.Writer
	faults FaultRecorder
}

func (p *pipeline) wrap(operation string, fn handlerFunc) http.Handler {
	return p.timing(operation, p.translate(fn))
}

// timing logs how long the wrapped handler took.
func (p *pipeline) timing(operation string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := clock.Start(p.clock)
		next.ServeHTTP(w, r)
		d := sw.Elapsed()
		p.logger.Info().
			Str("operation", operation).
			Str("duration", FormatDuration(d)).
			Float64("duration_ms", float64(d)/float64(time.Millisecond)).
			Msg("operation timed")
	})
}

// translate renders returned errors and panics as VOTable error documents.
func (p *pipeline) translate(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.call(fn, w, r); err != nil {
			p.writeFault(w, r, err)
		}
	}
}

func (p *pipeline) call(fn handlerFunc, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = fault.New(fault.Default, fmt.Sprint(rec))
		}
	}()
	return fn(w, r)
}

func (p *pipeline) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	f := fault.From(err)
	p.logger.Error().
		Str("error_type", f.Kind.String()).
		Str("error_message", f.Detail).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Msg("request failed")
	if p.faults != nil {
		p.faults.RecordFault(f.Kind.String())
	}

	w.Header().Set("Content-Type", votable.ErrorContentType)
	w.WriteHeader(f.StatusCode())
	if werr := p.writer.WriteError(w, f); werr != nil {
		p.logger.Error().Err(werr).Msg("failed to write error document")
	}
}

// FormatDuration renders d for humans: microseconds below 1ms, then
// milliseconds, seconds, "Xm Y.YYs" and "Xh Ym Z.ZZs".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.2f µs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.2f ms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	case d < time.Hour:
		m := int(d / time.Minute)
		s := (d - time.Duration(m)*time.Minute).Seconds()
		return fmt.Sprintf("%dm %.2fs", m, s)
	default:
		h := int(d / time.Hour)
		rest := d - time.Duration(h)*time.Hour
		m := int(rest / time.Minute)
		s := (rest - time.Duration(m)*time.Minute).Seconds()
		return fmt.Sprintf("%dh %dm %.2fs", h, m, s)
	}
}
