package spc

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorReporterSuppressed(t *testing.T) {
	tt := []struct {
		Name    string
		Options []ConfigOption
	}{
		{Name: "no token", Options: []ConfigOption{USL("1")}},
		{Name: "no-error-reports", Options: []ConfigOption{USL("1"), RollbarToken("abc"), NoErrorReports()}},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			cfg, errs := NewConfig(tc.Options...)
			assert.Empty(t, errs)

			var b bytes.Buffer
			r := NewErrorReporter(cfg, slog.New(slog.NewTextHandler(&b, nil)))
			assert.True(t, r.(errorService).suppress)

			r.ReportError(errors.New("store unavailable"))
			r.ReportError(nil)
			assert.Contains(t, b.String(), "store unavailable")
			assert.Equal(t, 1, bytes.Count(b.Bytes(), []byte("unexpected error")))
		})
	}
}
