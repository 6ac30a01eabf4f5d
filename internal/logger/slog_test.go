package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewSlogHandler(zerolog.New(&buf)))

	l.With("invoice_id", "inv_1").WithGroup("payment").Info("payment settled",
		"amount", int64(5000),
		"sandbox", true,
		"elapsed", 2*time.Second,
		"error", errors.New("boom"),
	)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}

	tests := []struct {
		key  string
		want any
	}{
		{"level", "info"},
		{"message", "payment settled"},
		{"invoice_id", "inv_1"},
		{"payment.amount", float64(5000)},
		{"payment.sandbox", true},
		{"payment.error", "boom"},
	}
	for _, tt := range tests {
		if got[tt.key] != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, got[tt.key], tt.want)
		}
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	h := NewSlogHandler(zerolog.New(&buf).Level(zerolog.WarnLevel))
	l := slog.New(h)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}

	l.Error("kept")
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"error"`)) {
		t.Errorf("missing error line: %s", buf.String())
	}
}

func TestSetupRejectsBadLevel(t *testing.T) {
	if err := Setup(LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
