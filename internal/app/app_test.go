package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/i-melnichenko/dtm0-lab/internal/dtm0log"
	"github.com/i-melnichenko/dtm0-lab/internal/dtx"
	"github.com/i-melnichenko/dtm0-lab/internal/service"
	admingrpc "github.com/i-melnichenko/dtm0-lab/internal/transport/grpc/admin"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := DefaultConfig()
	cfg.LogBackend = LogBackendVolatile

	l, err := dtm0log.NewVolatile(dtx.LogicalClock{}, dtm0log.Options{})
	if err != nil {
		t.Fatalf("NewVolatile: %v", err)
	}
	t.Cleanup(l.Fini)
	tracer := noop.NewTracerProvider().Tracer("test/internal/app")
	journal, err := service.NewJournal(l, nil, slog.Default(), tracer, nil, cfg.NodeID)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	a, err := New(cfg, slog.Default(), journal, admingrpc.NewServer(journal))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	a := newTestApp(t)
	if _, err := New(a.config, nil, a.journal, a.adminSrv); err == nil {
		t.Fatal("expected error for nil logger")
	}
	if _, err := New(a.config, a.logger, nil, a.adminSrv); err == nil {
		t.Fatal("expected error for nil journal")
	}
	if _, err := New(a.config, a.logger, a.journal, nil); err == nil {
		t.Fatal("expected error for nil admin server")
	}
	bad := a.config
	bad.NodeID = ""
	if _, err := New(bad, a.logger, a.journal, a.adminSrv); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestHandleHealth_ReportsJournalInfo(t *testing.T) {
	a := newTestApp(t)
	d := dtx.Descriptor{
		ID:           dtx.ID{Originator: dtx.FID{Container: 1, Key: 1}, Timestamp: 1},
		Participants: []dtx.Participant{{FID: dtx.FID{Container: 2, Key: 1}, State: dtx.Persistent}},
	}
	if err := a.journal.Record(context.Background(), dtm0log.OpPersistent, d, []byte("x")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec := httptest.NewRecorder()
	a.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Info   struct {
			NodeID  string `json:"node_id"`
			Records int    `json:"records"`
		} `json:"info"`
	}
	if err := json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Info.NodeID != a.config.NodeID || body.Info.Records != 1 {
		t.Fatalf("unexpected health body %s", rec.Body.String())
	}
}

func TestAuxServers_DisabledWithoutAddr(t *testing.T) {
	a := newTestApp(t)
	a.config.MetricsAddr = ""
	a.config.PprofAddr = ""

	srv, lis, err := a.metricsServer()
	if err != nil || srv != nil || lis != nil {
		t.Fatalf("metrics: expected disabled server, got srv=%v err=%v", srv, err)
	}
	srv, lis, err = a.pprofServer()
	if err != nil || srv != nil || lis != nil {
		t.Fatalf("pprof: expected disabled server, got srv=%v err=%v", srv, err)
	}
}

func TestListenHTTP_BindsAddr(t *testing.T) {
	srv, lis, err := listenHTTP("test", "127.0.0.1:0", http.NewServeMux())
	if err != nil {
		t.Fatalf("listenHTTP: %v", err)
	}
	defer func() { _ = lis.Close() }()
	if srv == nil || srv.ReadHeaderTimeout == 0 {
		t.Fatalf("expected server with header timeout, got %+v", srv)
	}
}

func TestTracingSampler(t *testing.T) {
	a := newTestApp(t)
	a.config.TracingSampleRatio = 1
	if got := a.tracingSampler().Description(); !strings.Contains(got, "AlwaysOnSampler") {
		t.Fatalf("ratio 1: unexpected sampler %s", got)
	}
	a.config.TracingSampleRatio = 0.25
	if got := a.tracingSampler().Description(); !strings.Contains(got, "TraceIDRatioBased{0.25}") {
		t.Fatalf("ratio 0.25: unexpected sampler %s", got)
	}
}
