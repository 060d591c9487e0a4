package admingrpc

import "go.opentelemetry.io/otel/trace/noop"

var testTracer = noop.NewTracerProvider().Tracer("test/internal/transport/grpc/admin")

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
