package dtm0log

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

import "time"

// Metrics captures log-level metric sinks.
type Metrics interface {
	ObserveDTM0LogUpdate(backend, result string, d time.Duration)
	ObserveDTM0LogPrune(backend, result string, removed int, d time.Duration)
	IncDTM0LogFind(backend string, found bool)
	IncDTM0LogOutOfOrder(backend string)
	SetDTM0LogRecords(backend string, n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDTM0LogUpdate(string, string, time.Duration)     {}
func (noopMetrics) ObserveDTM0LogPrune(string, string, int, time.Duration) {}
func (noopMetrics) IncDTM0LogFind(string, bool)                            {}
func (noopMetrics) IncDTM0LogOutOfOrder(string)                            {}
func (noopMetrics) SetDTM0LogRecords(string, int)                          {}

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
