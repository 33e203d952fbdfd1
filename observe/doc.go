// Package observe provides logging, tracing and metrics for guard chains.
//
// New builds a Telemetry from Config: OpenTelemetry tracer and meter
// providers, a JSON structured Logger and the Recorder that turns the events
// emitted by every stage into log lines and metric points. NewTraceGuard is
// the chain's first stage: it assigns or propagates the correlation id,
// mirrors it to the response, opens an optional span and reports
// request.start/request.end events. It also runs for requests the transport
// rejects before the chain.
//
// The package performs no I/O beyond exporter setup and the logger's writer.
package observe
