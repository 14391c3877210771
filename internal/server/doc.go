/*
Package server assembles the trace pipeline and the demo HTTP surface.

Wiring order is bottom-up: TCP transport to the collector, exporter
queue, recorder, then the instrumented adapters and routes. The demo
endpoints exercise each adapter so a running instance produces real
spans end to end.
*/
package server
