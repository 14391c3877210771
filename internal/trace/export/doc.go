/*
Package export batches finalized spans and transmits them to a collector.

# Overview

The Queue is a bounded FIFO with two flush triggers: batch size reached,
or the oldest buffered span aging past the flush interval. A single
background goroutine drains and transmits; producers only append and
never block. Telemetry is best-effort: on overflow the oldest spans are
evicted, and a batch that exhausts its retry budget is dropped and
counted, never retried indefinitely.

# Wire format

Each flush becomes one frame on a TCP stream to the collector: a 4-byte
big-endian length prefix followed by the gzip-compressed JSON encoding of
a Batch. The payload schema is the collector's contract; DecodeFrame is
provided for tests and collector stand-ins.

# Lifecycle

	transport := export.NewTCPTransport(cfg.Collector.Endpoint)
	queue := export.NewQueue(cfg.Service.Name, transport, export.DefaultConfig(), logger)
	defer queue.Shutdown(ctx) // final flush, then transport close
*/
package export
