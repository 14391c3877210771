/*
Package ws streams finalized spans to WebSocket clients in real time.

The Hub registers as a drain tap on the exporter queue, so clients
observe the exact batches sent to the collector. Slow clients drop
batches rather than slowing the flush path.
*/
package ws
