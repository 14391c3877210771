/*
Package adapters instruments each I/O boundary with explicit spans.

One adapter per boundary: inbound HTTP (gin middleware), outbound HTTP
(resty client), database (database/sql), and cache (redis). Each adapter
extracts or creates a span context, starts a span named after the
operation, threads the derived child context downstream, and ends the
span with result-derived attributes.

Adapters never change the outcome of the operation they wrap: errors are
recorded on the span and returned unchanged, and any failure inside the
telemetry path itself is logged and swallowed.
*/
package adapters
