// Package logging provides structured logging using uber/zap.
//
// Two modes: production (JSON output for machine parsing) and development
// (colored console output). Handlers attach trace and span ids as fields
// so log lines correlate with exported spans.
package logging
