// Command server runs the instrumented demo service: every request is
// traced end to end and exported to the collector over TCP.
package main
