/*
Package resilience provides a circuit breaker for the collector transport.

# Overview

Span export keeps trying to reach the collector long after it goes away.
Without a breaker, every flush pays the full dial timeout before its
batch is dropped. The breaker opens after repeated transmission failures
so subsequent sends fail immediately, and probes the collector again once
its timeout elapses.

# Usage

	breaker := resilience.New("collector", resilience.Settings{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, conn.WriteFrame(frame)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[success]-> Closed
	                                              |
	                                         [failure]
	                                              v
	                                            Open
*/
package resilience
