// Package util holds small helpers shared across the engine: operation
// timing for metrics fields and a no-op InfluxDB writer.
package util

import "time"

// TimeOperationMicroseconds runs op and returns its wall-clock duration
// in microseconds, for reporting as a metric field.
func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}
