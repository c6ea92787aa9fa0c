package util

import "github.com/influxdata/influxdb-client-go/api/write"

// MockWriteAPI satisfies the InfluxDB async write interface without doing
// anything. The engine uses it whenever no metrics backend is configured,
// so callers never have to nil-check before writing points.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

// Errors returns nil; a nil channel never delivers, which is safe as long
// as nobody selects on it without a default case.
func (m *MockWriteAPI) Errors() <-chan error { return nil }
