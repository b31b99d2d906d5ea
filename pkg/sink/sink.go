// Package sink persists classified results: read output goes to one log
// per device, rejected config lines go to a log shared by all devices.
package sink

import (
	"github.com/newtron-network/bulkcfg/pkg/classify"
)

// TimestampFormat prefixes every log entry.
const TimestampFormat = "2006-01-02 15:04:05.000000"

// Sink routes results to the right log.
type Sink struct {
	Reads  *ReadLog
	Errors *ErrorLog
}

// Record persists r for address. Only ReadSuccess and WriteInvalid have
// side effects; every other kind is a no-op.
func (s *Sink) Record(address string, r classify.Result) error {
	switch r.Kind {
	case classify.ReadSuccess:
		if s.Reads != nil {
			return s.Reads.Append(address, r.Output)
		}
	case classify.WriteInvalid:
		if s.Errors != nil {
			return s.Errors.Append(address, r)
		}
	}
	return nil
}
