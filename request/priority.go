package request

import (
	"fmt"

	"github.com/juju/errors"
)

// Priority is a torrent's bandwidth priority as the daemon numbers it.
type Priority int8

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	}
	return fmt.Sprintf("Priority(%d)", int8(p))
}

// Validate reports whether p is one of the priorities the daemon understands.
func (p Priority) Validate() error {
	if p < PriorityLow || p > PriorityHigh {
		return errors.NotValidf("bandwidth priority %d", int8(p))
	}
	return nil
}
