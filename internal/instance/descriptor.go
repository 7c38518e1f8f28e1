package instance

import (
	"strconv"
	"time"

	"github.com/firefly-engineering/edgerelay/internal/config"
)

// Key is the fixed logical key of the one backend instance.
const Key = "smtp-backend"

// Descriptor identifies the instance and carries what it is started with.
type Descriptor struct {
	Key        string
	Port       int
	SleepAfter time.Duration
	Mapping    config.Mapping
}

// NewDescriptor returns the descriptor for the fixed key.
func NewDescriptor(port int, sleepAfter time.Duration) *Descriptor {
	return &Descriptor{
		Key:        Key,
		Port:       port,
		SleepAfter: sleepAfter,
	}
}

// Configure attaches mapping to d, replacing whatever was attached before.
// SERVER_PORT always reflects d.Port. Applying the same mapping again has
// no further effect.
func Configure(d *Descriptor, mapping config.Mapping) error {
	m := mapping.Clone()
	m[config.ServerPortKey] = strconv.Itoa(d.Port)
	if err := m.Validate(); err != nil {
		return err
	}
	d.Mapping = m
	return nil
}
