package sensor

import (
	"context"
	"math/rand"
	"time"
)

// Simulated is a Source that fabricates readings around a base point, for
// development on machines without the sensor hardware.
type Simulated struct {
	name     string
	baseTemp float64
	baseRH   float64
	rng      *rand.Rand
}

// NewSimulated returns a simulated freezer sensor hovering around -18 °C.
func NewSimulated(name string) *Simulated {
	return &Simulated{
		name:     name,
		baseTemp: -18.0,
		baseRH:   60.0,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Simulated) Name() string {
	return s.name
}

func (s *Simulated) Read(_ context.Context) (Reading, error) {
	return NewReading(s.name, time.Now(), map[string]float64{
		Temperature: s.baseTemp + s.rng.NormFloat64()*0.4,
		Humidity:    s.baseRH + s.rng.NormFloat64()*2.0,
	}), nil
}
