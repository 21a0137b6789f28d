package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/solar"

	"github.com/skytether/libration/pkg/vec"
)

// Body names known to the ephemeris.
const (
	Sun   = "Sun"
	Earth = "Earth"
	Moon  = "Moon"
)

// AU in Mm.
const AU = 149597.8707

// ErrUnknownBody is returned for names the ephemeris does not carry.
var ErrUnknownBody = errors.New("unknown body")

// Bodies lists the bodies in lookup order.
var Bodies = []string{Sun, Earth, Moon}

// Ephemeris returns a body's heliocentric ecliptic position in Mm.
func Ephemeris(name string, t time.Time) (vec.Vec3, error) {
	jd := julian.TimeToJD(t)
	switch name {
	case Sun:
		return vec.Vec3{}, nil
	case Earth:
		return earth(jd), nil
	case Moon:
		return earth(jd).Add(moon(jd)), nil
	default:
		return vec.Vec3{}, fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}
}

// earth is the Sun's geocentric position reflected through the origin.
func earth(jd float64) vec.Vec3 {
	T := base.J2000Century(jd)
	s, _ := solar.True(T)
	r := solar.Radius(T) * AU
	return spherical(s.Rad()+math.Pi, 0, r)
}

// moon is the geocentric position of the Moon.
func moon(jd float64) vec.Vec3 {
	λ, β, Δ := moonposition.Position(jd)
	return spherical(λ.Rad(), β.Rad(), Δ/1000)
}

func spherical(lon, lat, r float64) vec.Vec3 {
	sλ, cλ := math.Sincos(lon)
	sβ, cβ := math.Sincos(lat)
	return vec.New(r*cβ*cλ, r*cβ*sλ, r*sβ)
}
