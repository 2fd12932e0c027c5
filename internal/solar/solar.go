// Package solar computes sunrise and sunset times for the configured
// location using the NOAA low-accuracy solar position algorithm. All inputs
// and outputs are in whole minutes; there are no external dependencies and
// no network access.
package solar

import (
	"math"

	"github.com/sweeney/lamp-timer/internal/calendar"
)

// None marks a solar event that does not occur on a given day, e.g. no
// sunset during the polar day.
const None = -1

// Times holds the sunrise and sunset minute-of-day for one date, already
// converted to local time. Either field may be None.
type Times struct {
	Sunrise int
	Sunset  int
}

// HasSunrise reports whether the sun rises on this day.
func (t Times) HasSunrise() bool { return t.Sunrise != None }

// HasSunset reports whether the sun sets on this day.
func (t Times) HasSunset() bool { return t.Sunset != None }

// Calculator derives sunrise/sunset for a fixed location. Results are cached
// per distinct (date, DST) pair so the per-minute scheduler tick never pays
// for the trigonometry more than once a day. Not safe for concurrent use;
// the control loop is the only caller.
type Calculator struct {
	latitude  float64
	longitude float64
	utcOffset int // minutes east of UTC, excluding DST

	dateHash uint8
	cached   bool
	times    Times
}

// New creates a Calculator for the given location. utcOffsetMinutes is the
// fixed offset from UTC in minutes, without any daylight-saving component.
func New(latitude, longitude float64, utcOffsetMinutes int) *Calculator {
	return &Calculator{
		latitude:  latitude,
		longitude: longitude,
		utcOffset: utcOffsetMinutes,
	}
}

// Times returns the local sunrise and sunset minutes for the date. isDST
// shifts both results forward by an hour. When an event does not occur the
// field is None; no previously cached value is substituted.
func (c *Calculator) Times(date calendar.Date, isDST bool) Times {
	hash := dateHash(date, isDST)
	if !c.cached || c.dateHash != hash {
		c.dateHash = hash
		c.cached = true
		c.times = Times{
			Sunrise: c.sunriseSet(true, date, isDST),
			Sunset:  c.sunriseSet(false, date, isDST),
		}
	}
	return c.times
}

// dateHash is a compact cache key for one (date, DST) pair, good enough to
// distinguish consecutive days.
func dateHash(date calendar.Date, isDST bool) uint8 {
	h := (date.Year - 2000) + date.Month*3 + date.Day*2
	if isDST {
		h += 40
	}
	return uint8(h)
}

// sunriseSet computes one event as a local minute-of-day, or None when the
// sun does not cross the horizon that day.
func (c *Calculator) sunriseSet(isRise bool, date calendar.Date, isDST bool) int {
	jd := julianDay(date.Year, date.Month, date.Day)
	timeUTC := sunriseSetUTC(isRise, jd, c.latitude, c.longitude)

	// Second pass with the Julian day advanced by the first result; this is
	// the refinement step of the reference NOAA implementation.
	newJd := jd + timeUTC/calendar.MinutesPerDay
	newTimeUTC := sunriseSetUTC(isRise, newJd, c.latitude, c.longitude)

	if math.IsNaN(newTimeUTC) {
		return None
	}
	local := int(math.Round(newTimeUTC)) + c.utcOffset
	if isDST {
		local += calendar.MinutesPerHour
	}
	local %= calendar.MinutesPerDay
	if local < 0 {
		local += calendar.MinutesPerDay
	}
	return local
}

// sunriseSetUTC returns the UTC minute of sunrise (or sunset) for the given
// Julian day. NaN when the hour angle is undefined (polar day or night).
func sunriseSetUTC(isRise bool, jd, latitude, longitude float64) float64 {
	t := fractionOfCentury(jd)
	eqTime := equationOfTime(t)
	solarDec := sunDeclination(t)
	hourAngle := hourAngleSunrise(latitude, solarDec)
	if !isRise {
		hourAngle = -hourAngle
	}
	delta := longitude + radToDeg(hourAngle)
	return 720 - 4*delta - eqTime
}

// equationOfTime is the difference, in minutes, between mean solar time and
// apparent solar time for the given century fraction.
func equationOfTime(t float64) float64 {
	epsilon := obliquityCorrection(t)
	l0 := geomMeanLongSun(t)
	e := eccentricityEarthOrbit(t)
	m := geomMeanAnomalySun(t)

	y := math.Tan(degToRad(epsilon) / 2)
	y *= y

	sin2l0 := math.Sin(2 * degToRad(l0))
	sinm := math.Sin(degToRad(m))
	cos2l0 := math.Cos(2 * degToRad(l0))
	sin4l0 := math.Sin(4 * degToRad(l0))
	sin2m := math.Sin(2 * degToRad(m))

	etime := y*sin2l0 - 2*e*sinm + 4*e*y*sinm*cos2l0 - 0.5*y*y*sin4l0 - 1.25*e*e*sin2m
	return radToDeg(etime) * 4 // minutes of time
}

func meanObliquityOfEcliptic(t float64) float64 {
	seconds := 21.448 - t*(46.8150+t*(0.00059-t*0.001813))
	return 23 + (26+seconds/60)/60 // degrees
}

func eccentricityEarthOrbit(t float64) float64 {
	return 0.016708634 - t*(0.000042037+0.0000001267*t)
}

func sunDeclination(t float64) float64 {
	e := obliquityCorrection(t)
	lambda := sunApparentLong(t)
	sint := math.Sin(degToRad(e)) * math.Sin(degToRad(lambda))
	return radToDeg(math.Asin(sint)) // degrees
}

func sunApparentLong(t float64) float64 {
	o := sunTrueLong(t)
	omega := 125.04 - 1934.136*t
	return o - 0.00569 - 0.00478*math.Sin(degToRad(omega)) // degrees
}

func sunTrueLong(t float64) float64 {
	return geomMeanLongSun(t) + sunEqOfCenter(t) // degrees
}

func sunEqOfCenter(t float64) float64 {
	m := geomMeanAnomalySun(t)
	mrad := degToRad(m)
	sinm := math.Sin(mrad)
	sin2m := math.Sin(mrad * 2)
	sin3m := math.Sin(mrad * 3)
	return sinm*(1.914602-t*(0.004817+0.000014*t)) + sin2m*(0.019993-0.000101*t) + sin3m*0.000289
}

// hourAngleSunrise returns the hour angle of sunrise in radians, using the
// standard 90.833 degree zenith that accounts for atmospheric refraction and
// the solar radius. NaN when the argument leaves [-1, 1].
func hourAngleSunrise(lat, solarDec float64) float64 {
	latRad := degToRad(lat)
	sdRad := degToRad(solarDec)
	arg := math.Cos(degToRad(90.833))/(math.Cos(latRad)*math.Cos(sdRad)) - math.Tan(latRad)*math.Tan(sdRad)
	return math.Acos(arg)
}

func obliquityCorrection(t float64) float64 {
	e0 := meanObliquityOfEcliptic(t)
	omega := 125.04 - 1934.136*t
	return e0 + 0.00256*math.Cos(degToRad(omega)) // degrees
}

func geomMeanLongSun(t float64) float64 {
	l0 := 280.46646 + t*(36000.76983+t*0.0003032)
	l0 = math.Mod(l0, 360)
	if l0 < 0 {
		l0 += 360
	}
	return l0 // degrees
}

func geomMeanAnomalySun(t float64) float64 {
	return 357.52911 + t*(35999.05029-0.0001537*t) // degrees
}

// julianDay converts a Gregorian date to a Julian day number, fixed at the
// noon UTC convention.
func julianDay(year, month, day int) float64 {
	if month <= 2 {
		year--
		month += 12
	}
	a := year / 100
	b := 2 - a + a/4
	return math.Floor(365.25*float64(year+4716)) + math.Floor(30.6001*float64(month+1)) +
		float64(day+b) - 1524.5
}

// fractionOfCentury returns the fraction of the Julian century elapsed since
// noon UTC on 2000-01-01 (Julian day 2451545).
func fractionOfCentury(jd float64) float64 {
	return (jd - 2451545) / 36525
}

func radToDeg(rad float64) float64 { return 180 * rad / math.Pi }

func degToRad(deg float64) float64 { return math.Pi * deg / 180 }
