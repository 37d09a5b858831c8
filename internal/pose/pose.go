// Package pose provides the 7-element pose representation shared between the
// control surface, the scene loader and the drift monitor.
//
// A pose is an orientation quaternion (w, x, y, z) followed by a translation
// (tx, ty, tz). Translations are carried in metres everywhere inside the
// daemon; the engine works in its own units and the conversion factor
// UnitsPerMeter is applied exactly once, at the engine boundary. Callers that
// hand a pose to the engine (placement, drift comparison) must scale it with
// ScaledTranslation(UnitsPerMeter) themselves so both sides of any comparison
// use the same units.
package pose

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// UnitsPerMeter is the engine's native unit scale (centimetres).
const UnitsPerMeter = 100.0

// Pose is an immutable rigid placement: orientation plus translation.
type Pose struct {
	Orientation quat.Number
	Translation r3.Vec
}

// Default returns the identity pose: no rotation, origin translation.
func Default() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// New builds a pose from 7 scalars ordered w, x, y, z, tx, ty, tz.
func New(e [7]float64) Pose {
	return Pose{
		Orientation: quat.Number{Real: e[0], Imag: e[1], Jmag: e[2], Kmag: e[3]},
		Translation: r3.Vec{X: e[4], Y: e[5], Z: e[6]},
	}
}

// Parse reads a pose from its control-surface string form: seven
// comma-separated numbers, optionally wrapped in square brackets, ordered
// w, x, y, z, tx, ty, tz. The orientation must be normalizable.
func Parse(s string) (Pose, error) {
	cleaned := strings.NewReplacer("[", "", "]", "").Replace(s)
	fields := strings.Split(cleaned, ",")
	if len(fields) != 7 {
		return Pose{}, fmt.Errorf("pose must have exactly 7 fields, got %d", len(fields))
	}

	var e [7]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Pose{}, fmt.Errorf("pose field %d is not numeric: %q", i, strings.TrimSpace(f))
		}
		e[i] = v
	}

	p := New(e)
	n := quat.Abs(p.Orientation)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Pose{}, fmt.Errorf("pose orientation %v is not normalizable", e[:4])
	}
	return p, nil
}

// Elements returns the pose as its 7 scalars, w, x, y, z, tx, ty, tz.
func (p Pose) Elements() [7]float64 {
	return [7]float64{
		p.Orientation.Real, p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag,
		p.Translation.X, p.Translation.Y, p.Translation.Z,
	}
}

// String renders the pose in its control-surface form, parseable by Parse.
func (p Pose) String() string {
	e := p.Elements()
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Equal reports element-wise equality. The loader uses this to decide whether
// a placement request is a no-op, so it is deliberately exact rather than
// tolerance-based.
func (p Pose) Equal(q Pose) bool {
	return p.Orientation == q.Orientation && p.Translation == q.Translation
}

// ScaledTranslation returns a copy with the translation multiplied by f. The
// orientation passes through untouched.
func (p Pose) ScaledTranslation(f float64) Pose {
	return Pose{Orientation: p.Orientation, Translation: r3.Scale(f, p.Translation)}
}

// unit returns the orientation normalized to a unit quaternion.
func (p Pose) unit() quat.Number {
	return quat.Scale(1/quat.Abs(p.Orientation), p.Orientation)
}

// Delta computes the relative transform inv(a) * b and reduces it to the two
// quantities the drift monitor cares about: the planar (XY) translation
// magnitude and the yaw angle in degrees.
func Delta(a, b Pose) (planar, yawDeg float64) {
	qa := a.unit()
	rel := quat.Mul(quat.Conj(qa), b.unit())
	relT := r3.Rotation(quat.Conj(qa)).Rotate(r3.Sub(b.Translation, a.Translation))

	planar = math.Hypot(relT.X, relT.Y)
	yawDeg = yawDegrees(rel)
	return planar, yawDeg
}

// yawDegrees extracts the Z-axis rotation of a unit quaternion in degrees.
func yawDegrees(q quat.Number) float64 {
	siny := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosy := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(siny, cosy) * 180 / math.Pi
}
