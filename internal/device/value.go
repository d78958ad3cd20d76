package device

// Value is the tagged result of one capability query: either a known
// integer or the not-applicable sentinel recorded when the driver
// reports an attribute as unsupported.
type Value struct {
	v     int64
	known bool
}

// IntOf returns a known Value.
func IntOf(v int64) Value {
	return Value{v: v, known: true}
}

// NA returns the not-applicable sentinel.
func NA() Value {
	return Value{}
}

// Known reports whether the value carries a real measurement.
func (v Value) Known() bool {
	return v.known
}

// Int64 returns the measurement, 0 when not applicable.
func (v Value) Int64() int64 {
	return v.v
}

// Bool interprets the measurement as a feature flag.
func (v Value) Bool() bool {
	return v.known && v.v != 0
}

// Dim2 is a pair of queried extents.
type Dim2 struct {
	X Value
	Y Value
}

// Dim3 is a triple of queried extents.
type Dim3 struct {
	X Value
	Y Value
	Z Value
}

// Layered1D is a layered 1D texture limit.
type Layered1D struct {
	Width  Value
	Layers Value
}

// Layered2D is a layered 2D texture limit.
type Layered2D struct {
	Width  Value
	Height Value
	Layers Value
}
