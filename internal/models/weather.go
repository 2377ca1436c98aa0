package models

import "encoding/json"

// WeatherSnapshot is the subset of current-weather data the widget displays.
// Values are immutable once built; a new lookup replaces the snapshot wholesale.
type WeatherSnapshot struct {
	Location    string           `json:"location"`
	Country     Optional[string] `json:"country"`
	Temperature float64          `json:"temperature"` // °C
	FeelsLike   float64          `json:"feelsLike"`   // °C
	Humidity    int              `json:"humidity"`    // percent, 0-100
	Description Optional[string] `json:"description"`
}

// Optional holds a value that the upstream API may omit.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a value is present.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value if present, otherwise def.
func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
