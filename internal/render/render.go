// Package render draws a lookup.View for terminals and machine consumers.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kjstillabower/weather-lookup/internal/lookup"
)

const rule = "----------------------------------------"

// Text writes the widget as plain text: header, input line, button, then the
// single panel that matches the view's phase.
func Text(w io.Writer, v lookup.View) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", lookup.Title, rule)

	input := v.Input
	if input == "" {
		input = lookup.InputPlaceholder
	}
	fmt.Fprintf(&b, "> %s\n", input)

	button := "[" + v.SubmitLabel + "]"
	if v.SubmitDisabled {
		button += " (disabled)"
	}
	fmt.Fprintf(&b, "%s\n\n", button)

	switch {
	case v.Result != nil:
		r := v.Result
		fmt.Fprintf(&b, "%s\n", r.Location)
		fmt.Fprintf(&b, "  Temperature: %s\n", r.Temperature)
		fmt.Fprintf(&b, "  Feels like:  %s\n", r.FeelsLike)
		fmt.Fprintf(&b, "  Humidity:    %s\n", r.Humidity)
		if r.Description != "" {
			fmt.Fprintf(&b, "  %s\n", Capitalize(r.Description))
		}
	case v.Error != "":
		fmt.Fprintf(&b, "⚠️ %s\n", v.Error)
	case v.Loading:
		b.WriteString("Loading...\n")
	case v.Hint != "":
		fmt.Fprintf(&b, "%s\n", v.Hint)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// JSON writes the view as indented JSON followed by a newline.
func JSON(w io.Writer, v lookup.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Capitalize upper-cases the first letter of every word and leaves the rest
// untouched, so "light rain" becomes "Light Rain".
func Capitalize(s string) string {
	// Casers carry state; one per call keeps this safe for concurrent use.
	return cases.Title(language.Und, cases.NoLower).String(s)
}
