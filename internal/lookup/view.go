package lookup

import (
	"math"
	"strconv"

	"github.com/kjstillabower/weather-lookup/internal/models"
)

// Fixed widget copy.
const (
	Title             = "Simple Weather"
	InputPlaceholder  = "Enter city name, e.g. London"
	SubmitLabel       = "Get Weather"
	SubmitLabelActive = "Loading..."
	HintText          = "Tip: try searching for major cities first to test it out."
)

// View is what the presentation layer draws. Exactly one of Hint, Loading,
// Error and Result is populated, mirroring the active State.
type View struct {
	Phase          string      `json:"phase"`
	Input          string      `json:"input"`
	SubmitDisabled bool        `json:"submitDisabled"`
	SubmitLabel    string      `json:"submitLabel"`
	Loading        bool        `json:"loading"`
	Hint           string      `json:"hint,omitempty"`
	Error          string      `json:"error,omitempty"`
	Result         *ResultView `json:"result,omitempty"`
}

// ResultView is the formatted result panel.
type ResultView struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	FeelsLike   string `json:"feelsLike"`
	Humidity    string `json:"humidity"`
	Description string `json:"description,omitempty"`
}

// View returns the render projection of the current query and state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	return Project(c.query, c.state)
}

// Project maps an input value and state to a View.
func Project(input string, st State) View {
	v := View{
		Input:       input,
		SubmitLabel: SubmitLabel,
	}
	if st == nil {
		st = Idle{}
	}
	v.Phase = st.Phase().String()
	switch s := st.(type) {
	case Idle:
		v.Hint = HintText
	case Loading:
		v.Loading = true
		v.SubmitDisabled = true
		v.SubmitLabel = SubmitLabelActive
	case Failure:
		v.Error = s.Message
	case Success:
		v.Result = FormatSnapshot(s.Snapshot)
	}
	return v
}

// FormatSnapshot renders a snapshot the way the result panel shows it.
func FormatSnapshot(s models.WeatherSnapshot) *ResultView {
	location := s.Location
	if country, ok := s.Country.Get(); ok {
		location += ", " + country
	}
	return &ResultView{
		Location:    location,
		Temperature: FormatCelsius(s.Temperature),
		FeelsLike:   FormatCelsius(s.FeelsLike),
		Humidity:    strconv.Itoa(s.Humidity) + "%",
		Description: s.Description.OrElse(""),
	}
}

// FormatCelsius rounds half up, so 15.5 → 16 and -2.5 → -2, and appends °C.
func FormatCelsius(t float64) string {
	r := math.Floor(t)
	if t-r >= 0.5 {
		r++
	}
	return strconv.Itoa(int(r)) + "°C"
}
