package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/schedule"
)

// SwitchRequest is one switch event in a timer request.
type SwitchRequest struct {
	Kind    string `json:"kind"`
	Minutes int    `json:"minutes"`
}

// TimerRequest is the body of the week-timer and weekend-timer endpoints.
type TimerRequest struct {
	On  SwitchRequest `json:"on"`
	Off SwitchRequest `json:"off"`
}

// DateTimeRequest is the body of the datetime endpoint. The values are
// local time as shown on a clock, including any DST offset.
type DateTimeRequest struct {
	Year    int `json:"year"`
	Month   int `json:"month"`
	Day     int `json:"day"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// ScreenBlankRequest is the body of the screen-blank endpoint.
type ScreenBlankRequest struct {
	Minutes int `json:"minutes"`
}

func parseSwitch(sr SwitchRequest) (schedule.Switch, error) {
	switch sr.Kind {
	case "fixed":
		if sr.Minutes < 0 || sr.Minutes >= calendar.MinutesPerDay {
			return schedule.Switch{}, fmt.Errorf("fixed minute %d out of range", sr.Minutes)
		}
		return schedule.FixedAt(sr.Minutes), nil
	case "sunrise", "sunset":
		if sr.Minutes <= -calendar.MinutesPerDay || sr.Minutes >= calendar.MinutesPerDay {
			return schedule.Switch{}, fmt.Errorf("solar offset %d out of range", sr.Minutes)
		}
		if sr.Kind == "sunrise" {
			return schedule.AtSunrise(sr.Minutes), nil
		}
		return schedule.AtSunset(sr.Minutes), nil
	}
	return schedule.Switch{}, fmt.Errorf("unknown switch kind %q", sr.Kind)
}

func decodeTimerRequest(r *http.Request) (schedule.Rule, error) {
	var req TimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return schedule.Rule{}, fmt.Errorf("invalid request body: %w", err)
	}

	on, err := parseSwitch(req.On)
	if err != nil {
		return schedule.Rule{}, fmt.Errorf("on: %w", err)
	}
	off, err := parseSwitch(req.Off)
	if err != nil {
		return schedule.Rule{}, fmt.Errorf("off: %w", err)
	}
	return schedule.Rule{On: on, Off: off}, nil
}

func decodeDateTimeRequest(r *http.Request) (calendar.Date, int, error) {
	var req DateTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return calendar.Date{}, 0, fmt.Errorf("invalid request body: %w", err)
	}

	if req.Year < 2000 || req.Year > 2070 {
		return calendar.Date{}, 0, fmt.Errorf("year %d out of range", req.Year)
	}
	if req.Month < 1 || req.Month > 12 {
		return calendar.Date{}, 0, fmt.Errorf("month %d out of range", req.Month)
	}
	if req.Day < 1 || req.Day > calendar.DaysInMonth(req.Month, req.Year) {
		return calendar.Date{}, 0, fmt.Errorf("day %d out of range", req.Day)
	}
	if req.Hours < 0 || req.Hours > 23 {
		return calendar.Date{}, 0, fmt.Errorf("hour %d out of range", req.Hours)
	}
	if req.Minutes < 0 || req.Minutes > 59 {
		return calendar.Date{}, 0, fmt.Errorf("minute %d out of range", req.Minutes)
	}

	date := calendar.New(req.Year, req.Month, req.Day)
	return date, req.Hours*calendar.MinutesPerHour + req.Minutes, nil
}

func decodeScreenBlankRequest(r *http.Request) (int, error) {
	var req ScreenBlankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Minutes < 0 || req.Minutes > 255 {
		return 0, fmt.Errorf("screen blank timeout %d out of range", req.Minutes)
	}
	return req.Minutes, nil
}
