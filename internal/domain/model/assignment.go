// Package model contains domain records passed between layers.
package model

import (
	"math"
	"strings"
	"time"
)

// Assignment is one labeller's annotation of one site.
// Name and AssignmentID together identify a row.
type Assignment struct {
	Name         string  // site identifier
	Class        string  // class label
	AssignmentID string  // labelling batch/assignment identifier, e.g. "1a"
	Labeller     string  // labeller identifier
	Status       string  // trust status as delivered, e.g. "Trusted"
	Score        float64 // NaN when absent
	N            float64
	Area         float64
	Qscore       float64
	Rscore       float64
	X            float64 // centroid x
	Y            float64 // centroid y
	FArea        float64 // mapped field area
	NFlds        float64 // mapped field count
	Image        string  // source image identifier
	Chip         string  // chip identifier
}

// Numeric column names accepted by Field, keyed case-insensitively.
var numericFields = map[string]func(a *Assignment) float64{
	"score":  func(a *Assignment) float64 { return a.Score },
	"n":      func(a *Assignment) float64 { return a.N },
	"area":   func(a *Assignment) float64 { return a.Area },
	"qscore": func(a *Assignment) float64 { return a.Qscore },
	"rscore": func(a *Assignment) float64 { return a.Rscore },
	"x":      func(a *Assignment) float64 { return a.X },
	"y":      func(a *Assignment) float64 { return a.Y },
	"farea":  func(a *Assignment) float64 { return a.FArea },
	"nflds":  func(a *Assignment) float64 { return a.NFlds },
}

// HasNumericField reports whether name resolves to a numeric column.
func HasNumericField(name string) bool {
	_, ok := numericFields[strings.ToLower(name)]
	return ok
}

// Field returns the value of the numeric column called name.
func (a *Assignment) Field(name string) (float64, bool) {
	get, ok := numericFields[strings.ToLower(name)]
	if !ok {
		return math.NaN(), false
	}
	return get(a), true
}

// Outcome is the result kind of one rasterization attempt.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// MaskResult is the outcome of rasterizing one assignment. Workers create
// it once; nothing mutates it afterwards.
type MaskResult struct {
	Assignment     Assignment
	Index          int // position of the assignment in the submitted catalog
	Outcome        Outcome
	MaskPath       string
	Err            string
	FieldPixels    int
	BoundaryPixels int
	Duration       time.Duration
}

// Failed builds a failed result for a.
func Failed(index int, a Assignment, err error) MaskResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return MaskResult{Assignment: a, Index: index, Outcome: OutcomeFailed, Err: msg}
}
