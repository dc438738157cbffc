// Package status defines the lifecycle of a laundry order and the pure
// helpers used to interpret it: canonical progression, progress percentage,
// display labels, colors, and staff queue ranking.
//
// Every function here is side-effect free and safe for concurrent use.
// Unrecognized values are never rejected; they degrade to "unknown" semantics
// (0%, grey, pass-through label) so statuses introduced by the server later do
// not break older clients.
package status

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the wire value of an order status.
type Status string

// Canonical statuses, in progression order, plus the out-of-band Cancelled.
const (
	Pending   Status = "pending"
	Received  Status = "received"
	Washing   Status = "washing"
	Drying    Status = "drying"
	Folding   Status = "folding"
	Ready     Status = "ready"
	Delivered Status = "delivered"
	Cancelled Status = "cancelled"
)

// UnknownLabel is shown for an empty status.
const UnknownLabel = "Unknown"

// unknownColor is used for anything outside the canonical set.
const unknownColor = "#9E9E9E"

var progression = []Status{Pending, Received, Washing, Drying, Folding, Ready, Delivered}

var percent = map[Status]int{
	Pending:   10,
	Received:  25,
	Washing:   45,
	Drying:    60,
	Folding:   75,
	Ready:     90,
	Delivered: 100,
	Cancelled: 0,
}

var colors = map[Status]string{
	Pending:   "#FFA000",
	Received:  "#1976D2",
	Washing:   "#0288D1",
	Drying:    "#00796B",
	Folding:   "#7B1FA2",
	Ready:     "#388E3C",
	Delivered: "#2E7D32",
	Cancelled: "#D32F2F",
}

// readySynonyms are word stems the server has used for "ready" or "delivered".
// A word matches when it starts with a stem, so "undelivered" and
// "incomplete" do not.
var readySynonyms = []string{"ready", "deliver", "complete"}

// notReadyMarkers are words that negate a synonym or report a failure.
var notReadyMarkers = map[string]struct{}{
	"not": {}, "no": {}, "non": {}, "never": {},
	"fail": {}, "failed": {}, "failure": {}, "error": {},
	"cancel": {}, "cancelled": {}, "canceled": {},
	"rejected": {}, "returned": {}, "lost": {},
}

// labels is filled once at init; a cases.Caser must not be shared across goroutines.
var labels map[Status]string

func init() {
	caser := cases.Title(language.English)
	labels = make(map[Status]string, len(percent))
	for s := range percent {
		labels[s] = caser.String(string(s))
	}
}

// Parse normalizes s (trim, case-fold) and reports whether it is canonical.
// "canceled" is accepted as a spelling of Cancelled.
func Parse(s string) (Status, bool) {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	if v == "canceled" {
		v = Cancelled
	}
	if _, ok := percent[v]; ok {
		return v, true
	}
	return Status(s), false
}

// Known reports whether s is one of the canonical statuses.
func Known(s Status) bool {
	_, ok := Parse(string(s))
	return ok
}

// Progression returns the canonical order pending..delivered (without cancelled).
func Progression() []Status {
	out := make([]Status, len(progression))
	copy(out, progression)
	return out
}

// All returns every canonical status, cancelled last.
func All() []Status {
	return append(Progression(), Cancelled)
}

// Index returns the position of s in the progression, or -1 for cancelled and
// unknown values.
func Index(s Status) int {
	p, ok := Parse(string(s))
	if !ok {
		return -1
	}
	for i, v := range progression {
		if v == p {
			return i
		}
	}
	return -1
}

// ProgressPercent maps s to a completion percentage. It is non-decreasing
// along the progression; cancelled and unknown values yield 0.
func ProgressPercent(s Status) int {
	p, ok := Parse(string(s))
	if !ok {
		return 0
	}
	return percent[p]
}

// DisplayLabel returns a human-readable form of s. An empty status becomes
// "Unknown"; unrecognized values are returned unchanged.
func DisplayLabel(s Status) string {
	if strings.TrimSpace(string(s)) == "" {
		return UnknownLabel
	}
	if p, ok := Parse(string(s)); ok {
		return labels[p]
	}
	return string(s)
}

// IsTerminal reports whether no further transitions are expected.
func IsTerminal(s Status) bool {
	p, _ := Parse(string(s))
	return p == Delivered || p == Cancelled
}

// IsReadyForNotification reports whether a "ready" alert should be raised for s.
// Besides ready and delivered it accepts any status with a word starting with
// a known synonym, so label drift on the server side still triggers the alert.
// Negated or failed values ("not_ready", "delivery_failed") never match.
func IsReadyForNotification(s Status) bool {
	p, ok := Parse(string(s))
	if ok {
		return p == Ready || p == Delivered
	}
	words := strings.FieldsFunc(strings.ToLower(string(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	matched := false
	for _, w := range words {
		if _, bad := notReadyMarkers[w]; bad {
			return false
		}
		for _, syn := range readySynonyms {
			if strings.HasPrefix(w, syn) {
				matched = true
			}
		}
	}
	return matched
}

// Color returns the hex color used to render s.
func Color(s Status) string {
	if p, ok := Parse(string(s)); ok {
		return colors[p]
	}
	return unknownColor
}

// Next returns the status following s in the progression. It reports false
// for terminal and unknown statuses.
func Next(s Status) (Status, bool) {
	i := Index(s)
	if i < 0 || i+1 >= len(progression) {
		return s, false
	}
	return progression[i+1], true
}

// QueueRank orders statuses for the staff queue: in-flight work first in
// progression order, then unknown values, then delivered, then cancelled.
func QueueRank(s Status) int {
	p, ok := Parse(string(s))
	switch {
	case !ok:
		return len(progression)
	case p == Delivered:
		return len(progression) + 1
	case p == Cancelled:
		return len(progression) + 2
	default:
		return Index(p)
	}
}
