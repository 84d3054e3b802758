package aql

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var temporalPattern = func() *regexp.Regexp {
	const (
		digit    = `[0-9]`
		year     = digit + digit + digit + digit
		month    = `(?:0[1-9]|1[0-2])`
		day      = `(?:0[1-9]|[12][0-9]|3[01])`
		hour     = `(?:[01][0-9]|2[0-3])`
		minute   = `[0-5][0-9]`
		second   = minute
		frac     = `(?:\.[0-9]{1,9})`
		timezone = `(?:Z|[-+]` + hour + `(?::?` + minute + `)?)`

		dateShort = year + month + day
		dateLong  = year + `-` + month + `-` + day
		timeShort = hour + minute + second
		timeLong  = hour + `:` + minute + `:` + second
	)
	return regexp.MustCompile(`^(?:` +
		dateLong + `(?:T` + timeLong + frac + `?` + timezone + `?)?` +
		`|` + dateShort + `(?:T` + timeShort + frac + `?` + timezone + `?)?` +
		`|(?:` + timeShort + `|` + timeLong + `)` + frac + `?` + timezone + `?` +
		`)$`)
}()

// IsTemporalLiteral reports whether s matches the strict ISO-8601 grammar
// for dates, times and date-times. The check is syntactic only: "2021-02-29"
// matches.
func IsTemporalLiteral(s string) bool {
	return temporalPattern.MatchString(s)
}

// StringToPrimitive types a string value: a syntactically and calendrically
// valid temporal value becomes a Temporal, everything else a String.
func StringToPrimitive(s string) Primitive {
	if IsTemporalLiteral(s) && calendarValid(s) {
		return Temporal(s)
	}
	return String(s)
}

var dateOnlyPattern = regexp.MustCompile(`^(?:[0-9]{8}|[0-9]{4}-[0-9]{2}-[0-9]{2})$`)

// splitTemporal returns the date and time parts of a temporal literal.
func splitTemporal(s string) (date, tm string) {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i], s[i+1:]
	}
	if dateOnlyPattern.MatchString(s) {
		return s, ""
	}
	return "", s
}

// calendarValid checks the date part of a temporal literal, if any.
func calendarValid(s string) bool {
	date, _ := splitTemporal(s)
	if date == "" {
		return true
	}
	date = strings.ReplaceAll(date, "-", "")
	y, err1 := strconv.Atoi(date[0:4])
	m, err2 := strconv.Atoi(date[4:6])
	d, err3 := strconv.Atoi(date[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && int(t.Month()) == m && t.Day() == d
}

// TemporalParts holds the components of a temporal literal.
type TemporalParts struct {
	HasDate   bool
	HasTime   bool
	HasOffset bool
	Date      time.Time // date at midnight UTC, valid if HasDate
	Seconds   float64   // seconds since midnight including fraction, valid if HasTime
	Offset    int       // offset in seconds, valid if HasOffset
}

// ParseTemporal decomposes a temporal literal. ok is false for values that
// do not match the grammar or are calendrically invalid.
func ParseTemporal(s string) (TemporalParts, bool) {
	var p TemporalParts
	if !IsTemporalLiteral(s) || !calendarValid(s) {
		return p, false
	}
	datePart, timePart := splitTemporal(s)
	if datePart != "" {
		d := strings.ReplaceAll(datePart, "-", "")
		y, _ := strconv.Atoi(d[0:4])
		m, _ := strconv.Atoi(d[4:6])
		dd, _ := strconv.Atoi(d[6:8])
		p.HasDate = true
		p.Date = time.Date(y, time.Month(m), dd, 0, 0, 0, 0, time.UTC)
	}
	if timePart == "" {
		return p, true
	}
	p.HasTime = true
	zone := ""
	if i := strings.IndexAny(timePart, "Z+-"); i >= 0 {
		timePart, zone = timePart[:i], timePart[i:]
	}
	frac := 0.0
	if i := strings.IndexByte(timePart, '.'); i >= 0 {
		frac, _ = strconv.ParseFloat("0"+timePart[i:], 64)
		timePart = timePart[:i]
	}
	t := strings.ReplaceAll(timePart, ":", "")
	hh, _ := strconv.Atoi(t[0:2])
	mm, _ := strconv.Atoi(t[2:4])
	ss, _ := strconv.Atoi(t[4:6])
	p.Seconds = float64(hh*3600+mm*60+ss) + frac
	if zone != "" {
		p.HasOffset = true
		if zone != "Z" {
			sign := 1
			if zone[0] == '-' {
				sign = -1
			}
			z := strings.ReplaceAll(zone[1:], ":", "")
			zh, _ := strconv.Atoi(z[0:2])
			zm := 0
			if len(z) == 4 {
				zm, _ = strconv.Atoi(z[2:4])
			}
			p.Offset = sign * (zh*3600 + zm*60)
		}
	}
	return p, true
}

var partialTimestampLayouts = func() []string {
	var out []string
	for _, base := range []string{"2006-01-02T15:04", "2006-01-02T15", "20060102T1504", "20060102T15"} {
		for _, zone := range []string{"", "Z07:00", "Z0700", "Z07"} {
			out = append(out, base+zone)
		}
	}
	return append(out, "2006-01", "200601", "2006")
}()

// ParsePartialTimestamp reads the reduced precision forms the strict grammar
// rejects: a year, a year and month, or a date with hours and optionally
// minutes. Omitted parts take the start of the period; without an offset
// the value is UTC.
func ParsePartialTimestamp(s string) (time.Time, bool) {
	for _, layout := range partialTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
