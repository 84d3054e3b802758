package aql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTemporalLiteral_Confirm(t *testing.T) {
	values := []string{
		"2020-12-31",
		"20201231",
		"23:59:59",
		"235959",
		"23:59:59.9",
		"23:59:59.98",
		"23:59:59.987",
		"23:59:59.987654321",
		"23:59:59Z",
		"23:59:59.987Z",
		"23:59:59+12",
		"23:59:59.987+12",
		"23:59:59.987+1259",
		"23:59:59.987+12:59",
		"235959-12:59",
		"235959.987+1259",
		"2020-12-31T23:59:59",
		"2020-12-31T23:59:59Z",
		"2020-12-31T23:59:59.013-0200",
		"2020-12-31T23:59:59-0200",
		"20201231T235959",
		"20201231T235959.013Z",
		"20200229",
		"2020-02-29",
		// syntactically valid although no such day exists
		"20200431",
		"2021-02-29",
	}
	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			assert.True(t, IsTemporalLiteral(v))
		})
	}
}

func TestIsTemporalLiteral_Reject(t *testing.T) {
	values := []string{
		"",
		"T",
		"2020-1231",
		"2020",
		"2020:12:31",
		"23-59-59",
		"23-59",
		"236060",
		"23:60:59.987",
		"23:59:59.",
		"23:59:59.1234567890",
		"23:59:59.987z",
		"23:59:59+120",
		"23:59:59.987+2",
		"23:59:59.987+123",
		"23:59:59.987+12345",
		"23:59:59.987Z+1234",
		"2020-12-31T23:59:59.",
		"2020-12-31T23:59:59.9876543210",
		"2020-12-31t23:59:59.013-0200",
		"2020-12-31T235959",
		"20201231T23:59:59",
		"23:59:59T2020-12-31",
	}
	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			assert.False(t, IsTemporalLiteral(v))
		})
	}
}

func TestStringToPrimitive(t *testing.T) {
	tests := []struct {
		in   string
		want Primitive
	}{
		{"2020-12-31T23:59:59Z", Temporal("2020-12-31T23:59:59Z")},
		{"23:59:59.987+12", Temporal("23:59:59.987+12")},
		{"20200229", Temporal("20200229")},
		{"20200431", String("20200431")},
		{"2021-02-29", String("2021-02-29")},
		{"2020-1231", String("2020-1231")},
		{"2020-12-31t23:59:59.013-0200", String("2020-12-31t23:59:59.013-0200")},
		{"baz", String("baz")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StringToPrimitive(tt.in))
		})
	}
}

func TestParseTemporal(t *testing.T) {
	p, ok := ParseTemporal("2020-12-31T10:30:15.5+01:30")
	require.True(t, ok)
	assert.True(t, p.HasDate)
	assert.True(t, p.HasTime)
	assert.True(t, p.HasOffset)
	assert.Equal(t, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), p.Date)
	assert.InDelta(t, 10*3600+30*60+15.5, p.Seconds, 1e-9)
	assert.Equal(t, 5400, p.Offset)

	p, ok = ParseTemporal("235959-12")
	require.True(t, ok)
	assert.False(t, p.HasDate)
	assert.Equal(t, -12*3600, p.Offset)

	p, ok = ParseTemporal("20201231")
	require.True(t, ok)
	assert.True(t, p.HasDate)
	assert.False(t, p.HasTime)

	_, ok = ParseTemporal("2021-02-29")
	assert.False(t, ok)
}

func TestParsePartialTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2021-03", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"202103", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2021-03-04T10", time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)},
		{"2021-03-04T10Z", time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)},
		{"2021-03-04T10:30+02:00", time.Date(2021, 3, 4, 8, 30, 0, 0, time.UTC)},
		{"20210304T1030-0100", time.Date(2021, 3, 4, 11, 30, 0, 0, time.UTC)},
		{"2021-03-04T10+01", time.Date(2021, 3, 4, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePartialTimestamp(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, s := range []string{"", "21", "2021-13", "2021-03-04T25", "2021-02-30T10", "abc"} {
		_, ok := ParsePartialTimestamp(s)
		assert.False(t, ok, s)
	}
}
