// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import "time"

// PackedDateTime is a date and time in the MS-DOS representation used
// throughout the ZIP format: a 16-bit packed date and a 16-bit packed
// time, each embedding 2-second granularity for seconds.
//
// See: https://learn.microsoft.com/en-us/windows/win32/api/oleauto/nf-oleauto-dosdatetimetovarianttime
type PackedDateTime struct {
	Date uint16
	Time uint16
}

// Year returns the packed year, in [1980, 2107].
func (d PackedDateTime) Year() int { return int((d.Date&0xFE00)>>9) + 1980 }

// Month returns the packed month, in [1, 12].
func (d PackedDateTime) Month() int { return int((d.Date & 0x1E0) >> 5) }

// Day returns the packed day of month, in [1, 31].
func (d PackedDateTime) Day() int { return int(d.Date & 0x1F) }

// Hour returns the packed hour, in [0, 23].
func (d PackedDateTime) Hour() int { return int((d.Time & 0xF800) >> 11) }

// Minute returns the packed minute, in [0, 59].
func (d PackedDateTime) Minute() int { return int((d.Time & 0x7E0) >> 5) }

// Second returns the packed second, in [0, 58], always even: MS-DOS only
// has 2-second resolution.
func (d PackedDateTime) Second() int { return int(d.Time&0x1F) << 1 }

// Time converts the packed date and time to a time.Time in the given
// location. The ZIP format carries no timezone information; callers that
// know the original zone should pass it explicitly (time.UTC otherwise).
func (d PackedDateTime) Time(loc *time.Location) time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), d.Hour(), d.Minute(), d.Second(), 0, loc)
}

// PackedDateTimeFromTime packs t's local fields (year/month/day/hour/
// minute/second as returned by the accessors of t's own location) into
// MS-DOS form. Seconds are truncated to even values.
func PackedDateTimeFromTime(t time.Time) PackedDateTime {
	year := t.Year()
	if year < 1980 {
		year = 1980
	}
	var b PackedDateTimeBuilder
	b.SetYear(year).SetMonth(int(t.Month())).SetDay(t.Day())
	b.SetHour(t.Hour()).SetMinute(t.Minute()).SetSecond(t.Second())
	return b.Build()
}

// PackedDateTimeBuilder incrementally constructs a PackedDateTime,
// mirroring the Entry/Archive builder pattern used elsewhere in this
// package (see entry.go).
type PackedDateTimeBuilder struct {
	date, time uint16
}

func (b *PackedDateTimeBuilder) SetYear(year int) *PackedDateTimeBuilder {
	b.date = b.date&^0xFE00 | uint16(year-1980)<<9
	return b
}

func (b *PackedDateTimeBuilder) SetMonth(month int) *PackedDateTimeBuilder {
	b.date = b.date&^0x1E0 | uint16(month)<<5
	return b
}

func (b *PackedDateTimeBuilder) SetDay(day int) *PackedDateTimeBuilder {
	b.date = b.date&^0x1F | uint16(day)
	return b
}

func (b *PackedDateTimeBuilder) SetHour(hour int) *PackedDateTimeBuilder {
	b.time = b.time&^0xF800 | uint16(hour)<<11
	return b
}

func (b *PackedDateTimeBuilder) SetMinute(minute int) *PackedDateTimeBuilder {
	b.time = b.time&^0x7E0 | uint16(minute)<<5
	return b
}

// SetSecond sets the seconds field. Per MS-DOS semantics this is second/2
// (i.e. a right shift by one), not a bitmask truncation: the spec's
// redesign flag calls out a source variant that incorrectly used
// `second & 0x1F`, losing the /2 scaling entirely.
func (b *PackedDateTimeBuilder) SetSecond(second int) *PackedDateTimeBuilder {
	b.time = b.time&^0x1F | uint16(second/2)
	return b
}

func (b *PackedDateTimeBuilder) Build() PackedDateTime {
	return PackedDateTime{Date: b.date, Time: b.time}
}
