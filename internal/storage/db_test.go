package db

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUUIDRoundTrip(t *testing.T) {
	const id = "6f1c5b0a-9a0e-4a0b-8b54-2f3b9c9d1e22"

	assert.Equal(t, id, fromUUID(toUUID(id)))
	assert.Empty(t, fromUUID(toUUID("not-a-uuid")))
	assert.False(t, toUUID("").Valid)
}

func TestTextRoundTrip(t *testing.T) {
	assert.Equal(t, "Heat", fromText(toText("Heat")))
	assert.False(t, toText("").Valid)
	assert.Empty(t, fromText(toText("")))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "clean", SanitizeUTF8("clean"))
	assert.Equal(t, "", SanitizeUTF8(""))

	dirty := string([]byte{'H', 'e', 0xff, 'a', 't'})
	assert.Equal(t, "Heat", SanitizeUTF8(dirty))
}

func TestTimestamptzRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)

	assert.Equal(t, now, fromTimestamptz(toTimestamptz(now)))
	assert.False(t, toTimestamptz(time.Time{}).Valid)
	assert.True(t, fromTimestamptz(toTimestamptz(time.Time{})).IsZero())
}

func TestIntPtrRoundTrips(t *testing.T) {
	v64 := int64(42)
	assert.Equal(t, &v64, fromInt8Ptr(toInt8Ptr(&v64)))
	assert.Nil(t, fromInt8Ptr(toInt8Ptr(nil)))

	v := 1995
	assert.Equal(t, &v, fromInt4Ptr(toInt4Ptr(&v)))
	assert.Nil(t, fromInt4Ptr(toInt4Ptr(nil)))
}

func TestSafeIntToInt32(t *testing.T) {
	assert.Equal(t, int32(7), safeIntToInt32(7))
	assert.Equal(t, int32(math.MaxInt32), safeIntToInt32(math.MaxInt32+1))
	assert.Equal(t, int32(math.MinInt32), safeIntToInt32(math.MinInt32-1))
}
