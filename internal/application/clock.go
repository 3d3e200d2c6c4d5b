package application

import "time"

// Clock abstracts time so lifecycle timestamps are controllable in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
