package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/presearch-exporter/internal/config"
)

func at(hour, minute, second int) time.Time {
	return time.Date(2024, time.March, 9, hour, minute, second, 0, time.UTC)
}

func TestDuration_CallerSince(t *testing.T) {
	p := NewDuration(20 * time.Minute)
	now := at(10, 30, 45)

	d := p.Decide(now, Request{Since: 60 * time.Second, HasSince: true})

	assert.True(t, d.IncludeStats)
	assert.Equal(t, now.Add(-60*time.Second), d.Start)
	assert.Equal(t, "2024-03-09 10:29", d.StartDate())
}

func TestDuration_DefaultSince(t *testing.T) {
	p := NewDuration(20 * time.Minute)

	d := p.Decide(at(0, 10, 0), Request{})

	assert.True(t, d.IncludeStats)
	assert.Equal(t, "2024-03-08 23:50", d.StartDate())
}

func TestDuration_ZeroSinceIsHonoured(t *testing.T) {
	p := NewDuration(20 * time.Minute)
	now := at(8, 0, 0)

	d := p.Decide(now, Request{Since: 0, HasSince: true})

	assert.Equal(t, now, d.Start)
}

func TestDuration_NonPositiveDefault(t *testing.T) {
	assert.Equal(t, config.DefaultSince, NewDuration(0).DefaultSince)
}

func TestDecision_StartDateIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, time.March, 9, 12, 5, 0, 0, loc)

	d := NewDuration(time.Minute).Decide(now, Request{})

	assert.Equal(t, "2024-03-09 10:04", d.StartDate())
}

func TestCadence_Decide(t *testing.T) {
	p, err := NewCadence(config.DefaultCadenceMinutes, 15*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		now    time.Time
		want   bool
		wantAt string
	}{
		{"minute 0", at(9, 0, 5), true, "2024-03-09 08:45"},
		{"minute 7", at(9, 7, 0), false, ""},
		{"minute 15", at(9, 15, 59), true, "2024-03-09 09:00"},
		{"minute 22", at(9, 22, 0), true, "2024-03-09 09:07"},
		{"minute 29", at(9, 29, 0), false, ""},
		{"minute 45", at(9, 45, 0), true, "2024-03-09 09:30"},
		{"minute 59", at(9, 59, 0), false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := p.Decide(tc.now, Request{})
			assert.Equal(t, tc.want, d.IncludeStats)
			if tc.want {
				assert.Equal(t, tc.wantAt, d.StartDate())
			} else {
				assert.True(t, d.Start.IsZero())
			}
		})
	}
}

func TestCadence_IgnoresCallerSince(t *testing.T) {
	p, err := NewCadence([]int{15}, 15*time.Minute)
	require.NoError(t, err)
	now := at(11, 15, 0)

	d := p.Decide(now, Request{Since: 3 * time.Hour, HasSince: true})

	assert.True(t, d.IncludeStats)
	assert.Equal(t, now.Add(-15*time.Minute), d.Start)
}

func TestCadence_UsesUTCMinute(t *testing.T) {
	p, err := NewCadence([]int{15}, 15*time.Minute)
	require.NoError(t, err)

	// 20:45 in a +05:30 zone is 15:15 UTC.
	loc := time.FixedZone("IST", 5*60*60+30*60)
	d := p.Decide(time.Date(2024, time.March, 9, 20, 45, 0, 0, loc), Request{})

	assert.True(t, d.IncludeStats)
}

func TestNewCadence_Invalid(t *testing.T) {
	_, err := NewCadence(nil, time.Minute)
	assert.Error(t, err)

	_, err = NewCadence([]int{60}, time.Minute)
	assert.Error(t, err)

	_, err = NewCadence([]int{0}, 0)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p, err := New(config.Default().Stats)
	require.NoError(t, err)
	assert.Equal(t, config.PolicyDuration, p.Name())

	cfg := config.Default().Stats
	cfg.Policy = config.PolicyCadence
	p, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.PolicyCadence, p.Name())

	cfg.Policy = "hourly"
	_, err = New(cfg)
	assert.Error(t, err)
}
