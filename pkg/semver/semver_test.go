package semver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	valid := []string{"1.0.0", "0.0.1", "10.20.30", "1.0.0-alpha", "1.0.0-alpha.1", "1.0.0-rc.1+build.5", "2.1.3+20240101"}
	for _, s := range valid {
		v, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, v.String())
	}

	invalid := []string{"", "1", "1.0", "1.0.", "1.0.0-", "1.0.0+", "a.b.c", "1.x.0", "v1.0.0", "1.0.0.0", " 1.0.0"}
	for _, s := range invalid {
		_, err := Parse(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, ErrInvalidVersionFormat), s)
	}
}

func TestParse_Components(t *testing.T) {
	v := MustParse("3.4.5-beta.2+sha.abc")
	assert.Equal(t, uint64(3), v.Major())
	assert.Equal(t, uint64(4), v.Minor())
	assert.Equal(t, uint64(5), v.Patch())
	assert.Equal(t, "beta.2", v.Prerelease())
	assert.Equal(t, "sha.abc", v.Metadata())
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		candidate string
		baseline  string
		want      bool
	}{
		{"2.0.0", "1.0.0", true},
		{"1.10.0", "1.9.0", true},
		{"1.0.1", "1.0.0", true},
		{"1.0.0", "1.0.0", false},
		{"1.5.0", "2.0.0", false},
		{"1.0.0", "1.0.0-rc.1", true},
		{"1.0.0-rc.1", "1.0.0", false},
		{"1.0.0-beta", "1.0.0-alpha", true},
		{"1.0.0-alpha.2", "1.0.0-alpha.10", false},
		{"1.0.0+build.2", "1.0.0+build.1", false},
		{"garbage", "1.0.0", false},
		{"2.0.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate+"_vs_"+tt.baseline, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNewer(tt.candidate, tt.baseline))
		})
	}
}

func TestCompare(t *testing.T) {
	c, err := Compare("1.2.3", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = Compare("0.9.0", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = Compare("1.0.0", "1.0.0-")
	assert.ErrorIs(t, err, ErrInvalidVersionFormat)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nope") })
}
