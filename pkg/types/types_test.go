package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRGB(t *testing.T) {
	c, err := ParseRGB("12, 34,255")
	require.NoError(t, err)
	assert.Equal(t, RGB{12, 34, 255}, c)
	assert.Equal(t, "12,34,255", c.String())

	for _, bad := range []string{"", "1,2", "1,2,3,4", "a,b,c", "0,0,256", "-1,0,0"} {
		_, err := ParseRGB(bad)
		assert.True(t, errors.Is(err, ErrInvalidColor), "input %q", bad)
	}
}

func TestMarginsValidate(t *testing.T) {
	assert.NoError(t, Margins{}.Validate())
	assert.NoError(t, Margins{Top: 1, Bottom: 2, Left: 3, Right: 4}.Validate())
	assert.ErrorIs(t, Margins{Left: -1}.Validate(), ErrNegativeMargin)

	m := Margins{Top: 1, Bottom: 2, Left: 3, Right: 4}
	assert.Equal(t, 7, m.Horizontal())
	assert.Equal(t, 3, m.Vertical())
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Result{
		{Status: StatusProcessed},
		{Status: StatusProcessed},
		{Status: StatusSkipped},
		{Status: StatusFailed},
	})
	assert.Equal(t, Summary{Processed: 2, Skipped: 1, Failed: 1}, s)
}

func TestPairPaths(t *testing.T) {
	p := Pair{InputDir: "in/A", Background: "A-R-1.png", Foreground: "A-RA-1.png"}
	assert.Equal(t, "in/A/A-R-1.png", p.BackgroundPath())
	assert.Equal(t, "in/A/A-RA-1.png", p.ForegroundPath())
	assert.Contains(t, p.ID(), "A-RA-1.png")
}
