package weekly

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/risk"
)

func TestPrintTable(t *testing.T) {
	days := []risk.DaySummary{
		{Name: "Mon", Date: "2026-10-12", Risk: 0, Label: risk.LabelNone},
		{Name: "Tue", Date: "2026-10-13", Risk: 1.5, Label: "MEDIUM", Count: 4},
	}

	var out bytes.Buffer
	require.NoError(t, printTable(&out, days))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"DAY", "DATE", "RISK", "LABEL", "READINGS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Mon", "2026-10-12", "0.00", "NONE", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"Tue", "2026-10-13", "1.50", "MEDIUM", "4"}, strings.Fields(lines[2]))
}
