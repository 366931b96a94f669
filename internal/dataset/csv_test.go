package dataset

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	csvData := `event_id,organization,ticker,disclosure_date,breach_type,records_affected,severity,source
BR-0001,Acme Corp,ACME,2019-03-14,hacking,"1,200,000",High,prc
BR-0002,Globex Inc,GBX,2019-05-02,insider,5000,medium,prc
BR-0003,Initech LLC,,2020-01-20,physical,0,,ag
`
	path := writeTemp(t, "breaches.csv", csvData)

	events, err := LoadCSV(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "BR-0001", events[0].EventID)
	assert.Equal(t, "Acme Corp", events[0].Organization)
	assert.Equal(t, "ACME", events[0].Ticker)
	assert.Equal(t, time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC), events[0].DisclosureDate)
	assert.Equal(t, int64(1200000), events[0].RecordsAffected)
	assert.Equal(t, SeverityHigh, events[0].Severity)

	assert.Equal(t, SeverityModerate, events[1].Severity)

	assert.False(t, events[2].HasTicker())
	assert.Equal(t, SeverityUnknown, events[2].Severity)
}

func TestLoadCSVAlternateHeaders(t *testing.T) {
	csvData := `id,Company,Symbol,Date Made Public,Type of Breach,Total Records
1,Acme,ACME,03/14/2019,HACK,100
`
	path := writeTemp(t, "alt.csv", csvData)

	events, err := LoadCSV(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].EventID)
	assert.Equal(t, time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC), events[0].DisclosureDate)
	assert.Equal(t, int64(100), events[0].RecordsAffected)
}

func TestLoadCSVRejectsDuplicateIDs(t *testing.T) {
	csvData := `event_id,organization,disclosure_date
BR-1,Acme,2019-01-01
BR-1,Globex,2019-02-01
`
	path := writeTemp(t, "dup.csv", csvData)

	_, err := LoadCSV(path, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate event id BR-1")
}

func TestLoadCSVMissingRequiredColumn(t *testing.T) {
	csvData := `organization,disclosure_date
Acme,2019-01-01
`
	path := writeTemp(t, "missing.csv", csvData)

	_, err := LoadCSV(path, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event_id")
}

func TestLoadCSVRejectsBadDate(t *testing.T) {
	csvData := `event_id,organization,disclosure_date
BR-1,Acme,notadate
`
	path := writeTemp(t, "baddate.csv", csvData)

	_, err := LoadCSV(path, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date")
}

func TestLoadCSVHandlesBOM(t *testing.T) {
	csvData := "\uFEFFevent_id,organization,disclosure_date\nBR-1,Acme,2019-01-01\n"
	path := writeTemp(t, "bom.csv", csvData)

	events, err := LoadCSV(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "BR-1", events[0].EventID)
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"High", SeverityHigh},
		{"critical", SeverityHigh},
		{"MEDIUM", SeverityModerate},
		{"minor", SeverityLow},
		{"", SeverityUnknown},
		{"n/a", SeverityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSeverity(tt.raw))
		})
	}
}

func TestBreachEventValidate(t *testing.T) {
	valid := BreachEvent{
		EventID:        "BR-1",
		Organization:   "Acme",
		DisclosureDate: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, valid.Validate())

	missingOrg := valid
	missingOrg.Organization = "  "
	assert.Error(t, missingOrg.Validate())

	negative := valid
	negative.RecordsAffected = -1
	assert.Error(t, negative.Validate())

	// Tag-level checks fire before the domain checks.
	missingID := valid
	missingID.EventID = ""
	err := missingID.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EventID")
}

func TestWriteCSVRoundTrip(t *testing.T) {
	events := []BreachEvent{
		{
			EventID:         "BR-0001",
			Organization:    "Acme Corp",
			Ticker:          "ACME",
			DisclosureDate:  time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC),
			BreachType:      "hacking",
			RecordsAffected: 1200000,
			Severity:        SeverityHigh,
			Source:          "prc",
		},
		{
			EventID:        "BR-0002",
			Organization:   "Initech LLC",
			DisclosureDate: time.Date(2020, 1, 20, 0, 0, 0, 0, time.UTC),
			Severity:       SeverityUnknown,
			Source:         "ag",
		},
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, events))

	loaded, err := LoadCSV(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, events[0], loaded[0])
	assert.Equal(t, events[1], loaded[1])
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0644))
	return path
}
