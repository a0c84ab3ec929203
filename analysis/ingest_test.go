package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadEventsFileJSONArray(t *testing.T) {
	path := writeTempFile(t, "events.json",
		`[{"timestamp": 1000, "type": "damage", "targetName": "Akame"},
		  {"timestamp": 2000, "type": "damage", "targetName": "Bela"}]`)

	events, err := ReadEventsFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Akame", asString(events[0]["targetName"]))
}

func TestReadEventsFileEnvelope(t *testing.T) {
	path := writeTempFile(t, "export.json",
		`{"events": [{"timestamp": 1000, "type": "damage"}], "count": 1}`)

	events, err := ReadEventsFile(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestReadEventsFileNDJSON(t *testing.T) {
	path := writeTempFile(t, "events.jsonl",
		"{\"timestamp\": 1000}\n\n{\"timestamp\": 2000}\nnot json\n{\"timestamp\": 3000}\n")

	events, err := ReadEventsFile(path)
	require.NoError(t, err)
	// The unparsable line is skipped, not fatal.
	require.Len(t, events, 3)
}

func TestReadEventsFileCSV(t *testing.T) {
	path := writeTempFile(t, "events.csv",
		"timestamp,type,Target,Ability Name\n1000,damage,Akame,Besiege\n2000,damage,Bela,Besiege\n")

	events, err := ReadEventsFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	ev := NormalizeEvent(events[0])
	assert.Equal(t, "Akame", ev.TargetName)
	assert.Equal(t, "Besiege", ev.AbilityName)
	require.NotNil(t, ev.Timestamp)
	assert.Equal(t, 1000.0, *ev.Timestamp)
}

func TestReadEventsFileCSVWithBOM(t *testing.T) {
	path := writeTempFile(t, "events.csv",
		"\xef\xbb\xbftimestamp,type,Target\n1000,damage,Akame\n")

	events, err := ReadEventsFile(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	// The BOM is stripped before the header row is read.
	assert.Equal(t, "1000", asString(events[0]["timestamp"]))
	assert.Equal(t, "Akame", asString(events[0]["Target"]))
}

func TestReadEventsFileUnknownExtensionSniffs(t *testing.T) {
	jsonPath := writeTempFile(t, "dump.txt",
		`[{"timestamp": 1000, "type": "damage"}]`)
	events, err := ReadEventsFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	csvPath := writeTempFile(t, "dump.dat",
		"timestamp,type\n1000,damage\n")
	events, err = ReadEventsFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestReadEventsFeedsCountHits(t *testing.T) {
	path := writeTempFile(t, "events.csv",
		"timestamp,type,Target,Ability Name\n"+
			"1000,damage,Akame,Besiege\n"+
			"1200,damage,Akame,Besiege\n"+
			"5000,damage,Akame,Besiege\n")

	events, err := ReadEventsFile(path)
	require.NoError(t, err)

	agg := CountHits(events, HitFilter{DedupeMS: 1500})
	assert.Equal(t, 2, agg.HitsByPlayer["Akame"])
}
