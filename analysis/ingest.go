package analysis

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dimchansky/utfbom"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// ReadEventsFile loads raw events from a local export. JSON arrays,
// `{"events": [...]}` objects, NDJSON, and CSV with a header row are all
// accepted; the format is chosen by extension, falling back to content
// sniffing for anything else.
func ReadEventsFile(path string) ([]RawEvent, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl":
		return readJSONEventsFile(path)
	case ".csv":
		return readCSVEventsFile(path)
	}

	events, err := readJSONEventsFile(path)
	if err == nil && len(events) > 0 {
		return events, nil
	}
	return readCSVEventsFile(path)
}

func readJSONEventsFile(path string) ([]RawEvent, error) {
	fs, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer fs.Close()

	sr, _ := utfbom.Skip(fs)
	return readJSONEvents(sr)
}

type eventsEnvelope struct {
	Events []RawEvent `json:"events"`
}

func readJSONEvents(r io.Reader) ([]RawEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var events []RawEvent
		if err := jsoniter.UnmarshalFromString(trimmed, &events); err != nil {
			return nil, errors.WithStack(err)
		}
		return events, nil

	case '{':
		head := trimmed
		if len(head) > 2000 {
			head = head[:2000]
		}
		if strings.Contains(head, `"events"`) {
			var envelope eventsEnvelope
			if err := jsoniter.UnmarshalFromString(trimmed, &envelope); err != nil {
				return nil, errors.WithStack(err)
			}
			return envelope.Events, nil
		}
	}

	// NDJSON. Unparsable lines are skipped so a truncated tail does not
	// invalidate the rest of the export.
	var events []RawEvent
	sc := bufio.NewScanner(strings.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var event RawEvent
		if err := jsoniter.UnmarshalFromString(line, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return events, nil
}

func readCSVEventsFile(path string) ([]RawEvent, error) {
	fs, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer fs.Close()

	sr, _ := utfbom.Skip(fs)

	cr := csv.NewReader(sr)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var events []RawEvent
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}

		row := make(RawEvent, len(header))
		for i, column := range header {
			if i >= len(record) {
				break
			}
			row[column] = record[i]
		}
		events = append(events, row)
	}
	return events, nil
}
