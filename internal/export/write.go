package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	return nil
}

// ReadJSON reads records written by WriteJSON.
func ReadJSON(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	return records, nil
}

// CSVHeader lists the CSV columns in order.
var CSVHeader = []string{
	"id", "tenant_id", "category", "priority", "severity", "cooldown_days",
	"max_per_day", "enabled", "tags", "logic", "locale", "messages",
}

// WriteCSV writes one row per record. Tags, logic and messages are JSON encoded.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, rec := range records {
		tags, err := compactJSON(rec.Tags)
		if err != nil {
			return err
		}
		logic, err := compactJSON(rec.Logic)
		if err != nil {
			return err
		}
		msgs, err := compactJSON(rec.Messages)
		if err != nil {
			return err
		}
		row := []string{
			rec.ID,
			rec.TenantID,
			rec.Category,
			strconv.Itoa(rec.Priority),
			strconv.Itoa(rec.Severity),
			strconv.Itoa(rec.CooldownDays),
			strconv.Itoa(rec.MaxPerDay),
			strconv.FormatBool(rec.Enabled),
			tags,
			logic,
			rec.Locale,
			msgs,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func compactJSON(v any) (string, error) {
	b, err := MarshalCompact(v)
	if err != nil {
		return "", fmt.Errorf("encoding csv column: %w", err)
	}
	return string(b), nil
}

// MarshalCompact encodes v as single-line JSON without escaping <, > and &,
// which appear in condition operators.
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
