package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"ArtalePriceBot/internal/model"
)

// snapshotRecord mirrors one element of the upstream "snapshots" array.
type snapshotRecord struct {
	ItemName            looseString `json:"item_name"`
	ItemType            looseString `json:"item_type"`
	Low                 looseInt    `json:"low"`
	Median              looseInt    `json:"median"`
	High                looseInt    `json:"high"`
	Volume              looseInt    `json:"volume"`
	RecentChangePercent looseFloat  `json:"recent_change_percent"`
	SnapshotDate        looseString `json:"snapshot_date"`
}

// DecodeSnapshots parses a snapshot payload. It accepts {"snapshots":[...]},
// {"success":true,"data":[...]} or a bare array. Records that fail to decode
// are dropped individually.
func DecodeSnapshots(body []byte) ([]model.ItemRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}

	var raws []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("decode snapshot array: %w", err)
		}
	case '{':
		var env struct {
			Snapshots []json.RawMessage `json:"snapshots"`
			Data      json.RawMessage   `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode snapshot envelope: %w", err)
		}
		switch {
		case env.Snapshots != nil:
			raws = env.Snapshots
		case len(env.Data) > 0 && bytes.TrimSpace(env.Data)[0] == '[':
			if err := json.Unmarshal(env.Data, &raws); err != nil {
				return nil, fmt.Errorf("decode snapshot data: %w", err)
			}
		default:
			return nil, errors.New("payload has no snapshot list")
		}
	default:
		return nil, fmt.Errorf("payload is not JSON (starts with %q)", trimmed[0])
	}

	items := make([]model.ItemRecord, 0, len(raws))
	dropped := 0
	for i, raw := range raws {
		var r snapshotRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			dropped++
			if dropped <= 3 {
				log.Printf("[WARN] dropping snapshot record %d: %v", i, err)
			}
			continue
		}
		items = append(items, model.ItemRecord{
			Name:          string(r.ItemName),
			Category:      string(r.ItemType),
			Low:           int64(r.Low),
			Median:        int64(r.Median),
			High:          int64(r.High),
			Volume:        int64(r.Volume),
			ChangePercent: float64(r.RecentChangePercent),
			SnapshotDate:  string(r.SnapshotDate),
		})
	}
	if dropped > 0 {
		log.Printf("[WARN] dropped %d of %d snapshot records", dropped, len(raws))
	}
	return items, nil
}

// looseInt accepts numbers, numeric strings and null.
type looseInt int64

func (v *looseInt) UnmarshalJSON(b []byte) error {
	s, null := scalarText(b)
	if null {
		*v = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*v = looseInt(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid integer %s", b)
	}
	*v = looseInt(f)
	return nil
}

// looseFloat accepts numbers, numeric strings and null.
type looseFloat float64

func (v *looseFloat) UnmarshalJSON(b []byte) error {
	s, null := scalarText(b)
	if null {
		*v = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*v = looseFloat(f)
	return nil
}

// looseString accepts strings, numbers and null.
type looseString string

func (v *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*v = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = looseString(s)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("expected string, got %s", b)
	}
	*v = looseString(b)
	return nil
}

// scalarText unwraps a JSON scalar into its text; null and "" report null.
func scalarText(b []byte) (string, bool) {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return "", true
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err == nil {
			s = strings.TrimSpace(str)
		}
	}
	return s, s == ""
}
