package store

import (
	"encoding/json"
	"fmt"
)

func EncodeRecord[E Entity[E]](entity E) (Record, error) {
	body, err := json.Marshal(entity)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", entity.EntityID(), err)
	}
	return Record{ID: entity.EntityID(), Body: body}, nil
}

func DecodeRecords[E any](records []Record) ([]E, error) {
	items := make([]E, 0, len(records))
	for _, record := range records {
		var item E
		if err := json.Unmarshal(record.Body, &item); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", record.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// RecordsFromArray splits a serialized collection (a JSON array of objects with an
// "id" field) into records.
func RecordsFromArray(payload []byte) ([]Record, error) {
	if len(payload) == 0 {
		return []Record{}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	records := make([]Record, 0, len(raw))
	for _, body := range raw {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &head); err != nil {
			return nil, fmt.Errorf("decode record id: %w", err)
		}
		records = append(records, Record{ID: head.ID, Body: body})
	}
	return records, nil
}

func RecordsToArray(records []Record) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(records))
	for _, record := range records {
		raw = append(raw, record.Body)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return payload, nil
}

// The helpers below never modify their input slice.

func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

func InsertRecord(records []Record, record Record) ([]Record, error) {
	for _, existing := range records {
		if existing.ID == record.ID {
			return nil, fmt.Errorf("insert %s: %w", record.ID, ErrDuplicateID)
		}
	}
	out := make([]Record, 0, len(records)+1)
	out = append(out, records...)
	return append(out, record), nil
}

func ReplaceRecord(records []Record, record Record) ([]Record, error) {
	for i, existing := range records {
		if existing.ID == record.ID {
			out := CloneRecords(records)
			out[i] = record
			return out, nil
		}
	}
	return nil, fmt.Errorf("replace %s: %w", record.ID, ErrNotFound)
}

func DeleteRecord(records []Record, id string) ([]Record, error) {
	for i, existing := range records {
		if existing.ID == id {
			out := make([]Record, 0, len(records)-1)
			out = append(out, records[:i]...)
			return append(out, records[i+1:]...), nil
		}
	}
	return nil, fmt.Errorf("delete %s: %w", id, ErrNotFound)
}

// GroupRefs buckets refs by collection, keeping first-seen collection order.
func GroupRefs(refs []Ref) ([]Collection, map[Collection]map[string]struct{}) {
	order := make([]Collection, 0)
	groups := make(map[Collection]map[string]struct{})
	for _, ref := range refs {
		ids, ok := groups[ref.Collection]
		if !ok {
			ids = make(map[string]struct{})
			groups[ref.Collection] = ids
			order = append(order, ref.Collection)
		}
		ids[ref.ID] = struct{}{}
	}
	return order, groups
}

// DeleteRefs returns the new contents of every collection touched by refs.
// Collections absent from state are treated as empty.
func DeleteRefs(state map[Collection][]Record, refs []Ref) map[Collection][]Record {
	order, groups := GroupRefs(refs)
	out := make(map[Collection][]Record, len(order))
	for _, collection := range order {
		ids := groups[collection]
		current := state[collection]
		kept := make([]Record, 0, len(current))
		for _, record := range current {
			if _, drop := ids[record.ID]; drop {
				continue
			}
			kept = append(kept, record)
		}
		out[collection] = kept
	}
	return out
}
