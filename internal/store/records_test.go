package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string) Record {
	return Record{ID: id, Body: json.RawMessage(`{"id":"` + id + `"}`)}
}

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestInsertRecordRejectsDuplicate(t *testing.T) {
	base := []Record{rec("a")}

	out, err := InsertRecord(base, rec("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))
	assert.Len(t, base, 1)

	_, err = InsertRecord(out, rec("a"))
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestReplaceRecordKeepsPosition(t *testing.T) {
	base := []Record{rec("a"), rec("b"), rec("c")}
	updated := Record{ID: "b", Body: json.RawMessage(`{"id":"b","name":"new"}`)}

	out, err := ReplaceRecord(base, updated)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
	assert.JSONEq(t, `{"id":"b","name":"new"}`, string(out[1].Body))
	assert.JSONEq(t, `{"id":"b"}`, string(base[1].Body))

	_, err = ReplaceRecord(base, rec("zzz"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteRecord(t *testing.T) {
	base := []Record{rec("a"), rec("b"), rec("c")}

	out, err := DeleteRecord(base, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(out))
	assert.Equal(t, []string{"a", "b", "c"}, ids(base))

	_, err = DeleteRecord(base, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteRefsTouchesOnlyNamedCollections(t *testing.T) {
	state := map[Collection][]Record{
		Projects: {rec("p1"), rec("p2")},
		Tasks:    {rec("t1"), rec("t2"), rec("t3")},
		Staff:    {rec("s1")},
	}
	refs := []Ref{
		{Collection: Tasks, ID: "t1"},
		{Collection: Projects, ID: "p1"},
		{Collection: Tasks, ID: "t3"},
		{Collection: Costs, ID: "ghost"},
	}

	out := DeleteRefs(state, refs)
	assert.Equal(t, []string{"p2"}, ids(out[Projects]))
	assert.Equal(t, []string{"t2"}, ids(out[Tasks]))
	assert.Empty(t, out[Costs])
	_, touched := out[Staff]
	assert.False(t, touched)
	assert.Len(t, state[Tasks], 3)

	order, _ := GroupRefs(refs)
	assert.Equal(t, []Collection{Tasks, Projects, Costs}, order)
}

func TestRecordsArrayRoundTrip(t *testing.T) {
	records, err := RecordsFromArray([]byte(`[{"id":"x","name":"one"},{"id":"y"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids(records))

	payload, err := RecordsToArray(records)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"x","name":"one"},{"id":"y"}]`, string(payload))

	empty, err := RecordsFromArray(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = RecordsFromArray([]byte(`{"id":"not-an-array"}`))
	assert.Error(t, err)
}

func TestEncodeDecodeEntities(t *testing.T) {
	quote := 1200.0
	project := Project{ID: "p1", Name: "Kitchen", Client: "Ada", Progress: 40, Status: ProjectActive, QuoteAmount: &quote}

	record, err := EncodeRecord(project)
	require.NoError(t, err)
	assert.Equal(t, "p1", record.ID)
	assert.NotContains(t, string(record.Body), "isSample")

	decoded, err := DecodeRecords[Project]([]Record{record})
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, project, decoded[0])

	copyWithID := project.WithID("p2")
	assert.Equal(t, "p2", copyWithID.ID)
	assert.Equal(t, "p1", project.ID)
}

func TestTimestampSplitsSecondsAndNanoseconds(t *testing.T) {
	at := time.Date(2024, 8, 12, 10, 30, 0, 500, time.UTC)
	ts := NewTimestamp(at)
	assert.Equal(t, at.Unix(), ts.Seconds)
	assert.Equal(t, int32(500), ts.Nanoseconds)

	encoded, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"seconds":1723458600,"nanoseconds":500}`, string(encoded))
}

func TestCollectionValid(t *testing.T) {
	assert.True(t, ChangeRequests.Valid())
	assert.False(t, Collection("invoices").Valid())
}
