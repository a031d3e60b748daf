package readstate

import (
	"encoding/json"
	"testing"
	"time"

	"MDShelf/internal/cli/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() model.ArchiveRecord {
	return model.ArchiveRecord{
		ID:   7,
		Name: "notes.zip",
		Files: []model.FileEntry{
			{Path: "a.md", IsRead: true, ReadDate: "2023-01-01T12:00:00Z"},
			{Path: "b.md"},
		},
	}
}

func paths(files []model.FileEntry) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

// инвариант: readDate присутствует тогда и только тогда, когда isRead
func assertReadDateInvariant(t *testing.T, rec model.ArchiveRecord) {
	t.Helper()
	for _, f := range rec.Files {
		assert.Equal(t, f.IsRead, f.ReadDate != "", "entry %s", f.Path)
	}
}

func TestSetReadState_MarksAndStamps(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	rec := sample()
	out := SetReadStateAt(rec, "b.md", true, at)

	assert.True(t, out.Files[1].IsRead)
	assert.Equal(t, "2024-05-06T07:08:09Z", out.Files[1].ReadDate)
	assertReadDateInvariant(t, out)

	// вход не изменён
	assert.False(t, rec.Files[1].IsRead)
	assert.Empty(t, rec.Files[1].ReadDate)
}

func TestSetReadState_RoundTripRemovesReadDate(t *testing.T) {
	rec := sample()
	out := SetReadState(SetReadState(rec, "b.md", true), "b.md", false)
	assert.False(t, out.Files[1].IsRead)
	assertReadDateInvariant(t, out)

	// поле отсутствует в сериализованном виде, а не равно null
	raw, err := json.Marshal(out.Files[1])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	_, has := m["readDate"]
	assert.False(t, has)
	assert.Equal(t, false, m["isRead"])
}

func TestSetReadState_MissingPathIsNoop(t *testing.T) {
	rec := sample()
	out := SetReadState(rec, "missing-path", true)
	assert.Equal(t, rec, out)
}

func TestIsRead(t *testing.T) {
	rec := sample()
	assert.True(t, IsRead(&rec, "a.md"))
	assert.False(t, IsRead(&rec, "b.md"))
	assert.False(t, IsRead(&rec, "zzz.md"))
	assert.False(t, IsRead(nil, "a.md"))
	assert.False(t, IsRead(&model.ArchiveRecord{}, "a.md"))
}

func TestSort_ReadUnreadScenarios(t *testing.T) {
	files := sample().Files
	assert.Equal(t, []string{"b.md", "a.md"}, paths(Sort(files, SortUnreadFirst)))
	assert.Equal(t, []string{"a.md", "b.md"}, paths(Sort(files, SortReadFirst)))
}

func TestSort_IsPureAndDeterministic(t *testing.T) {
	files := []model.FileEntry{
		{Path: "c.md"},
		{Path: "a.md", IsRead: true, ReadDate: "2023-01-01T00:00:00Z"},
		{Path: "b.md", DisplayName: "Zeta"},
	}
	before := make([]model.FileEntry, len(files))
	copy(before, files)

	for _, mode := range append(Modes, "bogus") {
		first := Sort(files, mode)
		second := Sort(files, mode)
		assert.Equal(t, first, second, "mode %s", mode)
		assert.Equal(t, before, files, "input mutated by mode %s", mode)
	}
}

func TestSort_UnknownModeFallsBackToAlphabet(t *testing.T) {
	files := []model.FileEntry{
		{Path: "b.md"}, {Path: "B.md"}, {Path: "a.md", DisplayName: "Intro"}, {Path: "c.md", IsRead: true, ReadDate: "2023-01-01T00:00:00Z"},
	}
	alphabet := Sort(files, SortAlphabet)
	assert.Equal(t, alphabet, Sort(files, "bogus-mode"))
	// регистрозависимое сравнение по displayName ?? path
	assert.Equal(t, []string{"B.md", "a.md", "b.md", "c.md"}, paths(alphabet))
}

func TestSort_Recency(t *testing.T) {
	files := []model.FileEntry{
		{Path: "old.md", IsRead: true, ReadDate: "2023-01-01T00:00:00Z"},
		{Path: "z-unread.md"},
		{Path: "new.md", IsRead: true, ReadDate: "2024-01-01T00:00:00Z"},
		{Path: "a-unread.md"},
		{Path: "broken.md", IsRead: true, ReadDate: "not-a-date"},
	}
	// нечитаемая дата: самая старая среди прочитанных
	assert.Equal(t,
		[]string{"new.md", "old.md", "broken.md", "a-unread.md", "z-unread.md"},
		paths(Sort(files, SortRecency)))
}

func TestSort_EmptyInput(t *testing.T) {
	assert.NotNil(t, Sort(nil, SortAlphabet))
	assert.Empty(t, Sort(nil, SortRecency))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, SortRecency, ParseMode("recency"))
	assert.Equal(t, SortAlphabet, ParseMode("whatever"))
}
