package store

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadhunt-engine/internal/domain"
)

func sampleLead() domain.Lead {
	sent := time.Date(2024, 3, 2, 10, 30, 0, 123456789, time.UTC)
	return domain.Lead{
		ID:                   "3f1c1d3e-0000-4000-8000-000000000001",
		OwnerHandle:          "octo",
		ProjectName:          "flows",
		ProjectURL:           "https://github.com/octo/flows",
		ProjectDescription:   `n8n nodes, "community" edition`,
		Email:                "octo@example.com",
		LastActivity:         time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC),
		CreatedAt:            time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:               domain.StatusContacted,
		EmailSent:            true,
		EmailSentAt:          &sent,
		EmailApproved:        true,
		EmailPendingApproval: false,
		AIScore:              domain.Ptr(0.85),
		AIRecommendation:     domain.RecommendApprove,
		AIAnalysis:           "active maintainer, uses webhooks",
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	l := sampleLead()

	got, err := Decode(Encode(l))
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestEncodeDecode_RoundTripMinimal(t *testing.T) {
	l := domain.Lead{
		ID:          "id-1",
		OwnerHandle: "a",
		ProjectName: "b",
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:      domain.StatusNew,
	}

	got, err := Decode(Encode(l))
	require.NoError(t, err)
	assert.Equal(t, l, got)
	assert.Nil(t, got.AIScore)
	assert.Nil(t, got.EmailSentAt)
	assert.False(t, got.HasEmail())
}

func TestEncode_QuotesEveryCell(t *testing.T) {
	line := Encode(sampleLead())

	assert.True(t, strings.HasPrefix(line, `"3f1c1d3e-0000-4000-8000-000000000001","octo","flows"`))
	assert.Contains(t, line, `"n8n nodes, ""community"" edition"`)
	assert.Contains(t, line, `"true"`)
	assert.Contains(t, line, `"0.85"`)
	assert.Equal(t, len(Header)-1, strings.Count(line, `","`))
}

func TestEncode_FlattensNewlines(t *testing.T) {
	l := sampleLead()
	l.ProjectDescription = "line one\nline two\r\nline three"

	line := Encode(l)
	assert.NotContains(t, line, "\n")

	got, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, "line one line two line three", got.ProjectDescription)
}

func TestEncodeHeader(t *testing.T) {
	h := EncodeHeader()
	assert.True(t, strings.HasPrefix(h, `"id","owner_handle"`))
	assert.True(t, isHeader(h))
	assert.False(t, isHeader(Encode(sampleLead())))
}

func TestDecode_Malformed(t *testing.T) {
	good := EncodeFields(sampleLead())

	with := func(i int, v string) string {
		cells := append([]string(nil), good...)
		cells[i] = v
		return encodeCells(cells)
	}

	tests := []struct {
		name   string
		line   string
		column string
	}{
		{"too few columns", `"a","b","c"`, ""},
		{"too many columns", encodeCells(append(append([]string(nil), good...), "extra")), ""},
		{"bad boolean", with(9, "yes"), "email_sent"},
		{"bad score", with(13, "high"), "ai_score"},
		{"bad timestamp", with(7, "yesterday"), "created_at"},
		{"unknown status", with(8, "archived"), "status"},
		{"unknown recommendation", with(14, "maybe"), "ai_recommendation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord))

			var me *MalformedRecordError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.column, me.Column)
		})
	}
}

func TestDecode_LenientValues(t *testing.T) {
	cells := EncodeFields(sampleLead())
	cells[8] = " Contacted "
	cells[9] = ""
	cells[11] = "TRUE"

	l, err := DecodeFields(cells)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, l.Status)
	assert.False(t, l.EmailSent)
	assert.True(t, l.EmailApproved)
}

func TestReadLeads_SkipsHeaderBlankAndMalformed(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(EncodeHeader() + "\n")
	buf.WriteString(Encode(sampleLead()) + "\n")
	buf.WriteString("\n")
	buf.WriteString("not,a,lead\n")

	leads, malformed, err := ReadLeads(&buf)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "octo", leads[0].OwnerHandle)
	require.Len(t, malformed, 1)
	assert.Equal(t, 4, malformed[0].Line)
}

func TestWriteLeads_ThenRead(t *testing.T) {
	a := sampleLead()
	b := sampleLead()
	b.ID = "id-2"
	b.ProjectName = "other"

	var buf bytes.Buffer
	require.NoError(t, WriteLeads(&buf, []domain.Lead{a, b}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, EncodeHeader(), lines[0])

	leads, malformed, err := ReadLeads(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Empty(t, malformed)
	assert.Equal(t, []domain.Lead{a, b}, leads)
}
