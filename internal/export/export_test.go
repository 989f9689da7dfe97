package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadhunt-engine/internal/domain"
)

var now = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func fixture() []domain.Lead {
	return []domain.Lead{
		{
			ID: "1", OwnerHandle: "alice", ProjectName: "wf1", Email: "a@x.com",
			Status: domain.StatusNew, EmailApproved: true,
			LastActivity: now.Add(-72 * time.Hour),
			AIScore:      domain.Ptr(0.9), AIRecommendation: domain.RecommendApprove,
		},
		{
			ID: "2", OwnerHandle: "bob", ProjectName: "wf2", Email: "b@x.com",
			Status: domain.StatusContacted, EmailSent: true, EmailApproved: true,
		},
		{
			ID: "3", OwnerHandle: "carol", ProjectName: "wf3",
			Status: domain.StatusNew, EmailPendingApproval: true,
			AIScore: domain.Ptr(0.2), AIRecommendation: domain.RecommendReject,
		},
		{
			ID: "4", OwnerHandle: "dave", ProjectName: "wf4", Email: "d@x.com",
			Status: domain.StatusNew, EmailPendingApproval: true,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAnalyze_Counts(t *testing.T) {
	s := Analyze(fixture(), now)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.WithEmail)
	assert.Equal(t, 1, s.EmailSent)
	assert.Equal(t, 2, s.EmailApproved)
	assert.Equal(t, 2, s.PendingApproval)
	assert.Equal(t, 2, s.AIAnalyzed)
	assert.Equal(t, map[string]int{"new": 3, "contacted": 1, "responded": 0, "converted": 0}, s.ByStatus)
	assert.Equal(t, map[string]int{"approve": 1, "reject": 1, "review": 0, "none": 2}, s.ByRecommendation)
}

func TestAnalyze_StatusSumEqualsTotal(t *testing.T) {
	for _, leads := range [][]domain.Lead{nil, fixture(), fixture()[:1]} {
		s := Analyze(leads, now)
		sum := 0
		for _, n := range s.ByStatus {
			sum += n
		}
		assert.Equal(t, len(leads), s.Total)
		assert.Equal(t, s.Total, sum)
	}
}

func TestFull_WritesDerivedColumns(t *testing.T) {
	dir := t.TempDir()

	path, err := Full(fixture(), dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "leads_full_2024-06-10.csv"), path)

	rows := readCSV(t, path)
	require.Len(t, rows, 5)
	assert.Equal(t, fullHeader, rows[0])
	assert.Equal(t, "Yes", rows[1][16])
	assert.Equal(t, "3", rows[1][17])
	assert.Equal(t, "No", rows[3][16])
	assert.Equal(t, "", rows[3][17])
}

func TestCampaign_OnlyReadyLeads(t *testing.T) {
	dir := t.TempDir()

	path, err := Campaign(fixture(), dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "email_campaign_2024-06-10.csv"), path)

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[1][1])
	assert.Equal(t, "a@x.com", rows[1][3])
}

func TestAnalytics_WritesJSON(t *testing.T) {
	dir := t.TempDir()

	sum, path, err := Analytics(fixture(), dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "analytics_2024-06-10.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Summary
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, sum, got)
}

func TestExport_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Full(fixture(), filepath.Join(blocker, "sub"), now)
	assert.Error(t, err)
}
