//go:build integration

package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casevault/citeline/internal/adapters/database"
	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/internal/domain/repositories"
	"github.com/casevault/citeline/internal/infrastructure/clients/postgres"
	"github.com/casevault/citeline/pkg/config"
)

type ProjectionAdapterIntegrationTestSuite struct {
	suite.Suite
	client  *postgres.Client
	adapter repositories.ProjectionRepository
	db      *sql.DB
}

func (suite *ProjectionAdapterIntegrationTestSuite) SetupSuite() {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "citeline_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(suite.T(), err, "Failed to create postgres client")

	suite.client = client
	suite.db = client.DB()
	suite.adapter = database.NewProjectionAdapter(client)

	suite.runMigrations()
}

func (suite *ProjectionAdapterIntegrationTestSuite) TearDownSuite() {
	if suite.client != nil {
		suite.client.Close()
	}
}

func (suite *ProjectionAdapterIntegrationTestSuite) SetupTest() {
	suite.cleanupTestData()
}

func (suite *ProjectionAdapterIntegrationTestSuite) TearDownTest() {
	suite.cleanupTestData()
}

func (suite *ProjectionAdapterIntegrationTestSuite) runMigrations() {
	migrationSQL, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	require.NoError(suite.T(), err)
	_, err = suite.db.Exec(string(migrationSQL))
	require.NoError(suite.T(), err)
}

func (suite *ProjectionAdapterIntegrationTestSuite) cleanupTestData() {
	for _, table := range []string{"chronology_entries", "chronology_runs"} {
		_, err := suite.db.Exec("DELETE FROM " + table)
		require.NoError(suite.T(), err)
	}
}

func (suite *ProjectionAdapterIntegrationTestSuite) testProjection() *entities.Projection {
	return &entities.Projection{
		GeneratedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Entries: []entities.Entry{
			{
				EntryID:          "er1",
				DateDisplay:      "2021-01-10 (time not documented)",
				ProviderDisplay:  "Unknown",
				EventTypeDisplay: "Emergency Visit",
				PatientLabel:     "Patient A",
				Facts:            []string{"Chief complaint: chest pain"},
				CitationDisplay:  "p. 1",
				Score:            85,
			},
			{
				EntryID:          "dc1",
				DateDisplay:      "2021-01-12 (time not documented)",
				ProviderDisplay:  "Unknown",
				EventTypeDisplay: "Hospital Discharge",
				PatientLabel:     "Patient A",
				Facts:            []string{"Discharged home with instructions"},
				CitationDisplay:  "p. 2",
				Score:            80,
			},
		},
		Audits: []entities.SelectionAudit{
			{PatientLabel: "Patient A", StoppingReason: entities.StopAllBucketsCovered},
		},
	}
}

func (suite *ProjectionAdapterIntegrationTestSuite) TestSaveRunAndGetEntries() {
	ctx := context.Background()
	projection := suite.testProjection()

	runID, err := suite.adapter.SaveRun(ctx, "case-er", projection)
	require.NoError(suite.T(), err)
	require.NotEmpty(suite.T(), runID)

	entries, err := suite.adapter.GetRunEntries(ctx, runID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), entries, 2)
	assert.Equal(suite.T(), "er1", entries[0].EntryID)
	assert.Equal(suite.T(), []string{"Chief complaint: chest pain"}, entries[0].Facts)
	assert.Equal(suite.T(), "dc1", entries[1].EntryID)
	assert.Equal(suite.T(), 80, entries[1].Score)
}

func (suite *ProjectionAdapterIntegrationTestSuite) TestRunIDIsDeterministic() {
	ctx := context.Background()
	projection := suite.testProjection()

	first, err := suite.adapter.SaveRun(ctx, "case-er", projection)
	require.NoError(suite.T(), err)

	suite.cleanupTestData()

	second, err := suite.adapter.SaveRun(ctx, "case-er", projection)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), first, second, "same case and timestamp derive the same run id")
}

func (suite *ProjectionAdapterIntegrationTestSuite) TestGetRunEntriesNotFound() {
	_, err := suite.adapter.GetRunEntries(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.Error(suite.T(), err)
}

func TestProjectionAdapterIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(ProjectionAdapterIntegrationTestSuite))
}
