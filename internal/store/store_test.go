package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	dbPath := filepath.Join(suite.T().TempDir(), "centrix.db")

	store, err := Open(dbPath)
	suite.Require().NoError(err)
	suite.store = store
}

func (suite *StoreTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *StoreTestSuite) TestInitCreatesTables() {
	err := suite.store.Init()
	suite.Require().NoError(err)

	rows, err := suite.store.DB().Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	suite.Require().NoError(err)
	defer rows.Close()

	tables := map[string]bool{}
	for rows.Next() {
		var name string
		suite.Require().NoError(rows.Scan(&name))
		tables[name] = true
	}
	suite.Require().NoError(rows.Err())

	suite.True(tables["config_settings"])
	suite.True(tables["control_flags"])
	suite.True(tables["heartbeats"])
	suite.True(tables["orders"])
}

func (suite *StoreTestSuite) TestInitIsIdempotent() {
	suite.Require().NoError(suite.store.Init())
	suite.Require().NoError(suite.store.Init())
}

func (suite *StoreTestSuite) TestBuilderUsesQuestionPlaceholders() {
	sql, args, err := suite.store.Builder().
		Select("value").
		From("control_flags").
		Where("key = ?", "safe_mode").
		ToSql()
	suite.Require().NoError(err)
	suite.Equal("SELECT value FROM control_flags WHERE key = ?", sql)
	suite.Equal([]interface{}{"safe_mode"}, args)
}
