package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/centrix/internal/logger"
	"github.com/rxtech-lab/centrix/internal/store"
)

type RegistryTestSuite struct {
	suite.Suite
	store    *store.Store
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (suite *RegistryTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	dbPath := filepath.Join(suite.T().TempDir(), "centrix.db")
	s, err := store.Open(dbPath)
	suite.Require().NoError(err)
	suite.Require().NoError(s.Init())

	suite.store = s
	suite.registry = NewRegistry(s, log)
	suite.ctx = context.Background()
}

func (suite *RegistryTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *RegistryTestSuite) TestGetReturnsDefaultWhenAbsent() {
	value, err := suite.registry.Get(suite.ctx, "never.written", ScopeGlobal, "fallback")
	suite.Require().NoError(err)
	suite.Equal("fallback", value)
}

func (suite *RegistryTestSuite) TestSetThenGet() {
	err := suite.registry.Set(suite.ctx, "risk.max_order_size", "100", ScopeGlobal, ValueTypeFloat, "test")
	suite.Require().NoError(err)

	value, err := suite.registry.Get(suite.ctx, "risk.max_order_size", ScopeGlobal, "")
	suite.Require().NoError(err)
	suite.Equal("100", value)
}

func (suite *RegistryTestSuite) TestSetReplacesInPlace() {
	suite.Require().NoError(suite.registry.Set(suite.ctx, "engine.loop_sleep_ms", "500", ScopeGlobal, ValueTypeInt, "test"))
	suite.Require().NoError(suite.registry.Set(suite.ctx, "engine.loop_sleep_ms", "250", ScopeGlobal, ValueTypeInt, "test"))

	value, err := suite.registry.Get(suite.ctx, "engine.loop_sleep_ms", ScopeGlobal, "")
	suite.Require().NoError(err)
	suite.Equal("250", value)

	var count int
	err = suite.store.DB().QueryRow(
		"SELECT COUNT(*) FROM config_settings WHERE key = ? AND scope = ?",
		"engine.loop_sleep_ms", ScopeGlobal).Scan(&count)
	suite.Require().NoError(err)
	suite.Equal(1, count)
}

func (suite *RegistryTestSuite) TestScopesAreIndependent() {
	suite.Require().NoError(suite.registry.Set(suite.ctx, "risk.max_order_size", "100", ScopeGlobal, ValueTypeFloat, "test"))
	suite.Require().NoError(suite.registry.Set(suite.ctx, "risk.max_order_size", "10", "paper", ValueTypeFloat, "test"))

	global, err := suite.registry.Get(suite.ctx, "risk.max_order_size", ScopeGlobal, "")
	suite.Require().NoError(err)
	suite.Equal("100", global)

	paper, err := suite.registry.Get(suite.ctx, "risk.max_order_size", "paper", "")
	suite.Require().NoError(err)
	suite.Equal("10", paper)
}

func (suite *RegistryTestSuite) TestGetFloatDefaultsOnAbsence() {
	value, err := suite.registry.GetFloat(suite.ctx, "never.written", ScopeGlobal, 42.5)
	suite.Require().NoError(err)
	suite.Equal(42.5, value)
}

func (suite *RegistryTestSuite) TestGetFloatDefaultsOnMalformedValue() {
	suite.Require().NoError(suite.registry.Set(suite.ctx, "risk.max_daily_loss", "not-a-number", ScopeGlobal, ValueTypeFloat, "test"))

	value, err := suite.registry.GetFloat(suite.ctx, "risk.max_daily_loss", ScopeGlobal, 7.0)
	suite.Require().NoError(err)
	suite.Equal(7.0, value)
}

func (suite *RegistryTestSuite) TestGetFloatParsesStoredValue() {
	suite.Require().NoError(suite.registry.Set(suite.ctx, "risk.max_order_size", "150.25", ScopeGlobal, ValueTypeFloat, "test"))

	value, err := suite.registry.GetFloat(suite.ctx, "risk.max_order_size", ScopeGlobal, 0)
	suite.Require().NoError(err)
	suite.Equal(150.25, value)
}

func (suite *RegistryTestSuite) TestGetFloatOption() {
	absent, err := suite.registry.GetFloatOption(suite.ctx, "never.written", ScopeGlobal)
	suite.Require().NoError(err)
	suite.True(absent.IsNone())

	suite.Require().NoError(suite.registry.Set(suite.ctx, "risk.max_order_size", "100", ScopeGlobal, ValueTypeFloat, "test"))
	present, err := suite.registry.GetFloatOption(suite.ctx, "risk.max_order_size", ScopeGlobal)
	suite.Require().NoError(err)
	suite.True(present.IsSome())
	suite.Equal(100.0, present.Unwrap())

	suite.Require().NoError(suite.registry.Set(suite.ctx, "risk.max_order_size", "garbage", ScopeGlobal, ValueTypeFloat, "test"))
	invalid, err := suite.registry.GetFloatOption(suite.ctx, "risk.max_order_size", ScopeGlobal)
	suite.Require().NoError(err)
	suite.True(invalid.IsNone())
}

func (suite *RegistryTestSuite) TestVersionDefaultsToZero() {
	version, err := suite.registry.Version(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, version)
}

func (suite *RegistryTestSuite) TestBumpVersionIsStrictlyIncreasing() {
	for i := 1; i <= 5; i++ {
		version, err := suite.registry.BumpVersion(suite.ctx, "test bump")
		suite.Require().NoError(err)
		suite.Equal(i, version)

		observed, err := suite.registry.Version(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(i, observed)
	}
}

func (suite *RegistryTestSuite) TestEnsureVersionInitializesToZero() {
	suite.Require().NoError(suite.registry.EnsureVersion(suite.ctx))

	version, err := suite.registry.Version(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, version)

	// A second call must not reset an already-bumped counter.
	_, err = suite.registry.BumpVersion(suite.ctx, "bump before re-ensure")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.registry.EnsureVersion(suite.ctx))

	version, err = suite.registry.Version(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, version)
}
