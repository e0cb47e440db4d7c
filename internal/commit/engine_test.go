package commit_test

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Tx,Store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"terrasync/internal/commit"
	"terrasync/internal/commit/mocks"
	"terrasync/internal/container"
	"terrasync/internal/production"
	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

type CommitEngineSuite struct {
	suite.Suite
	ctx    context.Context
	logger *slog.Logger
	pkgID  id.PackageID
	stage  *staging.InMemoryStore
}

func TestCommitEngineSuite(t *testing.T) {
	suite.Run(t, new(CommitEngineSuite))
}

func (s *CommitEngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.pkgID = id.NewPackageID()
	s.stage = staging.NewInMemoryStore()
}

// approved stages one record as valid and approved.
func (s *CommitEngineSuite) approved(kind id.EntityKind, originalID string, payload any) *staging.Record {
	r := staging.NewRecord(s.pkgID, kind, originalID, payload, time.Now())
	r.Finalize()
	s.Require().NoError(r.Approve())
	s.Require().NoError(s.stage.BulkInsert(s.ctx, []*staging.Record{r}))
	return r
}

// stageHousehold covers the circular person-household reference: the person
// points at the household and the household's head points back.
func (s *CommitEngineSuite) stageHousehold() {
	s.approved(id.KindPerson, "p-1", &container.Person{
		OriginalID: "p-1", FullName: "Amal Haddad", HouseholdOriginalID: "h-1",
	})
	s.approved(id.KindHousehold, "h-1", &container.Household{
		OriginalID: "h-1", HeadPersonOriginalID: "p-1", DeclaredSize: 1, FemaleCount: 1,
	})
}

func (s *CommitEngineSuite) TestPromotesWholePackage() {
	s.approved(id.KindBuilding, "b-1", &container.Building{
		OriginalID: "b-1", CompositeCode: "12345678901234",
	})
	s.approved(id.KindUnit, "u-1", &container.Unit{
		OriginalID: "u-1", BuildingOriginalID: "b-1", UnitCode: "APT-3",
	})
	s.stageHousehold()
	s.approved(id.KindClaim, "c-1", &container.Claim{
		OriginalID: "c-1", ClaimantOriginalID: "p-1", UnitOriginalID: "u-1",
		Status: "draft", Stage: "field",
	})

	registry := production.NewInMemoryStore()
	engine := commit.NewEngine(s.stage, commit.NewInMemoryStore(registry), nil, s.logger)

	result, err := engine.Commit(s.ctx, s.pkgID)
	s.Require().NoError(err)
	s.Equal(5, result.Succeeded)
	s.Zero(result.Failed)
	s.False(result.RolledBack())
	s.Len(result.Promoted, 5)

	s.Run("unit references the promoted building", func() {
		buildings, err := registry.ListBuildings(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(buildings, 1)
		units, err := registry.ListUnitsByBuilding(s.ctx, buildings[0].ID)
		s.Require().NoError(err)
		s.Require().Len(units, 1)
		s.Equal("APT-3", units[0].UnitCode)
	})

	s.Run("circular person and household references resolve", func() {
		persons, err := registry.ListPersons(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(persons, 1)
		s.Require().NotNil(persons[0].HouseholdID)
	})

	s.Run("staging keeps the production id", func() {
		records, err := s.stage.ListByPackage(s.ctx, s.pkgID)
		s.Require().NoError(err)
		for _, r := range records {
			s.Require().NotNil(r.ProductionID)
			s.Equal(result.Promoted[r.ID], *r.ProductionID)
		}
	})
}

func (s *CommitEngineSuite) TestClaimsAreNormalizedOnPromotion() {
	s.approved(id.KindBuilding, "b-1", &container.Building{
		OriginalID: "b-1", CompositeCode: "12345678901234",
	})
	s.approved(id.KindUnit, "u-1", &container.Unit{
		OriginalID: "u-1", BuildingOriginalID: "b-1", UnitCode: "APT-3",
	})
	s.approved(id.KindPerson, "p-1", &container.Person{
		OriginalID: "p-1", FullName: "Amal Haddad",
	})
	// The device exported a claim in a later lifecycle state.
	s.approved(id.KindClaim, "c-1", &container.Claim{
		OriginalID: "c-1", ClaimantOriginalID: "p-1", UnitOriginalID: "u-1",
		Status: "under_review", Stage: "adjudication",
	})

	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	tx := mocks.NewMockTx(ctrl)
	store.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().InsertBuilding(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().InsertUnit(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().InsertPerson(gomock.Any(), gomock.Any()).Return(nil)

	var inserted production.Claim
	tx.EXPECT().InsertClaim(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c production.Claim) error {
			inserted = c
			return nil
		})
	tx.EXPECT().Commit(gomock.Any()).Return(nil)

	engine := commit.NewEngine(s.stage, store, nil, s.logger)
	result, err := engine.Commit(s.ctx, s.pkgID)
	s.Require().NoError(err)
	s.Equal(4, result.Succeeded)
	s.Equal("submitted", inserted.Status)
	s.Equal("intake", inserted.Stage)
}

func (s *CommitEngineSuite) TestUnapprovedRecordsAreSkipped() {
	s.approved(id.KindBuilding, "b-1", &container.Building{
		OriginalID: "b-1", CompositeCode: "12345678901234",
	})
	held := staging.NewRecord(s.pkgID, id.KindSurvey, "s-1", &container.Survey{
		OriginalID: "s-1", BuildingOriginalID: "b-1",
	}, time.Now())
	held.Finalize()
	s.Require().NoError(s.stage.BulkInsert(s.ctx, []*staging.Record{held}))

	registry := production.NewInMemoryStore()
	engine := commit.NewEngine(s.stage, commit.NewInMemoryStore(registry), nil, s.logger)

	result, err := engine.Commit(s.ctx, s.pkgID)
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)
	s.Equal(1, result.Skipped)
}

func (s *CommitEngineSuite) TestInvalidRecordAbortsBeforeAnyWrite() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	// No Begin expectation: the engine must refuse before touching the store.

	r := staging.NewRecord(s.pkgID, id.KindBuilding, "b-1", &container.Building{
		OriginalID: "b-1", CompositeCode: "nope",
	}, time.Now())
	r.AddError(staging.Finding{Code: "COMPOSITE_MALFORMED", Message: "bad code"})
	r.Finalize()
	s.Require().NoError(s.stage.BulkInsert(s.ctx, []*staging.Record{r}))

	engine := commit.NewEngine(s.stage, store, nil, s.logger)
	_, err := engine.Commit(s.ctx, s.pkgID)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *CommitEngineSuite) TestMidTransactionFailureRollsBack() {
	s.approved(id.KindBuilding, "b-1", &container.Building{
		OriginalID: "b-1", CompositeCode: "12345678901234",
	})
	s.approved(id.KindUnit, "u-1", &container.Unit{
		OriginalID: "u-1", BuildingOriginalID: "b-1", UnitCode: "APT-3",
	})

	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	tx := mocks.NewMockTx(ctrl)
	store.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().InsertBuilding(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().InsertUnit(gomock.Any(), gomock.Any()).Return(errors.New("unique violation"))
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	// Tx.Commit must never be called.

	engine := commit.NewEngine(s.stage, store, nil, s.logger)
	result, err := engine.Commit(s.ctx, s.pkgID)
	s.Require().NoError(err, "a rolled-back attempt is an outcome, not an engine error")
	s.True(result.RolledBack())
	s.Equal(2, result.Failed, "every committable record counts as failed")
	s.Zero(result.Succeeded)
	s.Nil(result.Promoted)
	s.Contains(result.FailureReason, "unique violation")
}

func (s *CommitEngineSuite) TestTransactionCommitFailure() {
	s.approved(id.KindBuilding, "b-1", &container.Building{
		OriginalID: "b-1", CompositeCode: "12345678901234",
	})

	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	tx := mocks.NewMockTx(ctrl)
	store.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().InsertBuilding(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit(gomock.Any()).Return(errors.New("connection reset"))

	engine := commit.NewEngine(s.stage, store, nil, s.logger)
	result, err := engine.Commit(s.ctx, s.pkgID)
	s.Require().NoError(err)
	s.True(result.RolledBack())
	s.Equal(1, result.Failed)
	s.Contains(result.FailureReason, "connection reset")
}

func (s *CommitEngineSuite) TestDanglingReferenceFailsTheAttempt() {
	// The unit's building was never staged, so the remap table cannot
	// resolve it inside the transaction.
	s.approved(id.KindUnit, "u-1", &container.Unit{
		OriginalID: "u-1", BuildingOriginalID: "b-gone", UnitCode: "APT-3",
	})

	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockStore(ctrl)
	tx := mocks.NewMockTx(ctrl)
	store.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	engine := commit.NewEngine(s.stage, store, nil, s.logger)
	result, err := engine.Commit(s.ctx, s.pkgID)
	s.Require().NoError(err)
	s.True(result.RolledBack())
	s.Contains(result.FailureReason, "b-gone")
}
