package staging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"terrasync/internal/container"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

type RecordSuite struct {
	suite.Suite
}

func TestRecordSuite(t *testing.T) {
	suite.Run(t, new(RecordSuite))
}

func (r *RecordSuite) newRecord() *Record {
	return NewRecord(id.NewPackageID(), id.KindPerson, "p-1",
		&container.Person{OriginalID: "p-1", FullName: "Amal Haddad"}, time.Now())
}

func (r *RecordSuite) TestLifecycle() {
	rec := r.newRecord()
	r.Equal(StatusPending, rec.Status)
	r.False(rec.Committable())

	r.Run("pending records cannot be approved", func() {
		r.ErrorIs(rec.Approve(), sentinel.ErrInvalidState)
	})

	r.Run("clean record finalizes valid and approves", func() {
		rec.Finalize()
		r.Equal(StatusValid, rec.Status)
		r.Require().NoError(rec.Approve())
		r.True(rec.Committable())
	})
}

func (r *RecordSuite) TestErrorsDominateWarnings() {
	rec := r.newRecord()
	rec.AddWarning(Finding{Code: "VOCAB_UNKNOWN_CODE", Message: "code 9"})
	r.Equal(StatusWarning, rec.Status)

	rec.AddError(Finding{Code: "REF_UNRESOLVED", Message: "household missing"})
	r.Equal(StatusInvalid, rec.Status)

	rec.AddWarning(Finding{Code: "OWNER_NO_EVIDENCE", Message: "no evidence"})
	r.Equal(StatusInvalid, rec.Status, "a later warning never downgrades invalid")

	rec.Finalize()
	r.Equal(StatusInvalid, rec.Status)
	r.ErrorIs(rec.Approve(), sentinel.ErrInvalidState)
	r.False(rec.Committable())
}

func (r *RecordSuite) TestApprovalIsRevokedByANewError() {
	rec := r.newRecord()
	rec.Finalize()
	r.Require().NoError(rec.Approve())

	rec.AddError(Finding{Code: "COMPOSITE_DUPLICATE", Message: "dup"})
	r.False(rec.Approved)
	r.False(rec.Committable())
}

func (r *RecordSuite) TestTypedAccessors() {
	rec := r.newRecord()
	r.Require().NotNil(rec.Person())
	r.Equal("Amal Haddad", rec.Person().FullName)
	r.Nil(rec.Building(), "wrong-kind accessor returns nil")
}
