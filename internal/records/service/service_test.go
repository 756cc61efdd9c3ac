package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"proofid/internal/gate"
	identityservice "proofid/internal/identity/service"
	identitystore "proofid/internal/identity/store"
	"proofid/internal/records/models"
	"proofid/internal/records/service/mocks"
	"proofid/internal/records/store"
	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
	audit "proofid/pkg/platform/audit"
	"proofid/pkg/platform/audit/publisher"
	auditmemory "proofid/pkg/platform/audit/store/memory"
	txcontext "proofid/pkg/platform/tx"
	"proofid/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Verifier,AuditPublisher

var (
	admin = id.MustPrincipal("0x00000000000000000000000000000000000000ad")
	p1    = id.MustPrincipal("0x0000000000000000000000000000000000000001")
	p2    = id.MustPrincipal("0x0000000000000000000000000000000000000002")
	p3    = id.MustPrincipal("0x0000000000000000000000000000000000000003")
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// RecordsServiceSuite wires the records service to a real identity registry
// and access gate over in-memory stores sharing one serial runner.
type RecordsServiceSuite struct {
	suite.Suite
	identities *identityservice.Service
	service    *Service
	auditStore *auditmemory.InMemoryStore
	now        time.Time
	ctx        context.Context
}

func TestRecordsServiceSuite(t *testing.T) {
	suite.Run(t, new(RecordsServiceSuite))
}

func (s *RecordsServiceSuite) SetupTest() {
	s.now = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.auditStore = auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(s.auditStore)
	runner := txcontext.NewSerial()

	identities, err := identityservice.New(identitystore.NewInMemory(), runner, []id.Principal{admin},
		identityservice.WithLogger(discard),
	)
	s.Require().NoError(err)
	s.identities = identities

	s.service = New(store.NewInMemory(), runner, gate.New(identities, gate.WithLogger(discard)),
		WithLogger(discard),
		WithAuditPublisher(pub),
	)
}

func (s *RecordsServiceSuite) issue(principal id.Principal, attrs map[string]string, ttl time.Duration) {
	s.T().Helper()
	_, err := s.identities.IssueIdentity(s.ctx, admin, principal, attrs, s.now.Add(ttl))
	s.Require().NoError(err)
}

func (s *RecordsServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *RecordsServiceSuite) TestHealthRecordLifecycle() {
	twoMonths := s.now.AddDate(0, 2, 0).Sub(s.now)
	s.issue(p1, map[string]string{"role": "patient"}, twoMonths)

	_, err := s.service.AddHealthRecord(s.ctx, p1, 1, []byte("Patient Health Data"))
	s.Require().NoError(err)

	s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 1, p2))

	record, err := s.service.GetHealthRecord(s.ctx, p2, 1)
	s.Require().NoError(err)
	s.Equal("Patient Health Data", string(record.Payload))

	_, err = s.service.GetHealthRecord(s.ctx, p3, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.service.RevokeAccess(s.ctx, p1, 1, p2))

	_, err = s.service.GetHealthRecord(s.ctx, p2, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	owned, err := s.service.GetHealthRecord(s.ctx, p1, 1)
	s.Require().NoError(err)
	s.Equal("Patient Health Data", string(owned.Payload))
}

func (s *RecordsServiceSuite) TestAddHealthRecord() {
	s.Run("owner without identity is unauthorized", func() {
		_, err := s.service.AddHealthRecord(s.ctx, p3, 10, []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		ok, err := s.service.IsAuthorized(s.ctx, p3, 10)
		s.Require().NoError(err)
		s.False(ok, "failed creation leaves no record")
	})

	s.Run("expired identity is unauthorized", func() {
		s.issue(p2, nil, time.Hour)
		_, err := s.service.AddHealthRecord(s.at(s.now.Add(time.Hour)), p2, 11, []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("duplicate id is rejected across owners", func() {
		s.issue(p1, nil, 24*time.Hour)
		_, err := s.service.AddHealthRecord(s.ctx, p1, 12, []byte("first"))
		s.Require().NoError(err)

		_, err = s.service.AddHealthRecord(s.ctx, p1, 12, []byte("second"))
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateID))

		_, err = s.service.AddHealthRecord(s.ctx, p2, 12, []byte("other owner"))
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateID))

		record, err := s.service.GetHealthRecord(s.ctx, p1, 12)
		s.Require().NoError(err)
		s.Equal("first", string(record.Payload))
	})

	s.Run("unauthorized is reported before duplicate id", func() {
		_, err := s.service.AddHealthRecord(s.ctx, p3, 12, []byte("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("payload is stored unchanged", func() {
		payload := []byte{0x00, 0xff, 0x10, 0x00}
		_, err := s.service.AddHealthRecord(s.ctx, p1, 13, payload)
		s.Require().NoError(err)

		record, err := s.service.GetHealthRecord(s.ctx, p1, 13)
		s.Require().NoError(err)
		s.Equal(payload, record.Payload)
	})

	s.Run("max uint64 id", func() {
		const maxID = id.RecordID(^uint64(0))
		_, err := s.service.AddHealthRecord(s.ctx, p1, maxID, []byte("edge"))
		s.Require().NoError(err)

		ok, err := s.service.IsAuthorized(s.ctx, p1, maxID)
		s.Require().NoError(err)
		s.True(ok)
	})
}

func (s *RecordsServiceSuite) TestCreationPredicate() {
	svc := New(store.NewInMemory(), txcontext.NewSerial(), gate.New(s.identities),
		WithLogger(discard),
		WithCreationPredicate(gate.Expression(`role == "patient"`)),
	)
	s.issue(p1, map[string]string{"role": "patient"}, time.Hour)
	s.issue(p2, map[string]string{"role": "visitor"}, time.Hour)

	_, err := svc.AddHealthRecord(s.ctx, p1, 1, []byte("x"))
	s.Require().NoError(err)

	_, err = svc.AddHealthRecord(s.ctx, p2, 2, []byte("x"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *RecordsServiceSuite) TestGrantAndRevokeAccess() {
	s.issue(p1, nil, 24*time.Hour)
	s.issue(p3, nil, 24*time.Hour)
	_, err := s.service.AddHealthRecord(s.ctx, p1, 1, []byte("x"))
	s.Require().NoError(err)

	s.Run("missing record is not found", func() {
		err := s.service.GrantAccess(s.ctx, p1, 99, p2)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		err = s.service.RevokeAccess(s.ctx, p1, 99, p2)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-owner gets not owner regardless of identity", func() {
		err := s.service.GrantAccess(s.ctx, p3, 1, p2)
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
		err = s.service.GrantAccess(s.ctx, p2, 1, p2)
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
		err = s.service.RevokeAccess(s.ctx, p3, 1, p2)
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})

	s.Run("grant is idempotent", func() {
		s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 1, p2))
		s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 1, p2))

		grantees, err := s.service.ListGrantees(s.ctx, p1, 1)
		s.Require().NoError(err)
		s.Equal([]id.Principal{p2}, grantees)
	})

	s.Run("granting to the owner is a no-op", func() {
		s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 1, p1))
		grantees, err := s.service.ListGrantees(s.ctx, p1, 1)
		s.Require().NoError(err)
		s.NotContains(grantees, p1)
	})

	s.Run("revoking an absent grantee is a no-op", func() {
		s.Require().NoError(s.service.RevokeAccess(s.ctx, p1, 1, p3))
	})

	s.Run("owner with revoked identity cannot change the acl", func() {
		_, err := s.identities.RevokeIdentity(s.ctx, admin, p1)
		s.Require().NoError(err)

		err = s.service.GrantAccess(s.ctx, p1, 1, p3)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		err = s.service.RevokeAccess(s.ctx, p1, 1, p2)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		ok, err := s.service.IsAuthorized(s.ctx, p2, 1)
		s.Require().NoError(err)
		s.True(ok, "rejected revoke leaves acl unchanged")
	})

	s.Run("reads need no identity", func() {
		record, err := s.service.GetHealthRecord(s.ctx, p1, 1)
		s.Require().NoError(err)
		s.Equal(p1, record.Owner)

		_, err = s.service.GetHealthRecord(s.ctx, p2, 1)
		s.Require().NoError(err)
	})
}

func (s *RecordsServiceSuite) TestOwnerIdentityExpiryBlocksAclChanges() {
	s.issue(p1, nil, time.Hour)
	_, err := s.service.AddHealthRecord(s.ctx, p1, 1, []byte("x"))
	s.Require().NoError(err)

	later := s.at(s.now.Add(time.Hour))
	err = s.service.GrantAccess(later, p1, 1, p2)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.identities.IssueIdentity(later, admin, p1, nil, s.now.Add(3*time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.service.GrantAccess(later, p1, 1, p2))
}

func (s *RecordsServiceSuite) TestIsAuthorizedAndListGrantees() {
	s.issue(p1, nil, time.Hour)
	_, err := s.service.AddHealthRecord(s.ctx, p1, 5, []byte("x"))
	s.Require().NoError(err)
	s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 5, p3))
	s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 5, p2))

	ok, err := s.service.IsAuthorized(s.ctx, p1, 5)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.IsAuthorized(s.ctx, p2, 404)
	s.Require().NoError(err)
	s.False(ok, "missing record is not an error")

	grantees, err := s.service.ListGrantees(s.ctx, p1, 5)
	s.Require().NoError(err)
	s.Equal([]id.Principal{p2, p3}, grantees)

	_, err = s.service.ListGrantees(s.ctx, p2, 5)
	s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))

	_, err = s.service.ListGrantees(s.ctx, p1, 6)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RecordsServiceSuite) TestAuditTrail() {
	s.issue(p1, nil, time.Hour)
	_, err := s.service.AddHealthRecord(s.ctx, p1, 1, []byte("x"))
	s.Require().NoError(err)
	s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 1, p2))
	s.Require().NoError(s.service.GrantAccess(s.ctx, p1, 1, p2))
	_, err = s.service.GetHealthRecord(s.ctx, p3, 1)
	s.Require().Error(err)
	s.Require().NoError(s.service.RevokeAccess(s.ctx, p1, 1, p2))

	events, err := s.auditStore.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	actions := make([]audit.AuditEvent, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Equal([]audit.AuditEvent{
		audit.EventRecordCreated,
		audit.EventAccessGranted,
		audit.EventRecordReadDenied,
		audit.EventAccessRevoked,
	}, actions)

	denied := events[2]
	s.Equal(p3, denied.Actor)
	s.Equal(p1, denied.Subject)
	s.Require().NotNil(denied.RecordID)
	s.Equal(id.RecordID(1), *denied.RecordID)
	s.Equal(audit.CategorySecurity, denied.Category)
}

func TestServiceWithMocks(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	owned := func() *models.Record {
		r, _ := models.NewRecord(1, p1, []byte("x"), time.Now())
		return r
	}

	t.Run("non-owner is rejected before the gate is consulted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		verifier := mocks.NewMockVerifier(ctrl)
		svc := New(st, txcontext.NewSerial(), verifier, WithLogger(discard))

		st.EXPECT().FindByID(gomock.Any(), id.RecordID(1)).Return(owned(), nil)
		verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		err := svc.GrantAccess(ctx, p2, 1, p3)
		if !dErrors.HasCode(err, dErrors.CodeNotOwner) {
			t.Fatalf("expected not_owner, got %v", err)
		}
	})

	t.Run("gate infrastructure failure aborts creation", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		verifier := mocks.NewMockVerifier(ctrl)
		svc := New(st, txcontext.NewSerial(), verifier, WithLogger(discard))

		verifier.EXPECT().Verify(gomock.Any(), p1, gate.ValidIdentity).
			Return(false, dErrors.Wrap(errors.New("redis: connection refused"), dErrors.CodeInternal, "failed to load identity"))
		st.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.AddHealthRecord(ctx, p1, 1, []byte("x"))
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			t.Fatalf("expected internal_error, got %v", err)
		}
	})

	t.Run("uncoded store errors become internal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		svc := New(st, txcontext.NewSerial(), mocks.NewMockVerifier(ctrl), WithLogger(discard))

		st.EXPECT().FindByID(gomock.Any(), id.RecordID(1)).Return(nil, errors.New("disk on fire"))

		_, err := svc.GetHealthRecord(ctx, p1, 1)
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			t.Fatalf("expected internal_error, got %v", err)
		}
	})

	t.Run("audit failure does not change the outcome", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockStore(ctrl)
		verifier := mocks.NewMockVerifier(ctrl)
		pub := mocks.NewMockAuditPublisher(ctrl)
		svc := New(st, txcontext.NewSerial(), verifier, WithLogger(discard), WithAuditPublisher(pub))

		st.EXPECT().FindByID(gomock.Any(), id.RecordID(1)).Return(owned(), nil)
		verifier.EXPECT().Verify(gomock.Any(), p1, gate.ValidIdentity).Return(true, nil)
		st.EXPECT().AddGrant(gomock.Any(), id.RecordID(1), p2).Return(true, nil)
		pub.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(publisher.ErrBufferFull)

		if err := svc.GrantAccess(ctx, p1, 1, p2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("cancelled context aborts with timeout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := New(mocks.NewMockStore(ctrl), txcontext.NewSerial(), mocks.NewMockVerifier(ctrl), WithLogger(discard))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := svc.RevokeAccess(cancelled, p1, 1, p2)
		if !dErrors.HasCode(err, dErrors.CodeTimeout) {
			t.Fatalf("expected timeout, got %v", err)
		}
	})
}
