package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/contracts"
	"github.com/tokenstay/service-stay/internal/platform/domain"
	"github.com/tokenstay/service-stay/internal/platform/kafka"
)

type fakeMembership struct {
	verified []application.VerifyMemberRequest
	revoked  []uuid.UUID
	err      error
}

func (f *fakeMembership) VerifyMember(_ context.Context, req application.VerifyMemberRequest) (*application.MembershipDTO, error) {
	f.verified = append(f.verified, req)
	if f.err != nil {
		return nil, f.err
	}
	return &application.MembershipDTO{PartyID: req.PartyID}, nil
}

func (f *fakeMembership) RevokeMember(_ context.Context, party uuid.UUID, _ string) {
	f.revoked = append(f.revoked, party)
}

func newTestConsumer(svc MembershipService) *MembershipEventConsumer {
	return &MembershipEventConsumer{service: svc, logger: zap.NewNop()}
}

func message(t *testing.T, eventType string, data interface{}) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("membership-service", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Topic: contracts.TopicMembershipEvents, Value: raw}
}

func TestHandleMessage_Verified(t *testing.T) {
	svc := &fakeMembership{}
	c := newTestConsumer(svc)
	party := uuid.New()
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	err := c.handleMessage(context.Background(), message(t, contracts.MembershipVerified, contracts.MembershipVerifiedEvent{
		PartyID:   party,
		ExpiresAt: expires,
	}))
	require.NoError(t, err)
	require.Len(t, svc.verified, 1)
	assert.Equal(t, party, svc.verified[0].PartyID)
	require.NotNil(t, svc.verified[0].ExpiresAt)
	assert.True(t, expires.Equal(*svc.verified[0].ExpiresAt))
}

func TestHandleMessage_VerifiedWithoutExpiryUsesDefault(t *testing.T) {
	svc := &fakeMembership{}
	c := newTestConsumer(svc)

	err := c.handleMessage(context.Background(), message(t, contracts.MembershipVerified, contracts.MembershipVerifiedEvent{
		PartyID: uuid.New(),
	}))
	require.NoError(t, err)
	require.Len(t, svc.verified, 1)
	assert.Nil(t, svc.verified[0].ExpiresAt)
}

func TestHandleMessage_RejectedGrantIsCommitted(t *testing.T) {
	svc := &fakeMembership{err: domain.NewValidationError("expires_at must be in the future")}
	c := newTestConsumer(svc)

	err := c.handleMessage(context.Background(), message(t, contracts.MembershipVerified, contracts.MembershipVerifiedEvent{
		PartyID: uuid.New(),
	}))
	assert.NoError(t, err)
}

func TestHandleMessage_Revoked(t *testing.T) {
	svc := &fakeMembership{}
	c := newTestConsumer(svc)
	party := uuid.New()

	err := c.handleMessage(context.Background(), message(t, contracts.MembershipRevoked, contracts.MembershipRevokedEvent{
		PartyID: party,
		Reason:  "chargeback",
	}))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{party}, svc.revoked)
}

func TestHandleMessage_IgnoresMalformedAndUnknown(t *testing.T) {
	svc := &fakeMembership{}
	c := newTestConsumer(svc)

	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: []byte("{not json")}))
	assert.NoError(t, c.handleMessage(context.Background(), message(t, "membership.audited", map[string]string{"x": "y"})))
	assert.Empty(t, svc.verified)
	assert.Empty(t, svc.revoked)
}
