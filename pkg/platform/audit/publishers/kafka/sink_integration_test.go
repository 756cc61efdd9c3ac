//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "proofid/pkg/domain"
	audit "proofid/pkg/platform/audit"
	"proofid/pkg/platform/audit/publishers/kafka"
	"proofid/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *KafkaSinkSuite) consume(ctx context.Context, topic string, n int) []*kgo.Record {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer cl.Close()

	var records []*kgo.Record
	for len(records) < n {
		fetches := cl.PollFetches(ctx)
		if ctx.Err() != nil {
			s.FailNowf("timed out", "consumed %d of %d records", len(records), n)
		}
		s.Require().Empty(fetches.Errors())
		records = append(records, fetches.Records()...)
	}
	return records
}

func (s *KafkaSinkSuite) TestEnsureTopicIsIdempotent() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Require().NoError(kafka.EnsureTopic(ctx, s.brokers, "proofid.audit.ensure", 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, s.brokers, "proofid.audit.ensure", 1, 1))
}

func (s *KafkaSinkSuite) TestSendDeliversKeyedMessages() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "proofid.audit.send"
	s.Require().NoError(kafka.EnsureTopic(ctx, s.brokers, topic, 3, 1))

	sink, err := kafka.New(s.brokers, topic)
	s.Require().NoError(err)
	defer func() { s.NoError(sink.Close()) }()

	owner := id.MustPrincipal("0x00000000000000000000000000000000000000a1")
	grantee := id.MustPrincipal("0x00000000000000000000000000000000000000b0")
	recordID := id.RecordID(42)
	sent := []audit.Event{
		{
			ID: uuid.New(), Category: audit.CategoryCompliance, Timestamp: time.Now().UTC(),
			Action: audit.EventRecordCreated, Actor: owner, RecordID: &recordID,
		},
		{
			ID: uuid.New(), Category: audit.CategoryCompliance, Timestamp: time.Now().UTC(),
			Action: audit.EventAccessGranted, Actor: owner, Subject: grantee, RecordID: &recordID,
		},
	}
	for _, e := range sent {
		s.Require().NoError(sink.Send(ctx, e))
	}

	records := s.consume(ctx, topic, len(sent))
	s.Require().Len(records, len(sent))

	// same actor key, so both land on one partition in order
	s.Equal(records[0].Partition, records[1].Partition)
	for i, r := range records {
		s.Equal(owner.String(), string(r.Key))

		var msg kafka.Message
		s.Require().NoError(json.Unmarshal(r.Value, &msg))
		s.Equal(sent[i].ID.String(), msg.ID)
		s.Equal(string(sent[i].Action), msg.Action)
		s.Equal("42", msg.RecordID)
	}

	var second kafka.Message
	s.Require().NoError(json.Unmarshal(records[1].Value, &second))
	s.Equal(grantee.String(), second.Subject)
}
