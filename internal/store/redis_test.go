package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	session := models.NewSelectionSession(
		[]models.Ranking{
			{Workflow: models.WorkflowPedsAcuteEncephalitis, Weight: 0.9, Reason: "fever with seizures in a child"},
			{Workflow: models.WorkflowENTAcuteRhinosinusitis, Weight: 0.3, Reason: "nasal discharge"},
		},
		"5 year old, fever 3 days, one seizure, blocked nose",
	)
	if err := s.Set(ctx, "919800000001", session, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, "919800000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Stage != models.StageAwaitingWorkflowSelection {
		t.Fatalf("session not retrieved correctly: %+v", got)
	}
	if len(got.Rankings) != 2 || got.Rankings[0].Workflow != models.WorkflowPedsAcuteEncephalitis {
		t.Errorf("rankings lost in round trip: %+v", got.Rankings)
	}
	if got.OriginalText == "" {
		t.Error("original text must survive persistence")
	}
}

func TestRedisStoreGetAbsent(t *testing.T) {
	s, _ := newTestRedisStore(t)
	got, err := s.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil session, got %+v", got)
	}
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	session := models.NewClarificationSession(models.WorkflowENTAcuteRhinosinusitis, models.FactSet{"duration_days": nil})
	if err := s.Set(ctx, "919800000002", session, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr.FastForward(61 * time.Minute)

	got, err := s.Get(ctx, "919800000002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expired session must behave like no session")
	}
}

func TestRedisStoreClear(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	session := models.NewClarificationSession(models.WorkflowPedsAcuteEncephalitis, models.FactSet{})
	if err := s.Set(ctx, "919800000003", session, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Clear(ctx, "919800000003"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := s.Get(ctx, "919800000003"); got != nil {
		t.Error("cleared session should be gone")
	}
}

func TestRedisStoreDiscardsCorruptPayload(t *testing.T) {
	s, mr := newTestRedisStore(t)
	if err := mr.Set("state:919800000004", "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	got, err := s.Get(context.Background(), "919800000004")
	if err != nil {
		t.Fatalf("corrupt payload should not error: %v", err)
	}
	if got != nil {
		t.Errorf("corrupt payload should read as no session, got %+v", got)
	}
	if mr.Exists("state:919800000004") {
		t.Error("corrupt payload should be deleted")
	}
}
