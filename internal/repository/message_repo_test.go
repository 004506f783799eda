package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"chat-sessions/internal/domain"
)

func TestMemoryMessageRepositoryCreate_AssignsFields(t *testing.T) {
	repo := NewMemoryMessageRepository()
	ctx := context.Background()

	msg, err := repo.Create(ctx, "s1", domain.RoleUser, "Where should I go?")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if msg.ID == "" {
		t.Fatalf("expected generated id")
	}
	if msg.SessionID != "s1" || msg.Role != domain.RoleUser || msg.Content != "Where should I go?" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt set")
	}

	out, err := repo.ListBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != msg.ID {
		t.Fatalf("expected created message listed, got %+v", out)
	}
}

func TestMemoryMessageRepositoryList_SortsByCreatedAt(t *testing.T) {
	repo := NewMemoryMessageRepository()
	base := time.Now().UTC()

	// Insercion fuera de orden cronologico, como dos appends compitiendo.
	repo.messages["s1"] = []domain.Message{
		{ID: "m2", SessionID: "s1", Role: domain.RoleAssistant, CreatedAt: base.Add(time.Millisecond)},
		{ID: "m1", SessionID: "s1", Role: domain.RoleUser, CreatedAt: base},
	}

	out, err := repo.ListBySessionID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "m1" || out[1].ID != "m2" {
		t.Fatalf("expected chronological order [m1 m2], got %+v", out)
	}
}

func TestMemoryMessageRepositoryList_UnknownSessionIsEmpty(t *testing.T) {
	repo := NewMemoryMessageRepository()
	out, err := repo.ListBySessionID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error for unknown session, got %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %+v", out)
	}
}

func TestMemoryMessageRepositoryDeleteBySessionID_Idempotent(t *testing.T) {
	repo := NewMemoryMessageRepository()
	ctx := context.Background()

	if _, err := repo.Create(ctx, "s1", domain.RoleUser, "hola"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.DeleteBySessionID(ctx, "s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := repo.DeleteBySessionID(ctx, "s1"); err != nil {
		t.Fatalf("second delete must be a no-op, got %v", err)
	}
	out, _ := repo.ListBySessionID(ctx, "s1")
	if len(out) != 0 {
		t.Fatalf("expected no messages after delete, got %+v", out)
	}
}

func TestRedisMessageRepositoryCreate_PushesSerializedRecord(t *testing.T) {
	kv := &fakeKV{}
	repo := NewRedisMessageRepository(&fakeConnector{client: kv}, zap.NewNop())

	msg, err := repo.Create(context.Background(), "s1", domain.RoleAssistant, "Claro que si")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if kv.rpushKey != messageKey("s1") {
		t.Fatalf("expected push to %q, got %q", messageKey("s1"), kv.rpushKey)
	}
	if len(kv.rpushVals) != 1 {
		t.Fatalf("expected one pushed value, got %d", len(kv.rpushVals))
	}

	blob, ok := kv.rpushVals[0].([]byte)
	if !ok {
		t.Fatalf("expected serialized bytes, got %T", kv.rpushVals[0])
	}
	var record messageRecord
	if err := json.Unmarshal(blob, &record); err != nil {
		t.Fatalf("unmarshal pushed record: %v", err)
	}
	if record.ID != msg.ID || record.SessionID != "s1" || record.Role != domain.RoleAssistant {
		t.Fatalf("pushed record mismatch: %+v", record)
	}
	if !record.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("createdAt must round-trip exactly")
	}
}

func TestRedisMessageRepositoryList_PreservesPushOrderAndSkipsMalformed(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	first := messageRecord{ID: "m1", SessionID: "s1", Role: domain.RoleUser, Content: "hola", CreatedAt: now}
	second := messageRecord{ID: "m2", SessionID: "s1", Role: domain.RoleAssistant, Content: "hola!", CreatedAt: now.Add(time.Millisecond)}

	firstBlob, _ := json.Marshal(first)
	secondBlob, _ := json.Marshal(second)
	kv := &fakeKV{
		lrangeVals: []string{string(firstBlob), "garbage{", string(secondBlob)},
	}
	repo := NewRedisMessageRepository(&fakeConnector{client: kv}, zap.NewNop())

	out, err := repo.ListBySessionID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list must not fail on a malformed entry: %v", err)
	}
	if len(out) != 2 || out[0].ID != "m1" || out[1].ID != "m2" {
		t.Fatalf("expected [m1 m2], got %+v", out)
	}
}

func TestRedisMessageRepositoryList_Empty(t *testing.T) {
	kv := &fakeKV{}
	repo := NewRedisMessageRepository(&fakeConnector{client: kv}, zap.NewNop())
	out, err := repo.ListBySessionID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %+v", out)
	}
}

func TestRedisMessageRepositoryDeleteBySessionID(t *testing.T) {
	kv := &fakeKV{}
	repo := NewRedisMessageRepository(&fakeConnector{client: kv}, zap.NewNop())

	if err := repo.DeleteBySessionID(context.Background(), "s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(kv.delKeys) != 1 || kv.delKeys[0] != messageKey("s1") {
		t.Fatalf("expected DEL %q, got %v", messageKey("s1"), kv.delKeys)
	}
}

func TestRedisMessageRepository_BackendFailurePropagates(t *testing.T) {
	wantErr := errors.New("network down")
	kv := &fakeKV{lrangeErr: wantErr, rpushErr: wantErr, delErr: wantErr}
	repo := NewRedisMessageRepository(&fakeConnector{client: kv}, zap.NewNop())
	ctx := context.Background()

	if _, err := repo.ListBySessionID(ctx, "s1"); !errors.Is(err, wantErr) {
		t.Fatalf("expected backend error from list, got %v", err)
	}
	if _, err := repo.Create(ctx, "s1", domain.RoleUser, "hola"); !errors.Is(err, wantErr) {
		t.Fatalf("expected backend error from create, got %v", err)
	}
	if err := repo.DeleteBySessionID(ctx, "s1"); !errors.Is(err, wantErr) {
		t.Fatalf("expected backend error from delete, got %v", err)
	}
}
