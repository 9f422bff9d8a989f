package store

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Priyanshu23/flashkv/config"
	"github.com/Priyanshu23/flashkv/engine"
	"github.com/Priyanshu23/flashkv/proto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.MemTableMaxSize = 1 << 20

	eng, err := engine.Open(cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return New(eng)
}

func setReq(key, payload string, ttl uint32, setter proto.SetterKind) proto.Request {
	return proto.Request{
		Kind:    proto.KindSetter,
		Setter:  setter,
		Key:     []byte(key),
		Flags:   7,
		TTL:     ttl,
		Bytes:   len(payload),
		Payload: []byte(payload),
	}
}

func getReq(keys ...string) proto.Request {
	ks := make([][]byte, len(keys))
	for i, k := range keys {
		ks[i] = []byte(k)
	}
	return proto.Request{Kind: proto.KindGetter, Getter: proto.Get, Keys: ks}
}

func TestSetThenGet(t *testing.T) {
	s := newTestStore(t)

	resp, err := s.Apply(setReq("k", "v1", 0, proto.Set))
	if err != nil || resp.Kind != proto.RespStored {
		t.Fatalf("set: resp=%+v err=%v", resp, err)
	}

	resp, err = s.Apply(getReq("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(resp.Items) != 1 || string(resp.Items[0].Data) != "v1" || resp.Items[0].Flags != 7 {
		t.Fatalf("unexpected get response: %+v", resp)
	}
}

func TestAddFailsWhenKeyExists(t *testing.T) {
	s := newTestStore(t)

	if resp, _ := s.Apply(setReq("k", "v1", 0, proto.Set)); resp.Kind != proto.RespStored {
		t.Fatalf("expected initial set to succeed")
	}
	resp, err := s.Apply(setReq("k", "v2", 0, proto.Add))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if resp.Kind != proto.RespNotStored {
		t.Fatalf("expected NOT_STORED for add on existing key, got %v", resp.Kind)
	}

	get, _ := s.Apply(getReq("k"))
	if string(get.Items[0].Data) != "v1" {
		t.Fatalf("add should not have overwritten existing value, got %q", get.Items[0].Data)
	}
}

func TestAddSucceedsWhenKeyMissing(t *testing.T) {
	s := newTestStore(t)
	resp, err := s.Apply(setReq("new", "v", 0, proto.Add))
	if err != nil || resp.Kind != proto.RespStored {
		t.Fatalf("expected STORED for add on missing key, got %+v err=%v", resp, err)
	}
}

func TestReplaceFailsWhenMissing(t *testing.T) {
	s := newTestStore(t)
	resp, err := s.Apply(setReq("missing", "v", 0, proto.Replace))
	if err != nil || resp.Kind != proto.RespNotStored {
		t.Fatalf("expected NOT_STORED for replace on missing key, got %+v err=%v", resp, err)
	}
}

func TestAppendAndPrependConcatenateData(t *testing.T) {
	s := newTestStore(t)
	s.Apply(setReq("k", "base", 0, proto.Set))

	resp, err := s.Apply(setReq("k", "-suffix", 0, proto.Append))
	if err != nil || resp.Kind != proto.RespStored {
		t.Fatalf("append: resp=%+v err=%v", resp, err)
	}
	get, _ := s.Apply(getReq("k"))
	if string(get.Items[0].Data) != "base-suffix" {
		t.Fatalf("expected 'base-suffix', got %q", get.Items[0].Data)
	}

	resp, err = s.Apply(setReq("k", "prefix-", 0, proto.Prepend))
	if err != nil || resp.Kind != proto.RespStored {
		t.Fatalf("prepend: resp=%+v err=%v", resp, err)
	}
	get, _ = s.Apply(getReq("k"))
	if string(get.Items[0].Data) != "prefix-base-suffix" {
		t.Fatalf("expected 'prefix-base-suffix', got %q", get.Items[0].Data)
	}
}

func TestAppendFailsWhenMissing(t *testing.T) {
	s := newTestStore(t)
	resp, err := s.Apply(setReq("missing", "x", 0, proto.Append))
	if err != nil || resp.Kind != proto.RespNotStored {
		t.Fatalf("expected NOT_STORED for append on missing key, got %+v err=%v", resp, err)
	}
}

func TestDeleteFoundAndNotFound(t *testing.T) {
	s := newTestStore(t)
	s.Apply(setReq("k", "v", 0, proto.Set))

	resp, err := s.Apply(proto.Request{Kind: proto.KindDeleter, Key: []byte("k")})
	if err != nil || resp.Kind != proto.RespDeleted {
		t.Fatalf("expected DELETED, got %+v err=%v", resp, err)
	}

	resp, err = s.Apply(proto.Request{Kind: proto.KindDeleter, Key: []byte("k")})
	if err != nil || resp.Kind != proto.RespNotFound {
		t.Fatalf("expected NOT_FOUND on second delete, got %+v err=%v", resp, err)
	}
}

func TestExpiryTTLZeroNeverExpires(t *testing.T) {
	if expired(0) {
		t.Fatalf("ttl=0 (expiresAt=0) should never expire")
	}
}

func TestExpiryPastTimestampExpires(t *testing.T) {
	past := time.Now().Add(-time.Hour).Unix()
	if !expired(past) {
		t.Fatalf("a past expiry timestamp should be expired")
	}
}

func TestGetOnExpiredKeyIsMiss(t *testing.T) {
	s := newTestStore(t)
	// encode directly with an already-past expiry to avoid sleeping in the test
	payload := encodePayload(0, time.Now().Add(-time.Second).Unix(), []byte("v"))
	if err := s.eng.Insert([]byte("k"), payload); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	resp, err := s.Apply(getReq("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected miss on expired key, got %+v", resp.Items)
	}
}

func TestApplyInfo(t *testing.T) {
	s := newTestStore(t)
	resp, err := s.Apply(proto.Request{Kind: proto.KindInfo})
	if err != nil || resp.Kind != proto.RespInfo {
		t.Fatalf("expected RespInfo, got %+v err=%v", resp, err)
	}
	if resp.Message == "" {
		t.Fatalf("expected non-empty info message")
	}
}

func TestApplyMajorCompaction(t *testing.T) {
	s := newTestStore(t)
	resp, err := s.Apply(proto.Request{Kind: proto.KindMajorCompaction})
	if err != nil || resp.Kind != proto.RespOk {
		t.Fatalf("expected RespOk, got %+v err=%v", resp, err)
	}
}
