package session

import (
	"context"
	"testing"
	"time"
)

func TestReaderValidSession(t *testing.T) {
	codec := testCodec(t)
	now := time.Unix(1700000000, 0).UTC()
	r := NewReader(codec, nil, nil)
	r.clock = func() time.Time { return now }

	token, err := codec.Encode(Claims{
		CustomerID:  "cus_1",
		Tier:        TierPro,
		WorkspaceID: DeriveWorkspaceID("cus_1"),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	info := r.Read(context.Background(), token)
	if !info.Authenticated || info.Tier != TierPro || info.WorkspaceID != DeriveWorkspaceID("cus_1") {
		t.Fatalf("unexpected session info: %+v", info)
	}
}

func TestReaderCollapsesAllFailuresToAnonymous(t *testing.T) {
	codec := testCodec(t)
	now := time.Unix(1700000000, 0).UTC()
	r := NewReader(codec, nil, nil)
	r.clock = func() time.Time { return now }

	expired, err := codec.Encode(Claims{CustomerID: "cus_1", Tier: TierPro, ExpiresAt: now.Unix() - 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	other, err := NewCodec("other-secret")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	foreign, err := other.Encode(Claims{CustomerID: "cus_1", Tier: TierPro, ExpiresAt: now.Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for _, value := range []string{"", "garbage", "a.b", expired, foreign} {
		info := r.Read(context.Background(), value)
		if info != Anonymous() {
			t.Fatalf("cookie %q: expected anonymous free session, got %+v", value, info)
		}
	}
}
