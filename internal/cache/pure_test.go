package cache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestHashKey_Deterministic(t *testing.T) {
	t.Parallel()

	if hashKey("user-1") != hashKey("user-1") {
		t.Error("Same input should produce same hash")
	}
}

func TestHashKey_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"object id", "665f1c2e9b1e8a3d4c5b6a79"},
		{"short", "u"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// first 8 bytes of SHA256, encoded as 16 hex chars
			if got := len(hashKey(tt.input)); got != 16 {
				t.Errorf("hashKey(%q) length = %d, want 16", tt.input, got)
			}
		})
	}
}

func TestHashKey_Different(t *testing.T) {
	t.Parallel()

	if hashKey("user-1") == hashKey("user-2") {
		t.Error("Different inputs should produce different hashes")
	}
}

func TestCacheKeys_Namespaced(t *testing.T) {
	t.Parallel()

	c := NewWithClient(nil, "acme")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"change channel", c.changeChannel("artifacts/acme/users/u1/projects"), "projectdesk:acme:changes:artifacts/acme/users/u1/projects"},
		{"query stream", c.QueryStream(), "projectdesk:acme:stream:queries"},
		{"role switch", c.roleSwitchKey("u1"), "projectdesk:acme:ratelimit:role:" + hashKey("u1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewWithClient_DefaultNamespace(t *testing.T) {
	t.Parallel()

	c := NewWithClient(nil, "")
	if c.namespace != "default" {
		t.Errorf("namespace = %q, want default", c.namespace)
	}
}

func TestDecodeQuery(t *testing.T) {
	t.Parallel()

	raisedAt := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		msg    redis.XMessage
		wantOK bool
	}{
		{
			name: "valid",
			msg: redis.XMessage{ID: "1718443800000-0", Values: map[string]interface{}{
				"payload": `{"pid":"p1","pn":"Alpha Build","by":"ana","t":1718443800000}`,
			}},
			wantOK: true,
		},
		{
			name:   "missing payload",
			msg:    redis.XMessage{ID: "1-0", Values: map[string]interface{}{}},
			wantOK: false,
		},
		{
			name:   "corrupt payload",
			msg:    redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": "{"}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q, ok := DecodeQuery(tt.msg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if q.ID != tt.msg.ID || q.ProjectID != "p1" || q.ProjectName != "Alpha Build" || q.RaisedBy != "ana" {
				t.Errorf("unexpected query: %+v", q)
			}
			if !q.RaisedAt.Equal(raisedAt) {
				t.Errorf("RaisedAt = %v, want %v", q.RaisedAt, raisedAt)
			}
		})
	}
}
