package storage

import (
	"context"
	"errors"
	"testing"
)

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		ref     Ref
		want    string
		wantErr bool
	}{
		{name: "default origin", ref: Ref{Key: "searchesByHash"}, want: "default/searchesByHash"},
		{name: "trimmed", ref: Ref{Origin: " seqr ", Key: " cart "}, want: "seqr/cart"},
		{name: "url origin", ref: Ref{Origin: "https://seqr.org", Key: "cart"}, want: "https://seqr.org/cart"},
		{name: "missing key", ref: Ref{Origin: "seqr"}, wantErr: true},
		{name: "slash in key", ref: Ref{Key: "a/b"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ref.Identifier()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("identifier: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			back, err := ParseIdentifier(got)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if back != tc.ref.Normalize() {
				t.Fatalf("expected round trip %+v, got %+v", tc.ref.Normalize(), back)
			}
		})
	}
}

func TestParseIdentifierRejectsMalformed(t *testing.T) {
	for _, id := range []string{"", "nokey", "/key", "origin/"} {
		if _, err := ParseIdentifier(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestUnavailableFailsEveryCall(t *testing.T) {
	u := Unavailable{Reason: "private browsing"}
	if _, _, err := u.Load(context.Background(), Ref{Key: "k"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on load, got %v", err)
	}
	if err := u.Save(context.Background(), Ref{Key: "k"}, nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on save, got %v", err)
	}
}

func TestQuotaStoreRejectsOverBudget(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	q := NewQuotaStore(mem, 10)

	if err := q.Save(ctx, Ref{Key: "a"}, []byte("123456")); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := q.Save(ctx, Ref{Key: "b"}, []byte("12345")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if _, ok, _ := mem.Load(ctx, Ref{Key: "b"}); ok {
		t.Fatalf("rejected write must not reach the wrapped backend")
	}
	// Rewriting an existing record only counts the delta.
	if err := q.Save(ctx, Ref{Key: "a"}, []byte("1234567890")); err != nil {
		t.Fatalf("resave a: %v", err)
	}
	if q.Used() != 10 {
		t.Fatalf("expected 10 bytes used, got %d", q.Used())
	}
}

func TestQuotaStoreDeleteReleasesBudget(t *testing.T) {
	ctx := context.Background()
	q := NewQuotaStore(NewMemoryStore(), 10)
	if err := q.Save(ctx, Ref{Key: "a"}, []byte("1234567890")); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := q.Delete(ctx, Ref{Key: "a"}); err != nil {
		t.Fatalf("delete a: %v", err)
	}
	if q.Used() != 0 {
		t.Fatalf("expected budget released, got %d", q.Used())
	}
	if err := q.Save(ctx, Ref{Key: "b"}, []byte("12345")); err != nil {
		t.Fatalf("save b: %v", err)
	}
	keys, err := q.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}

	bare := NewQuotaStore(Unavailable{}, 10)
	if err := bare.Delete(ctx, Ref{Key: "a"}); err == nil {
		t.Fatalf("expected unsupported delete error")
	}
}
