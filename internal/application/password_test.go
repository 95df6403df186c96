package application

import (
	"errors"
	"strings"
	"testing"
)

func TestCreatePasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("correct horse battery staple", DefaultArgon2idParams)
	if err != nil {
		t.Fatalf("CreatePasswordHash returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash encoding: %q", hash)
	}

	if err := VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Fatalf("VerifyPassword rejected the original password: %v", err)
	}
	if err := VerifyPassword(hash, "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for a wrong password, got %v", err)
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		hash string
		want error
	}{
		{name: "empty", hash: "", want: ErrInvalidPasswordHash},
		{name: "wrong algorithm", hash: "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA", want: ErrInvalidPasswordHash},
		{name: "missing sections", hash: "$argon2id$v=19$c2FsdA", want: ErrInvalidPasswordHash},
		{name: "future version", hash: "$argon2id$v=99$m=65536,t=3,p=2$c2FsdA$aGFzaA", want: ErrIncompatiblePasswordVersion},
		{name: "bad salt encoding", hash: "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA", want: ErrInvalidPasswordHash},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if err := VerifyPassword(tc.hash, "irrelevant"); !errors.Is(err, tc.want) {
				t.Fatalf("VerifyPassword(%q) = %v, want %v", tc.hash, err, tc.want)
			}
		})
	}
}
