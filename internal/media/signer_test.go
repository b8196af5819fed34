package media_test

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cadenzalabs/cadenza/internal/clock"
	"github.com/cadenzalabs/cadenza/internal/config"
	"github.com/cadenzalabs/cadenza/internal/media"
	"go.uber.org/zap"
)

func newSigner(t *testing.T, fake *clock.FakeClock) *media.Signer {
	t.Helper()

	return media.NewSigner(media.Params{
		Cfg: config.Config{
			MediaSigningSecret: "test-secret",
			MediaCDNBaseURL:    "https://cdn.example.com",
			MediaURLTTLSeconds: 300,
		},
		Clock: fake,
		Log:   zap.NewNop(),
	})
}

func parseSignedURL(t *testing.T, raw string) (key string, expires int64, sig string) {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	expires, err = strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("parse expires: %v", err)
	}
	return strings.TrimPrefix(u.Path, "/"), expires, u.Query().Get("sig")
}

func TestStreamURLRoundTrip(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	signer := newSigner(t, fake)

	raw, err := signer.StreamURL("audio/42/track.flac")
	if err != nil {
		t.Fatalf("stream url: %v", err)
	}

	key, expires, sig := parseSignedURL(t, raw)
	if key != "audio/42/track.flac" {
		t.Fatalf("unexpected key %q", key)
	}
	if err := signer.Verify(key, expires, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestStreamURLExpires(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	signer := newSigner(t, fake)

	raw, err := signer.StreamURL("audio/42/track.flac")
	if err != nil {
		t.Fatalf("stream url: %v", err)
	}
	key, expires, sig := parseSignedURL(t, raw)

	fake.Advance(301 * time.Second)
	if err := signer.Verify(key, expires, sig); err != media.ErrExpiredURL {
		t.Fatalf("expected ErrExpiredURL, got %v", err)
	}
}

func TestStreamURLTamperedSignature(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	signer := newSigner(t, fake)

	raw, err := signer.StreamURL("audio/42/track.flac")
	if err != nil {
		t.Fatalf("stream url: %v", err)
	}
	key, expires, _ := parseSignedURL(t, raw)

	if err := signer.Verify(key, expires, "deadbeef"); err != media.ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestStreamURLRejectsTraversal(t *testing.T) {
	fake := clock.NewFakeClock(time.Now().UTC())
	signer := newSigner(t, fake)

	if _, err := signer.StreamURL("../secrets"); err != media.ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStreamURLRequiresSecret(t *testing.T) {
	signer := media.NewSigner(media.Params{
		Cfg:   config.Config{MediaCDNBaseURL: "https://cdn.example.com", MediaURLTTLSeconds: 300},
		Clock: clock.NewFakeClock(time.Now().UTC()),
		Log:   zap.NewNop(),
	})
	if _, err := signer.StreamURL("audio/1/x"); err != media.ErrSigningNotConfigured {
		t.Fatalf("expected ErrSigningNotConfigured, got %v", err)
	}
}
