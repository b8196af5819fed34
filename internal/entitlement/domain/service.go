package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/cadenzalabs/cadenza/internal/identity/domain"
)

// Service decides stream access. Checks are read-only and re-evaluated
// on every request: a decision is never cached across subscription or
// price changes. A nil identity means an anonymous caller.
//
// A returned error means the evidence could not be consulted; callers
// must surface it as a failure, never soften it into allow or deny.
type Service interface {
	CanStreamSong(ctx context.Context, identity *identitydomain.Identity, songID snowflake.ID) (Decision, error)
	CanStreamAlbum(ctx context.Context, identity *identitydomain.Identity, albumID snowflake.ID) (Decision, error)
}
