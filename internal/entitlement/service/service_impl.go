package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"github.com/cadenzalabs/cadenza/internal/entitlement/domain"
	identitydomain "github.com/cadenzalabs/cadenza/internal/identity/domain"
	"github.com/cadenzalabs/cadenza/internal/observability/metrics"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Catalog       domain.CatalogSource
	Subscriptions subscriptiondomain.Reader
	Transactions  transactiondomain.Reader
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	catalog domain.CatalogSource
	subs    subscriptiondomain.Reader
	txns    transactiondomain.Reader
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("entitlement.service"),
		catalog: p.Catalog,
		subs:    p.Subscriptions,
		txns:    p.Transactions,
		metrics: p.Metrics,
	}
}

// songRule resolves a song's policy to an AccessRule. An album-only
// song without a parent album is malformed and stays locked.
func songRule(song *catalogdomain.Song) (domain.AccessRule, bool) {
	switch song.AccessType {
	case catalogdomain.AccessTypeFree:
		return domain.AccessRule{Kind: domain.RuleFree}, true
	case catalogdomain.AccessTypeSubscription:
		return domain.AccessRule{Kind: domain.RuleSubscription, ArtistID: song.ArtistID}, true
	case catalogdomain.AccessTypePurchaseOnly:
		if song.AlbumOnly {
			if song.AlbumID == nil {
				return domain.AccessRule{}, false
			}
			return domain.AccessRule{
				Kind:     domain.RulePurchaseOnly,
				ArtistID: song.ArtistID,
				RefKind:  transactiondomain.ItemTypeAlbum,
				RefID:    *song.AlbumID,
			}, true
		}
		return domain.AccessRule{
			Kind:     domain.RulePurchaseOnly,
			ArtistID: song.ArtistID,
			RefKind:  transactiondomain.ItemTypeSong,
			RefID:    song.ID,
		}, true
	default:
		return domain.AccessRule{}, false
	}
}

func albumRule(album *catalogdomain.Album) (domain.AccessRule, bool) {
	switch album.AccessType {
	case catalogdomain.AccessTypeFree:
		return domain.AccessRule{Kind: domain.RuleFree}, true
	case catalogdomain.AccessTypeSubscription:
		return domain.AccessRule{Kind: domain.RuleSubscription, ArtistID: album.ArtistID}, true
	case catalogdomain.AccessTypePurchaseOnly:
		return domain.AccessRule{
			Kind:     domain.RulePurchaseOnly,
			ArtistID: album.ArtistID,
			RefKind:  transactiondomain.ItemTypeAlbum,
			RefID:    album.ID,
		}, true
	default:
		return domain.AccessRule{}, false
	}
}

// evaluate applies the precedence order shared by songs and albums:
// admin, free, authentication, owning artist, then paid evidence.
func (s *Service) evaluate(ctx context.Context, identity *identitydomain.Identity, ownerArtistID snowflake.ID, rule domain.AccessRule) (domain.Decision, error) {
	if identity != nil && identity.IsAdmin() {
		return domain.Allow(domain.ReasonAdmin), nil
	}
	if rule.Kind == domain.RuleFree {
		return domain.Allow(domain.ReasonFree), nil
	}
	if identity == nil {
		return domain.Deny(domain.ReasonUnauthenticated), nil
	}
	if identity.OwnsArtist(ownerArtistID) {
		return domain.Allow(domain.ReasonOwner), nil
	}

	switch rule.Kind {
	case domain.RuleSubscription:
		ok, err := s.subs.HasAccess(ctx, identity.UserID, rule.ArtistID)
		if err != nil {
			return domain.Decision{}, err
		}
		if ok {
			return domain.Allow(domain.ReasonSubscription), nil
		}
		return domain.Deny(domain.ReasonNoEntitlement), nil
	case domain.RulePurchaseOnly:
		ok, err := s.txns.HasPaidPurchase(ctx, identity.UserID, rule.RefKind, rule.RefID)
		if err != nil {
			return domain.Decision{}, err
		}
		if ok {
			return domain.Allow(domain.ReasonPurchase), nil
		}
		return domain.Deny(domain.ReasonNoEntitlement), nil
	default:
		return domain.Deny(domain.ReasonMalformed), nil
	}
}

func (s *Service) CanStreamSong(ctx context.Context, identity *identitydomain.Identity, songID snowflake.ID) (domain.Decision, error) {
	if songID == 0 {
		return domain.Deny(domain.ReasonMalformed), nil
	}

	song, err := s.catalog.GetSong(ctx, songID)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrSongNotFound) {
			return s.record(ctx, "song", domain.Deny(domain.ReasonNotFound)), nil
		}
		return domain.Decision{}, err
	}

	rule, ok := songRule(song)
	if !ok {
		s.log.Warn("song carries unevaluable access rule",
			zap.Int64("song_id", songID.Int64()),
			zap.String("access_type", string(song.AccessType)),
		)
		return s.record(ctx, "song", domain.Deny(domain.ReasonMalformed)), nil
	}

	decision, err := s.evaluate(ctx, identity, song.ArtistID, rule)
	if err != nil {
		return domain.Decision{}, err
	}
	return s.record(ctx, "song", decision), nil
}

func (s *Service) CanStreamAlbum(ctx context.Context, identity *identitydomain.Identity, albumID snowflake.ID) (domain.Decision, error) {
	if albumID == 0 {
		return domain.Deny(domain.ReasonMalformed), nil
	}

	album, err := s.catalog.GetAlbum(ctx, albumID)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrAlbumNotFound) {
			return s.record(ctx, "album", domain.Deny(domain.ReasonNotFound)), nil
		}
		return domain.Decision{}, err
	}

	rule, ok := albumRule(album)
	if !ok {
		s.log.Warn("album carries unevaluable access rule",
			zap.Int64("album_id", albumID.Int64()),
			zap.String("access_type", string(album.AccessType)),
		)
		return s.record(ctx, "album", domain.Deny(domain.ReasonMalformed)), nil
	}

	decision, err := s.evaluate(ctx, identity, album.ArtistID, rule)
	if err != nil {
		return domain.Decision{}, err
	}
	return s.record(ctx, "album", decision), nil
}

func (s *Service) record(ctx context.Context, itemKind string, d domain.Decision) domain.Decision {
	s.metrics.RecordEntitlementCheck(ctx, itemKind, d.Allowed)
	return d
}
