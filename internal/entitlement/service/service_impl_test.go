package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"github.com/cadenzalabs/cadenza/internal/entitlement/domain"
	"github.com/cadenzalabs/cadenza/internal/entitlement/service"
	identitydomain "github.com/cadenzalabs/cadenza/internal/identity/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
	"go.uber.org/zap"
)

type stubCatalog struct {
	songs  map[snowflake.ID]*catalogdomain.Song
	albums map[snowflake.ID]*catalogdomain.Album
}

func (s *stubCatalog) GetSong(_ context.Context, id snowflake.ID) (*catalogdomain.Song, error) {
	song, ok := s.songs[id]
	if !ok {
		return nil, catalogdomain.ErrSongNotFound
	}
	return song, nil
}

func (s *stubCatalog) GetAlbum(_ context.Context, id snowflake.ID) (*catalogdomain.Album, error) {
	album, ok := s.albums[id]
	if !ok {
		return nil, catalogdomain.ErrAlbumNotFound
	}
	return album, nil
}

type subKey struct{ user, artist snowflake.ID }

type stubSubs struct {
	access map[subKey]bool
	err    error
}

func (s *stubSubs) HasAccess(_ context.Context, userID, artistID snowflake.ID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.access[subKey{userID, artistID}], nil
}

type purchaseKey struct {
	user     snowflake.ID
	itemType transactiondomain.ItemType
	item     snowflake.ID
}

type stubTxns struct {
	paid map[purchaseKey]bool
	err  error
}

func (s *stubTxns) HasPaidPurchase(_ context.Context, userID snowflake.ID, itemType transactiondomain.ItemType, itemID snowflake.ID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.paid[purchaseKey{userID, itemType, itemID}], nil
}

type fixture struct {
	svc     domain.Service
	catalog *stubCatalog
	subs    *stubSubs
	txns    *stubTxns
	node    *snowflake.Node
}

func newFixture(t *testing.T, nodeID int64) *fixture {
	t.Helper()

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	catalog := &stubCatalog{
		songs:  map[snowflake.ID]*catalogdomain.Song{},
		albums: map[snowflake.ID]*catalogdomain.Album{},
	}
	subs := &stubSubs{access: map[subKey]bool{}}
	txns := &stubTxns{paid: map[purchaseKey]bool{}}
	svc := service.New(service.Params{
		Log:           zap.NewNop(),
		Catalog:       catalog,
		Subscriptions: subs,
		Transactions:  txns,
	})
	return &fixture{svc: svc, catalog: catalog, subs: subs, txns: txns, node: node}
}

func (f *fixture) addSong(artistID snowflake.ID, accessType catalogdomain.AccessType, albumOnly bool, albumID *snowflake.ID) snowflake.ID {
	id := f.node.Generate()
	f.catalog.songs[id] = &catalogdomain.Song{
		ID:         id,
		ArtistID:   artistID,
		AccessType: accessType,
		AlbumOnly:  albumOnly,
		AlbumID:    albumID,
		CreatedAt:  time.Now().UTC(),
	}
	return id
}

func (f *fixture) addAlbum(artistID snowflake.ID, accessType catalogdomain.AccessType) snowflake.ID {
	id := f.node.Generate()
	f.catalog.albums[id] = &catalogdomain.Album{
		ID:         id,
		ArtistID:   artistID,
		AccessType: accessType,
		CreatedAt:  time.Now().UTC(),
	}
	return id
}

func user(id snowflake.ID) *identitydomain.Identity {
	return &identitydomain.Identity{UserID: id, Role: identitydomain.RoleUser}
}

func TestFreeSongAllowsAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 60)
	songID := f.addSong(f.node.Generate(), catalogdomain.AccessTypeFree, false, nil)

	d, err := f.svc.CanStreamSong(ctx, nil, songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if !d.Allowed || d.Reason != domain.ReasonFree {
		t.Fatalf("expected free allow, got %+v", d)
	}
}

func TestMissingSongDenies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 61)

	d, err := f.svc.CanStreamSong(ctx, user(f.node.Generate()), f.node.Generate())
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed || d.Reason != domain.ReasonNotFound {
		t.Fatalf("expected not_found deny, got %+v", d)
	}
}

func TestMalformedIDDenies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 62)

	d, err := f.svc.CanStreamSong(ctx, user(f.node.Generate()), 0)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed || d.Reason != domain.ReasonMalformed {
		t.Fatalf("expected malformed deny, got %+v", d)
	}
}

func TestGatedSongDeniesAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 63)
	songID := f.addSong(f.node.Generate(), catalogdomain.AccessTypeSubscription, false, nil)

	d, err := f.svc.CanStreamSong(ctx, nil, songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed || d.Reason != domain.ReasonUnauthenticated {
		t.Fatalf("expected unauthenticated deny, got %+v", d)
	}
}

func TestAdminBypassesGates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 64)
	songID := f.addSong(f.node.Generate(), catalogdomain.AccessTypePurchaseOnly, false, nil)

	admin := &identitydomain.Identity{UserID: f.node.Generate(), Role: identitydomain.RoleAdmin}
	d, err := f.svc.CanStreamSong(ctx, admin, songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if !d.Allowed || d.Reason != domain.ReasonAdmin {
		t.Fatalf("expected admin allow, got %+v", d)
	}
}

func TestOwningArtistStreamsOwnGatedSong(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 65)
	artistID := f.node.Generate()
	songID := f.addSong(artistID, catalogdomain.AccessTypeSubscription, false, nil)

	owner := &identitydomain.Identity{
		UserID:   f.node.Generate(),
		Role:     identitydomain.RoleArtist,
		ArtistID: &artistID,
	}
	d, err := f.svc.CanStreamSong(ctx, owner, songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if !d.Allowed || d.Reason != domain.ReasonOwner {
		t.Fatalf("expected owner allow, got %+v", d)
	}

	// The same artist role does not unlock someone else's catalog.
	otherSong := f.addSong(f.node.Generate(), catalogdomain.AccessTypeSubscription, false, nil)
	d, err = f.svc.CanStreamSong(ctx, owner, otherSong)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected deny for foreign catalog, got %+v", d)
	}
}

func TestSubscriptionGateFollowsValidity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 66)
	artistID := f.node.Generate()
	songID := f.addSong(artistID, catalogdomain.AccessTypeSubscription, false, nil)
	userID := f.node.Generate()

	d, err := f.svc.CanStreamSong(ctx, user(userID), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected deny without subscription, got %+v", d)
	}

	// Subscription payment lands; the same check flips to allow.
	f.subs.access[subKey{userID, artistID}] = true
	d, err = f.svc.CanStreamSong(ctx, user(userID), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if !d.Allowed || d.Reason != domain.ReasonSubscription {
		t.Fatalf("expected subscription allow, got %+v", d)
	}

	// Paid time runs out; nothing is cached, so access drops again.
	f.subs.access[subKey{userID, artistID}] = false
	d, err = f.svc.CanStreamSong(ctx, user(userID), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected deny after expiry, got %+v", d)
	}
}

func TestPurchaseOnlySongRequiresPaidTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 67)
	songID := f.addSong(f.node.Generate(), catalogdomain.AccessTypePurchaseOnly, false, nil)
	userID := f.node.Generate()

	d, err := f.svc.CanStreamSong(ctx, user(userID), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected deny before purchase, got %+v", d)
	}

	f.txns.paid[purchaseKey{userID, transactiondomain.ItemTypeSong, songID}] = true
	d, err = f.svc.CanStreamSong(ctx, user(userID), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if !d.Allowed || d.Reason != domain.ReasonPurchase {
		t.Fatalf("expected purchase allow, got %+v", d)
	}
}

func TestAlbumOnlySongUnlockedByAlbumPurchase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 68)
	artistID := f.node.Generate()
	albumID := f.addAlbum(artistID, catalogdomain.AccessTypePurchaseOnly)
	songID := f.addSong(artistID, catalogdomain.AccessTypePurchaseOnly, true, &albumID)
	userID := f.node.Generate()

	// Buying the song itself does nothing for an album-only track.
	f.txns.paid[purchaseKey{userID, transactiondomain.ItemTypeSong, songID}] = true
	d, err := f.svc.CanStreamSong(ctx, user(userID), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected deny without album purchase, got %+v", d)
	}

	f.txns.paid[purchaseKey{userID, transactiondomain.ItemTypeAlbum, albumID}] = true
	d, err = f.svc.CanStreamSong(ctx, user(userID), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if !d.Allowed || d.Reason != domain.ReasonPurchase {
		t.Fatalf("expected allow via album purchase, got %+v", d)
	}
}

func TestAlbumOnlySongWithoutParentStaysLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 69)
	songID := f.addSong(f.node.Generate(), catalogdomain.AccessTypePurchaseOnly, true, nil)

	d, err := f.svc.CanStreamSong(ctx, user(f.node.Generate()), songID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed || d.Reason != domain.ReasonMalformed {
		t.Fatalf("expected malformed deny, got %+v", d)
	}
}

func TestCanStreamAlbumUsesTransactionLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 70)
	albumID := f.addAlbum(f.node.Generate(), catalogdomain.AccessTypePurchaseOnly)
	userID := f.node.Generate()

	d, err := f.svc.CanStreamAlbum(ctx, user(userID), albumID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected deny before purchase, got %+v", d)
	}

	f.txns.paid[purchaseKey{userID, transactiondomain.ItemTypeAlbum, albumID}] = true
	d, err = f.svc.CanStreamAlbum(ctx, user(userID), albumID)
	if err != nil {
		t.Fatalf("can stream: %v", err)
	}
	if !d.Allowed || d.Reason != domain.ReasonPurchase {
		t.Fatalf("expected purchase allow, got %+v", d)
	}
}

func TestDatastoreErrorPropagatesInsteadOfDenying(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 71)
	artistID := f.node.Generate()
	songID := f.addSong(artistID, catalogdomain.AccessTypeSubscription, false, nil)

	f.subs.err = errors.New("connection reset")
	_, err := f.svc.CanStreamSong(ctx, user(f.node.Generate()), songID)
	if err == nil {
		t.Fatal("expected infrastructure error to propagate")
	}
}
