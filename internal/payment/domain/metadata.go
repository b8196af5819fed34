package domain

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/cadenzalabs/cadenza/internal/subscription/domain"
	transactiondomain "github.com/cadenzalabs/cadenza/internal/transaction/domain"
)

// Metadata is the platform-owned payload every checkout attaches to
// its gateway charge. It is the only link from a gateway event back to
// the user and item being paid for.
type Metadata struct {
	UserID   snowflake.ID
	ItemType transactiondomain.ItemType
	ItemID   snowflake.ID
	ArtistID *snowflake.ID
	Cycle    subscriptiondomain.Cycle
}

func parseID(raw string) (snowflake.ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidMetadata
	}
	return snowflake.ParseInt64(n), nil
}

// ParseMetadata validates the metadata map attached to a charge.
// Subscription purchases additionally require a cycle.
func ParseMetadata(values map[string]string) (Metadata, error) {
	userID, err := parseID(values["user_id"])
	if err != nil {
		return Metadata{}, err
	}
	itemID, err := parseID(values["item_id"])
	if err != nil {
		return Metadata{}, err
	}

	itemType := transactiondomain.ItemType(strings.TrimSpace(values["item_type"]))
	switch itemType {
	case transactiondomain.ItemTypeSong, transactiondomain.ItemTypeAlbum, transactiondomain.ItemTypeSubscription:
	default:
		return Metadata{}, ErrInvalidMetadata
	}

	out := Metadata{UserID: userID, ItemType: itemType, ItemID: itemID}

	if raw := strings.TrimSpace(values["artist_id"]); raw != "" {
		artistID, err := parseID(raw)
		if err != nil {
			return Metadata{}, err
		}
		out.ArtistID = &artistID
	}

	if itemType == transactiondomain.ItemTypeSubscription {
		cycle := subscriptiondomain.Cycle(strings.TrimSpace(values["cycle"]))
		if cycle.Months() == 0 {
			return Metadata{}, ErrInvalidMetadata
		}
		if out.ArtistID == nil {
			return Metadata{}, ErrInvalidMetadata
		}
		out.Cycle = cycle
	}
	return out, nil
}
