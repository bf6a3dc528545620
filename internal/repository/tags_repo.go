package repository

import (
	"context"
	"time"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
)

// TagsFilter narrows ListTags. Zero values mean "no filtering" for that
// dimension.
type TagsFilter struct {
	TagType       domain.TagType
	LocationKeyID int64
	Status        domain.TagStatus
	AutoOnly      bool
}

// TagsRepository is the sole gateway between the tag model and storage.
// Every tag-returning method eagerly populates Contents (units, items,
// indicators and nested tags resolved transitively). Methods are safe for
// concurrent use across different tag ids; multi-row invariants (placement
// exclusivity, re-parenting, bulk moves) are enforced inside a single
// transaction by each implementation.
type TagsRepository interface {
	// GetTag returns the tag by id or ErrTagNotFound.
	GetTag(ctx context.Context, tagID string) (*domain.Tag, error)
	// GetTagByNumberAndType looks a tag up by its type-scoped number.
	GetTagByNumberAndType(ctx context.Context, tagNumber int, tagType domain.TagType) (*domain.Tag, error)
	// ListTags returns one page plus the unpaged total. Paging is 1-indexed;
	// size <= 0 disables paging and returns everything.
	ListTags(ctx context.Context, filter TagsFilter, page, size int) ([]*domain.Tag, int, error)
	// CreateTag persists a new tag, assigns its id and stamps CreatedAt.
	// A TagNumber of 0 is replaced with the next number for the tag's type.
	CreateTag(ctx context.Context, tag *domain.Tag) (*domain.Tag, error)
	// UpdateTag persists scalar field mutations and stamps UpdatedAt.
	// Returns ErrTagNotFound when the tag no longer exists.
	UpdateTag(ctx context.Context, tag *domain.Tag) error
	// DeleteTag removes the tag and cascades its content rows. Returns false
	// (not an error) when the tag did not exist.
	DeleteTag(ctx context.Context, tagID string) (bool, error)

	GetTagsByType(ctx context.Context, tagType domain.TagType) ([]*domain.Tag, error)
	GetTagsByLocation(ctx context.Context, locationKeyID int64) ([]*domain.Tag, error)
	GetAutoTags(ctx context.Context) ([]*domain.Tag, error)
	// GetTagsContainingUnit is the reverse placement lookup for one unit,
	// split placements included.
	GetTagsContainingUnit(ctx context.Context, unitID int64) ([]*domain.Tag, error)
	GetTagsContainingItem(ctx context.Context, itemKeyID, serialKeyID int64) ([]*domain.Tag, error)
	IsUnitInAnyTag(ctx context.Context, unitID int64) (bool, error)
	IsItemInAnyTag(ctx context.Context, itemKeyID, serialKeyID int64) (bool, error)
	// GetTagContentCount sums unit, item, nested-tag and indicator rows.
	GetTagContentCount(ctx context.Context, tagID string) (int, error)
	IsTagEmpty(ctx context.Context, tagID string) (bool, error)

	// GetChildTags returns direct children only, in placement order.
	GetChildTags(ctx context.Context, parentID string) ([]*domain.Tag, error)
	// GetParentTag returns (nil, nil) when childID is a root.
	GetParentTag(ctx context.Context, childID string) (*domain.Tag, error)
	GetRootTags(ctx context.Context) ([]*domain.Tag, error)
	// GetRootTagID walks parent links upward until a parentless tag is found.
	GetRootTagID(ctx context.Context, tagID string) (string, error)

	// AddUnitToTag places a unit. Unless markAsSplit is true the unit is
	// first evicted from every tag it currently occupies, in the same
	// transaction as the insert.
	AddUnitToTag(ctx context.Context, tagID string, unitID int64, at time.Time, locationKeyID int64, markAsSplit bool) error
	// RemoveUnitFromTag removes one (tagID, unitID) placement row. Returns
	// false when that exact relation did not exist.
	RemoveUnitFromTag(ctx context.Context, tagID string, unitID int64, at time.Time, locationKeyID int64) (bool, error)
	AddItemToTag(ctx context.Context, tagID string, item domain.TagItem, at time.Time, locationKeyID int64, markAsSplit bool) error
	RemoveItemFromTag(ctx context.Context, tagID string, itemKeyID, serialKeyID, lotInfoKeyID int64, at time.Time, locationKeyID int64) (bool, error)
	// AddTagToTag nests childID under parentID, re-parenting if the child
	// already sits elsewhere. Mutations that would close a containment loop
	// fail with ErrCycleDetected.
	AddTagToTag(ctx context.Context, parentID, childID string, at time.Time, locationKeyID int64) error
	RemoveTagFromTag(ctx context.Context, parentID, childID string, at time.Time, locationKeyID int64) (bool, error)
	// AddIndicatorToTag places an indicator, evicting any previous placement
	// (indicators have no split mechanism).
	AddIndicatorToTag(ctx context.Context, tagID string, indicatorID int64, at time.Time, locationKeyID int64) error
	RemoveIndicatorFromTag(ctx context.Context, tagID string, indicatorID int64, at time.Time, locationKeyID int64) (bool, error)

	// DissolveTag removes every content row owned by the tag in one
	// transaction; the tag itself survives.
	DissolveTag(ctx context.Context, tagID string, at time.Time, locationKeyID int64) error
	// ClearTagContents is a behavioral alias of DissolveTag.
	ClearTagContents(ctx context.Context, tagID string, at time.Time, locationKeyID int64) error
	// MoveTagContentToTransportTag re-parents every content row from source
	// to destination in one transaction, stamping time and location on each
	// moved row.
	MoveTagContentToTransportTag(ctx context.Context, sourceTagID, transportTagID string, at time.Time, locationKeyID int64) error
	// UpdateTagLocation stamps the tag's current location (scan ingestion).
	UpdateTagLocation(ctx context.Context, tagID string, locationKeyID int64, at time.Time) error

	// ReserveAutoTag creates a reserved auto tag numbered max+1 for the type
	// (starting at 1) and returns it.
	ReserveAutoTag(ctx context.Context, tagType domain.TagType, locationKeyID int64) (*domain.Tag, error)
	// ReleaseAutoTagReservation clears the reservation flag. Returns false
	// when the tag is not currently an auto reservation.
	ReleaseAutoTagReservation(ctx context.Context, tagID string) (bool, error)
	GetReservedAutoTags(ctx context.Context) ([]*domain.Tag, error)
	// GetEmptyAutoTag returns the first content-free auto tag for the
	// type/location, or (nil, nil) when none is free.
	GetEmptyAutoTag(ctx context.Context, tagType domain.TagType, locationKeyID int64) (*domain.Tag, error)

	// GetLinkedSplitTags returns the other tags sharing at least one
	// split-flagged unit with tagID.
	GetLinkedSplitTags(ctx context.Context, tagID string) ([]*domain.Tag, error)
	// GetSplitTagsForUnitSerialNumber resolves a unit by serial number and
	// returns the tags holding it through split-flagged rows. Implementations
	// without a units catalog return ErrUnsupported.
	GetSplitTagsForUnitSerialNumber(ctx context.Context, serialNumber string) ([]*domain.Tag, error)
}

// UnitsRepository reads and mirrors unit reference records.
type UnitsRepository interface {
	GetUnit(ctx context.Context, unitID int64) (*domain.Unit, error)
	GetUnitBySerialNumber(ctx context.Context, serialNumber string) (*domain.Unit, error)
	CreateUnit(ctx context.Context, unit *domain.Unit) (*domain.Unit, error)
}
