package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
)

func newTestTag(t *testing.T, repo *MemoryTagsRepository, tagType domain.TagType) *domain.Tag {
	t.Helper()
	tag, err := repo.CreateTag(context.Background(), domain.NewTag(tagType, 0, "tester"))
	require.NoError(t, err)
	return tag
}

func TestMemoryCreateTag_AssignsNumbersPerType(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	first := newTestTag(t, repo, domain.TagTypePrepTag)
	second := newTestTag(t, repo, domain.TagTypePrepTag)
	otherType := newTestTag(t, repo, domain.TagTypeBasket)

	assert.Equal(t, 1, first.TagNumber)
	assert.Equal(t, 2, second.TagNumber)
	assert.Equal(t, 1, otherType.TagNumber)
	assert.NotEmpty(t, first.TagID)
	assert.False(t, first.CreatedAt.IsZero())

	found, err := repo.GetTagByNumberAndType(ctx, 2, domain.TagTypePrepTag)
	require.NoError(t, err)
	assert.Equal(t, second.TagID, found.TagID)
}

func TestMemoryCreateTag_RejectsDuplicateNumber(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	_, err := repo.CreateTag(ctx, domain.NewTag(domain.TagTypeWash, 7, "tester"))
	require.NoError(t, err)

	_, err = repo.CreateTag(ctx, domain.NewTag(domain.TagTypeWash, 7, "tester"))
	assert.ErrorIs(t, err, ErrDuplicateTagNumber)

	// Same number under another type is fine.
	_, err = repo.CreateTag(ctx, domain.NewTag(domain.TagTypeBundle, 7, "tester"))
	assert.NoError(t, err)
}

func TestMemoryGetTag_NotFound(t *testing.T) {
	repo := NewMemoryTagsRepository()

	tag, err := repo.GetTag(context.Background(), "no-such-tag")
	assert.ErrorIs(t, err, ErrTagNotFound)
	assert.Nil(t, tag)
}

func TestMemoryUpdateTag_ScalarsOnly(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	tag := newTestTag(t, repo, domain.TagTypePrepTag)
	require.NoError(t, repo.AddUnitToTag(ctx, tag.TagID, 11, time.Now(), 0, false))

	tag.Status = domain.TagStatusInactive
	tag.LocationKeyID = 4
	tag.UpdatedBy = "tester"
	require.NoError(t, repo.UpdateTag(ctx, tag))

	updated, err := repo.GetTag(ctx, tag.TagID)
	require.NoError(t, err)
	assert.Equal(t, domain.TagStatusInactive, updated.Status)
	assert.Equal(t, int64(4), updated.LocationKeyID)
	assert.NotNil(t, updated.UpdatedAt)
	// Contents survive scalar updates.
	assert.Equal(t, []int64{11}, updated.Contents.Units)

	missing := domain.NewTag(domain.TagTypePrepTag, 99, "tester")
	missing.TagID = "no-such-tag"
	assert.ErrorIs(t, repo.UpdateTag(ctx, missing), ErrTagNotFound)
}

func TestMemoryDeleteTag_DetachesChildren(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	parent := newTestTag(t, repo, domain.TagTypeTransport)
	child := newTestTag(t, repo, domain.TagTypeBasket)
	require.NoError(t, repo.AddTagToTag(ctx, parent.TagID, child.TagID, time.Now(), 0))

	deleted, err := repo.DeleteTag(ctx, parent.TagID)
	require.NoError(t, err)
	assert.True(t, deleted)

	orphan, err := repo.GetParentTag(ctx, child.TagID)
	require.NoError(t, err)
	assert.Nil(t, orphan)

	deleted, err = repo.DeleteTag(ctx, parent.TagID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryAddUnitToTag_EvictsOtherPlacements(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	first := newTestTag(t, repo, domain.TagTypePrepTag)
	second := newTestTag(t, repo, domain.TagTypeBasket)

	require.NoError(t, repo.AddUnitToTag(ctx, first.TagID, 100, time.Now(), 1, false))
	require.NoError(t, repo.AddUnitToTag(ctx, second.TagID, 100, time.Now(), 1, false))

	holders, err := repo.GetTagsContainingUnit(ctx, 100)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, second.TagID, holders[0].TagID)

	emptied, err := repo.GetTag(ctx, first.TagID)
	require.NoError(t, err)
	assert.Empty(t, emptied.Contents.Units)

	inAny, err := repo.IsUnitInAnyTag(ctx, 100)
	require.NoError(t, err)
	assert.True(t, inAny)
}

func TestMemoryAddUnitToTag_SplitPlacementsCoexist(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	first := newTestTag(t, repo, domain.TagTypeBasket)
	second := newTestTag(t, repo, domain.TagTypeBasket)

	require.NoError(t, repo.AddUnitToTag(ctx, first.TagID, 200, time.Now(), 1, true))
	require.NoError(t, repo.AddUnitToTag(ctx, second.TagID, 200, time.Now(), 1, true))

	holders, err := repo.GetTagsContainingUnit(ctx, 200)
	require.NoError(t, err)
	assert.Len(t, holders, 2)

	linked, err := repo.GetLinkedSplitTags(ctx, first.TagID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, second.TagID, linked[0].TagID)

	// A later exclusive add pulls the unit out of every split placement.
	third := newTestTag(t, repo, domain.TagTypePrepTag)
	require.NoError(t, repo.AddUnitToTag(ctx, third.TagID, 200, time.Now(), 1, false))

	holders, err = repo.GetTagsContainingUnit(ctx, 200)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, third.TagID, holders[0].TagID)
}

func TestMemoryRemoveUnitFromTag_OneRowPerCall(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	tag := newTestTag(t, repo, domain.TagTypeBasket)
	require.NoError(t, repo.AddUnitToTag(ctx, tag.TagID, 300, time.Now(), 0, true))
	require.NoError(t, repo.AddUnitToTag(ctx, tag.TagID, 300, time.Now(), 0, true))

	removed, err := repo.RemoveUnitFromTag(ctx, tag.TagID, 300, time.Now(), 0)
	require.NoError(t, err)
	assert.True(t, removed)

	current, err := repo.GetTag(ctx, tag.TagID)
	require.NoError(t, err)
	assert.Equal(t, []int64{300}, current.Contents.Units)

	removed, err = repo.RemoveUnitFromTag(ctx, tag.TagID, 300, time.Now(), 0)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveUnitFromTag(ctx, tag.TagID, 300, time.Now(), 0)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryAddItemToTag_TripleExclusivity(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	first := newTestTag(t, repo, domain.TagTypePrepTag)
	second := newTestTag(t, repo, domain.TagTypeBundle)

	item := domain.TagItem{ItemKeyID: 10, SerialKeyID: 20, Count: 2}
	require.NoError(t, repo.AddItemToTag(ctx, first.TagID, item, time.Now(), 1, false))
	require.NoError(t, repo.AddItemToTag(ctx, second.TagID, item, time.Now(), 1, false))

	holders, err := repo.GetTagsContainingItem(ctx, 10, 20)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, second.TagID, holders[0].TagID)

	// A different lot is a different placement key.
	lotted := domain.TagItem{ItemKeyID: 10, SerialKeyID: 20, LotInfoKeyID: 5}
	require.NoError(t, repo.AddItemToTag(ctx, first.TagID, lotted, time.Now(), 1, false))

	holders, err = repo.GetTagsContainingItem(ctx, 10, 20)
	require.NoError(t, err)
	assert.Len(t, holders, 2)
}

func TestMemoryRemoveItemFromTag_ExactTripleOnly(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	tag := newTestTag(t, repo, domain.TagTypePrepTag)
	item := domain.TagItem{ItemKeyID: 10, SerialKeyID: 20, LotInfoKeyID: 30}
	require.NoError(t, repo.AddItemToTag(ctx, tag.TagID, item, time.Now(), 0, false))

	removed, err := repo.RemoveItemFromTag(ctx, tag.TagID, 10, 20, 0, time.Now(), 0)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.RemoveItemFromTag(ctx, tag.TagID, 10, 20, 30, time.Now(), 0)
	require.NoError(t, err)
	assert.True(t, removed)

	empty, err := repo.IsTagEmpty(ctx, tag.TagID)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestMemoryAddTagToTag_ReparentsChild(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	first := newTestTag(t, repo, domain.TagTypeTransport)
	second := newTestTag(t, repo, domain.TagTypeTransport)
	child := newTestTag(t, repo, domain.TagTypeBasket)

	require.NoError(t, repo.AddTagToTag(ctx, first.TagID, child.TagID, time.Now(), 0))
	require.NoError(t, repo.AddTagToTag(ctx, second.TagID, child.TagID, time.Now(), 0))

	parent, err := repo.GetParentTag(ctx, child.TagID)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, second.TagID, parent.TagID)

	previous, err := repo.GetChildTags(ctx, first.TagID)
	require.NoError(t, err)
	assert.Empty(t, previous)
}

func TestMemoryAddTagToTag_RejectsCycles(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	top := newTestTag(t, repo, domain.TagTypeTransport)
	middle := newTestTag(t, repo, domain.TagTypeCaseCart)
	bottom := newTestTag(t, repo, domain.TagTypeBasket)

	assert.ErrorIs(t, repo.AddTagToTag(ctx, top.TagID, top.TagID, time.Now(), 0), ErrCycleDetected)

	require.NoError(t, repo.AddTagToTag(ctx, top.TagID, middle.TagID, time.Now(), 0))
	assert.ErrorIs(t, repo.AddTagToTag(ctx, middle.TagID, top.TagID, time.Now(), 0), ErrCycleDetected)

	require.NoError(t, repo.AddTagToTag(ctx, middle.TagID, bottom.TagID, time.Now(), 0))
	assert.ErrorIs(t, repo.AddTagToTag(ctx, bottom.TagID, top.TagID, time.Now(), 0), ErrCycleDetected)

	// The rejected edges must leave the hierarchy untouched.
	rootID, err := repo.GetRootTagID(ctx, bottom.TagID)
	require.NoError(t, err)
	assert.Equal(t, top.TagID, rootID)
}

func TestMemoryRootQueries(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	top := newTestTag(t, repo, domain.TagTypeTransport)
	middle := newTestTag(t, repo, domain.TagTypeCaseCart)
	bottom := newTestTag(t, repo, domain.TagTypeBasket)
	loose := newTestTag(t, repo, domain.TagTypePrepTag)

	require.NoError(t, repo.AddTagToTag(ctx, top.TagID, middle.TagID, time.Now(), 0))
	require.NoError(t, repo.AddTagToTag(ctx, middle.TagID, bottom.TagID, time.Now(), 0))

	roots, err := repo.GetRootTags(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, top.TagID, roots[0].TagID)
	assert.Equal(t, loose.TagID, roots[1].TagID)

	rootID, err := repo.GetRootTagID(ctx, bottom.TagID)
	require.NoError(t, err)
	assert.Equal(t, top.TagID, rootID)

	rootID, err = repo.GetRootTagID(ctx, loose.TagID)
	require.NoError(t, err)
	assert.Equal(t, loose.TagID, rootID)

	// Contents resolve transitively from the root.
	require.NoError(t, repo.AddUnitToTag(ctx, bottom.TagID, 77, time.Now(), 0, false))
	tree, err := repo.GetTag(ctx, top.TagID)
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, tree.Contents.AllContainedUnits())
}

func TestMemoryIndicatorPlacement(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	first := newTestTag(t, repo, domain.TagTypeSterilizationLoad)
	second := newTestTag(t, repo, domain.TagTypeSterilizationLoad)

	require.NoError(t, repo.AddIndicatorToTag(ctx, first.TagID, 42, time.Now(), 0))
	require.NoError(t, repo.AddIndicatorToTag(ctx, second.TagID, 42, time.Now(), 0))

	moved, err := repo.GetTag(ctx, first.TagID)
	require.NoError(t, err)
	assert.Empty(t, moved.Contents.Indicators)

	holder, err := repo.GetTag(ctx, second.TagID)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, holder.Contents.Indicators)

	removed, err := repo.RemoveIndicatorFromTag(ctx, second.TagID, 42, time.Now(), 0)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveIndicatorFromTag(ctx, second.TagID, 42, time.Now(), 0)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryDissolveTag_EmptiesEverything(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	tag := newTestTag(t, repo, domain.TagTypeCaseCart)
	child := newTestTag(t, repo, domain.TagTypeBasket)

	require.NoError(t, repo.AddUnitToTag(ctx, tag.TagID, 1, time.Now(), 0, false))
	require.NoError(t, repo.AddItemToTag(ctx, tag.TagID, domain.TagItem{ItemKeyID: 2}, time.Now(), 0, false))
	require.NoError(t, repo.AddIndicatorToTag(ctx, tag.TagID, 3, time.Now(), 0))
	require.NoError(t, repo.AddTagToTag(ctx, tag.TagID, child.TagID, time.Now(), 0))

	count, err := repo.GetTagContentCount(ctx, tag.TagID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, repo.DissolveTag(ctx, tag.TagID, time.Now(), 0))

	empty, err := repo.IsTagEmpty(ctx, tag.TagID)
	require.NoError(t, err)
	assert.True(t, empty)

	orphan, err := repo.GetParentTag(ctx, child.TagID)
	require.NoError(t, err)
	assert.Nil(t, orphan)

	// The dissolved tag itself survives.
	_, err = repo.GetTag(ctx, tag.TagID)
	assert.NoError(t, err)
}

func TestMemoryMoveTagContent_MovesEverything(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	source := newTestTag(t, repo, domain.TagTypeCaseCart)
	transport := newTestTag(t, repo, domain.TagTypeTransportBox)
	child := newTestTag(t, repo, domain.TagTypeBasket)

	require.NoError(t, repo.AddUnitToTag(ctx, source.TagID, 1, time.Now(), 0, false))
	require.NoError(t, repo.AddItemToTag(ctx, source.TagID, domain.TagItem{ItemKeyID: 2, Count: 3}, time.Now(), 0, false))
	require.NoError(t, repo.AddIndicatorToTag(ctx, source.TagID, 3, time.Now(), 0))
	require.NoError(t, repo.AddTagToTag(ctx, source.TagID, child.TagID, time.Now(), 0))

	require.NoError(t, repo.MoveTagContentToTransportTag(ctx, source.TagID, transport.TagID, time.Now(), 9))

	empty, err := repo.IsTagEmpty(ctx, source.TagID)
	require.NoError(t, err)
	assert.True(t, empty)

	moved, err := repo.GetTag(ctx, transport.TagID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, moved.Contents.Units)
	require.Len(t, moved.Contents.Items, 1)
	assert.Equal(t, 3, moved.Contents.Items[0].Count)
	assert.Equal(t, []int64{3}, moved.Contents.Indicators)
	require.Len(t, moved.Contents.Tags, 1)
	assert.Equal(t, child.TagID, moved.Contents.Tags[0].TagID)

	parent, err := repo.GetParentTag(ctx, child.TagID)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, transport.TagID, parent.TagID)
}

func TestMemoryMoveTagContent_RejectsTransportInsideSource(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	source := newTestTag(t, repo, domain.TagTypeCaseCart)
	nested := newTestTag(t, repo, domain.TagTypeBasket)
	transport := newTestTag(t, repo, domain.TagTypeTransportBox)

	require.NoError(t, repo.AddTagToTag(ctx, source.TagID, nested.TagID, time.Now(), 0))
	require.NoError(t, repo.AddTagToTag(ctx, nested.TagID, transport.TagID, time.Now(), 0))

	err := repo.MoveTagContentToTransportTag(ctx, source.TagID, transport.TagID, time.Now(), 0)
	assert.ErrorIs(t, err, ErrCycleDetected)

	// Nothing moved.
	count, err := repo.GetTagContentCount(ctx, source.TagID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryAutoTagReservations(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	first, err := repo.ReserveAutoTag(ctx, domain.TagTypeSterilizationLoad, 5)
	require.NoError(t, err)
	second, err := repo.ReserveAutoTag(ctx, domain.TagTypeSterilizationLoad, 5)
	require.NoError(t, err)

	assert.Equal(t, 1, first.TagNumber)
	assert.Equal(t, 2, second.TagNumber)
	assert.True(t, first.IsAuto)
	assert.True(t, first.HasAutoReservation)

	reserved, err := repo.GetReservedAutoTags(ctx)
	require.NoError(t, err)
	assert.Len(t, reserved, 2)

	released, err := repo.ReleaseAutoTagReservation(ctx, first.TagID)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = repo.ReleaseAutoTagReservation(ctx, first.TagID)
	require.NoError(t, err)
	assert.False(t, released)

	reserved, err = repo.GetReservedAutoTags(ctx)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, second.TagID, reserved[0].TagID)
}

func TestMemoryGetEmptyAutoTag(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	reserved, err := repo.ReserveAutoTag(ctx, domain.TagTypeWash, 3)
	require.NoError(t, err)

	found, err := repo.GetEmptyAutoTag(ctx, domain.TagTypeWash, 3)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, reserved.TagID, found.TagID)

	// Wrong location finds nothing.
	found, err = repo.GetEmptyAutoTag(ctx, domain.TagTypeWash, 4)
	require.NoError(t, err)
	assert.Nil(t, found)

	// A non-empty auto tag no longer qualifies.
	require.NoError(t, repo.AddUnitToTag(ctx, reserved.TagID, 50, time.Now(), 3, false))
	found, err = repo.GetEmptyAutoTag(ctx, domain.TagTypeWash, 3)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryListTags_PaginationCoversEveryTag(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	created := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		tag := newTestTag(t, repo, domain.TagTypePrepTag)
		created = append(created, tag.TagID)
	}

	seen := make([]string, 0, 5)
	for page := 1; ; page++ {
		tags, total, err := repo.ListTags(ctx, TagsFilter{}, page, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		if len(tags) == 0 {
			break
		}
		for _, tag := range tags {
			seen = append(seen, tag.TagID)
		}
	}
	assert.Equal(t, created, seen)

	all, total, err := repo.ListTags(ctx, TagsFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, all, 5)
}

func TestMemoryListTags_Filters(t *testing.T) {
	repo := NewMemoryTagsRepository()
	ctx := context.Background()

	prep := newTestTag(t, repo, domain.TagTypePrepTag)
	newTestTag(t, repo, domain.TagTypeBasket)
	auto, err := repo.ReserveAutoTag(ctx, domain.TagTypeBasket, 2)
	require.NoError(t, err)

	tags, total, err := repo.ListTags(ctx, TagsFilter{TagType: domain.TagTypePrepTag}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tags, 1)
	assert.Equal(t, prep.TagID, tags[0].TagID)

	tags, _, err = repo.ListTags(ctx, TagsFilter{AutoOnly: true}, 1, 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, auto.TagID, tags[0].TagID)

	tags, _, err = repo.ListTags(ctx, TagsFilter{LocationKeyID: 2}, 1, 10)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, auto.TagID, tags[0].TagID)
}

func TestMemoryGetSplitTagsForUnitSerialNumber_Unsupported(t *testing.T) {
	repo := NewMemoryTagsRepository()

	_, err := repo.GetSplitTagsForUnitSerialNumber(context.Background(), "SN-1")
	assert.ErrorIs(t, err, ErrUnsupported)
}
