package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
)

type unitPlacement struct {
	unitID        int64
	isSplit       bool
	placedAt      time.Time
	locationKeyID int64
}

type itemPlacement struct {
	item          domain.TagItem
	isSplit       bool
	placedAt      time.Time
	locationKeyID int64
}

type indicatorPlacement struct {
	indicatorID   int64
	placedAt      time.Time
	locationKeyID int64
}

// tagRecord is the stored form of a tag: scalar fields plus flat placement
// lists. Contents are assembled on read.
type tagRecord struct {
	tag        domain.Tag
	units      []unitPlacement
	items      []itemPlacement
	indicators []indicatorPlacement
	children   []string
	parent     string
	seq        int
}

// MemoryTagsRepository is the in-memory TagsRepository used when the service
// runs without a database and by the service-level tests. It enforces the
// same placement exclusivity, re-parenting and cycle rules as the Postgres
// implementation.
type MemoryTagsRepository struct {
	mu   sync.RWMutex
	tags map[string]*tagRecord
	seq  int
}

// NewMemoryTagsRepository creates an empty in-memory tags repository.
func NewMemoryTagsRepository() *MemoryTagsRepository {
	return &MemoryTagsRepository{
		tags: map[string]*tagRecord{},
	}
}

var _ TagsRepository = (*MemoryTagsRepository)(nil)

// buildTag assembles a detached copy of the record with contents resolved
// transitively. Callers hold at least the read lock.
func (r *MemoryTagsRepository) buildTag(rec *tagRecord, visited map[string]bool) *domain.Tag {
	tag := rec.tag
	if rec.tag.UpdatedAt != nil {
		at := *rec.tag.UpdatedAt
		tag.UpdatedAt = &at
	}

	units := make([]int64, 0, len(rec.units))
	for _, p := range rec.units {
		units = append(units, p.unitID)
	}
	items := make([]domain.TagItem, 0, len(rec.items))
	for _, p := range rec.items {
		items = append(items, p.item)
	}
	indicators := make([]int64, 0, len(rec.indicators))
	for _, p := range rec.indicators {
		indicators = append(indicators, p.indicatorID)
	}
	children := make([]*domain.Tag, 0, len(rec.children))
	for _, childID := range rec.children {
		child, ok := r.tags[childID]
		if !ok || visited[childID] {
			continue
		}
		visited[childID] = true
		children = append(children, r.buildTag(child, visited))
	}

	tag.Contents = domain.TagContents{
		Tags:       children,
		Units:      units,
		Items:      items,
		Indicators: indicators,
	}
	return &tag
}

func (r *MemoryTagsRepository) build(rec *tagRecord) *domain.Tag {
	return r.buildTag(rec, map[string]bool{rec.tag.TagID: true})
}

// collect filters records and returns built tags ordered by less.
func (r *MemoryTagsRepository) collect(match func(*tagRecord) bool, less func(a, b *tagRecord) bool) []*domain.Tag {
	recs := make([]*tagRecord, 0)
	for _, rec := range r.tags {
		if match(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return less(recs[i], recs[j]) })

	tags := make([]*domain.Tag, 0, len(recs))
	for _, rec := range recs {
		tags = append(tags, r.build(rec))
	}
	return tags
}

func bySeq(a, b *tagRecord) bool { return a.seq < b.seq }

func byTypeAndNumber(a, b *tagRecord) bool {
	if a.tag.TagType != b.tag.TagType {
		return a.tag.TagType < b.tag.TagType
	}
	return a.tag.TagNumber < b.tag.TagNumber
}

func (r *MemoryTagsRepository) nextTagNumber(tagType domain.TagType) int {
	max := 0
	for _, rec := range r.tags {
		if rec.tag.TagType == tagType && rec.tag.TagNumber > max {
			max = rec.tag.TagNumber
		}
	}
	return max + 1
}

// GetTag returns the tag by id or ErrTagNotFound.
func (r *MemoryTagsRepository) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return nil, ErrTagNotFound
	}
	return r.build(rec), nil
}

// GetTagByNumberAndType looks a tag up by its type-scoped number.
func (r *MemoryTagsRepository) GetTagByNumberAndType(ctx context.Context, tagNumber int, tagType domain.TagType) (*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.tags {
		if rec.tag.TagNumber == tagNumber && rec.tag.TagType == tagType {
			return r.build(rec), nil
		}
	}
	return nil, ErrTagNotFound
}

// ListTags returns one page plus the unpaged total. size <= 0 disables
// paging.
func (r *MemoryTagsRepository) ListTags(ctx context.Context, filter TagsFilter, page, size int) ([]*domain.Tag, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := r.collect(func(rec *tagRecord) bool {
		if filter.TagType != "" && rec.tag.TagType != filter.TagType {
			return false
		}
		if filter.LocationKeyID > 0 && rec.tag.LocationKeyID != filter.LocationKeyID {
			return false
		}
		if filter.Status != "" && rec.tag.Status != filter.Status {
			return false
		}
		if filter.AutoOnly && !rec.tag.IsAuto {
			return false
		}
		return true
	}, bySeq)

	total := len(tags)
	if size <= 0 {
		return tags, total, nil
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= total {
		return []*domain.Tag{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return tags[start:end], total, nil
}

// CreateTag persists a new tag, assigning its id and number.
func (r *MemoryTagsRepository) CreateTag(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	if tag == nil {
		return nil, fmt.Errorf("tag is required")
	}
	if !tag.TagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tag.TagType)
	}
	if tag.Status == "" {
		tag.Status = domain.TagStatusActive
	}
	if !tag.Status.Valid() {
		return nil, fmt.Errorf("invalid tag status %q", tag.Status)
	}
	if tag.CreatedBy == "" {
		tag.CreatedBy = "system"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tag.TagNumber <= 0 {
		tag.TagNumber = r.nextTagNumber(tag.TagType)
	} else {
		for _, rec := range r.tags {
			if rec.tag.TagNumber == tag.TagNumber && rec.tag.TagType == tag.TagType {
				return nil, ErrDuplicateTagNumber
			}
		}
	}

	tag.TagID = uuid.NewString()
	tag.CreatedAt = time.Now().UTC()

	stored := *tag
	stored.Contents = domain.TagContents{}
	rec := &tagRecord{tag: stored, seq: r.seq}
	r.seq++
	r.tags[tag.TagID] = rec

	return r.build(rec), nil
}

// UpdateTag persists scalar field mutations and stamps UpdatedAt.
func (r *MemoryTagsRepository) UpdateTag(ctx context.Context, tag *domain.Tag) error {
	if tag == nil || tag.TagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if !tag.TagType.Valid() {
		return fmt.Errorf("invalid tag type %q", tag.TagType)
	}
	if !tag.Status.Valid() {
		return fmt.Errorf("invalid tag status %q", tag.Status)
	}
	if tag.UpdatedBy == "" {
		tag.UpdatedBy = "system"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tag.TagID]
	if !ok {
		return ErrTagNotFound
	}
	for _, other := range r.tags {
		if other.tag.TagID != tag.TagID &&
			other.tag.TagNumber == tag.TagNumber && other.tag.TagType == tag.TagType {
			return ErrDuplicateTagNumber
		}
	}

	now := time.Now().UTC()
	tag.UpdatedAt = &now

	stored := *tag
	stored.Contents = domain.TagContents{}
	stored.CreatedAt = rec.tag.CreatedAt
	stored.CreatedBy = rec.tag.CreatedBy
	rec.tag = stored
	return nil
}

// DeleteTag removes the tag and its placement rows. Nested children become
// roots.
func (r *MemoryTagsRepository) DeleteTag(ctx context.Context, tagID string) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return false, nil
	}

	for _, childID := range rec.children {
		if child, ok := r.tags[childID]; ok {
			child.parent = ""
		}
	}
	if rec.parent != "" {
		if parent, ok := r.tags[rec.parent]; ok {
			parent.children = removeString(parent.children, tagID)
		}
	}
	delete(r.tags, tagID)
	return true, nil
}

func removeString(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// GetTagsByType returns every tag of one type ordered by number.
func (r *MemoryTagsRepository) GetTagsByType(ctx context.Context, tagType domain.TagType) ([]*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *tagRecord) bool {
		return rec.tag.TagType == tagType
	}, func(a, b *tagRecord) bool { return a.tag.TagNumber < b.tag.TagNumber }), nil
}

// GetTagsByLocation returns every tag currently at one location.
func (r *MemoryTagsRepository) GetTagsByLocation(ctx context.Context, locationKeyID int64) ([]*domain.Tag, error) {
	if locationKeyID <= 0 {
		return nil, fmt.Errorf("location_key_id is required")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *tagRecord) bool {
		return rec.tag.LocationKeyID == locationKeyID
	}, bySeq), nil
}

// GetAutoTags returns every system-reserved tag.
func (r *MemoryTagsRepository) GetAutoTags(ctx context.Context) ([]*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *tagRecord) bool {
		return rec.tag.IsAuto
	}, byTypeAndNumber), nil
}

// GetTagsContainingUnit is the reverse placement lookup for one unit.
func (r *MemoryTagsRepository) GetTagsContainingUnit(ctx context.Context, unitID int64) ([]*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *tagRecord) bool {
		for _, p := range rec.units {
			if p.unitID == unitID {
				return true
			}
		}
		return false
	}, bySeq), nil
}

// GetTagsContainingItem is the reverse placement lookup for one item key
// pair.
func (r *MemoryTagsRepository) GetTagsContainingItem(ctx context.Context, itemKeyID, serialKeyID int64) ([]*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *tagRecord) bool {
		for _, p := range rec.items {
			if p.item.ItemKeyID == itemKeyID && p.item.SerialKeyID == serialKeyID {
				return true
			}
		}
		return false
	}, bySeq), nil
}

// IsUnitInAnyTag reports whether any placement exists for the unit.
func (r *MemoryTagsRepository) IsUnitInAnyTag(ctx context.Context, unitID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.tags {
		for _, p := range rec.units {
			if p.unitID == unitID {
				return true, nil
			}
		}
	}
	return false, nil
}

// IsItemInAnyTag reports whether any placement exists for the item pair.
func (r *MemoryTagsRepository) IsItemInAnyTag(ctx context.Context, itemKeyID, serialKeyID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.tags {
		for _, p := range rec.items {
			if p.item.ItemKeyID == itemKeyID && p.item.SerialKeyID == serialKeyID {
				return true, nil
			}
		}
	}
	return false, nil
}

// GetTagContentCount sums unit, item, nested-tag and indicator placements.
func (r *MemoryTagsRepository) GetTagContentCount(ctx context.Context, tagID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return 0, ErrTagNotFound
	}
	return len(rec.units) + len(rec.items) + len(rec.children) + len(rec.indicators), nil
}

// IsTagEmpty reports whether the tag has zero content placements.
func (r *MemoryTagsRepository) IsTagEmpty(ctx context.Context, tagID string) (bool, error) {
	count, err := r.GetTagContentCount(ctx, tagID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// GetChildTags returns the direct children in placement order.
func (r *MemoryTagsRepository) GetChildTags(ctx context.Context, parentID string) ([]*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tags[parentID]
	if !ok {
		return []*domain.Tag{}, nil
	}
	children := make([]*domain.Tag, 0, len(rec.children))
	for _, childID := range rec.children {
		if child, ok := r.tags[childID]; ok {
			children = append(children, r.build(child))
		}
	}
	return children, nil
}

// GetParentTag returns the containing tag, or (nil, nil) for a root.
func (r *MemoryTagsRepository) GetParentTag(ctx context.Context, childID string) (*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tags[childID]
	if !ok || rec.parent == "" {
		return nil, nil
	}
	parent, ok := r.tags[rec.parent]
	if !ok {
		return nil, nil
	}
	return r.build(parent), nil
}

// GetRootTags returns every tag not nested inside another tag.
func (r *MemoryTagsRepository) GetRootTags(ctx context.Context) ([]*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *tagRecord) bool {
		return rec.parent == ""
	}, bySeq), nil
}

// GetRootTagID walks parent links upward to the containing root.
func (r *MemoryTagsRepository) GetRootTagID(ctx context.Context, tagID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return "", ErrTagNotFound
	}

	visited := map[string]bool{rec.tag.TagID: true}
	for rec.parent != "" {
		parent, ok := r.tags[rec.parent]
		if !ok {
			break
		}
		if visited[parent.tag.TagID] {
			return "", fmt.Errorf("tag %s: %w", parent.tag.TagID, ErrCycleDetected)
		}
		visited[parent.tag.TagID] = true
		rec = parent
	}
	return rec.tag.TagID, nil
}

// AddUnitToTag places a unit, evicting every existing placement first unless
// markAsSplit is set.
func (r *MemoryTagsRepository) AddUnitToTag(ctx context.Context, tagID string, unitID int64, at time.Time, locationKeyID int64, markAsSplit bool) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if unitID <= 0 {
		return fmt.Errorf("unit_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return ErrTagNotFound
	}

	if !markAsSplit {
		for _, other := range r.tags {
			kept := other.units[:0]
			for _, p := range other.units {
				if p.unitID != unitID {
					kept = append(kept, p)
				}
			}
			other.units = kept
		}
	}

	rec.units = append(rec.units, unitPlacement{
		unitID:        unitID,
		isSplit:       markAsSplit,
		placedAt:      placementTime(at),
		locationKeyID: locationKeyID,
	})
	return nil
}

// RemoveUnitFromTag removes the oldest (tag, unit) placement.
func (r *MemoryTagsRepository) RemoveUnitFromTag(ctx context.Context, tagID string, unitID int64, at time.Time, locationKeyID int64) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return false, nil
	}
	for i, p := range rec.units {
		if p.unitID == unitID {
			rec.units = append(rec.units[:i], rec.units[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// AddItemToTag places an item line, evicting placements with the same
// (item, serial, lot) key first unless markAsSplit is set.
func (r *MemoryTagsRepository) AddItemToTag(ctx context.Context, tagID string, item domain.TagItem, at time.Time, locationKeyID int64, markAsSplit bool) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if item.ItemKeyID <= 0 {
		return fmt.Errorf("item_key_id is required")
	}
	if item.Count <= 0 {
		item.Count = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return ErrTagNotFound
	}

	if !markAsSplit {
		key := item.Key()
		for _, other := range r.tags {
			kept := other.items[:0]
			for _, p := range other.items {
				if p.item.Key() != key {
					kept = append(kept, p)
				}
			}
			other.items = kept
		}
	}

	rec.items = append(rec.items, itemPlacement{
		item:          item,
		isSplit:       markAsSplit,
		placedAt:      placementTime(at),
		locationKeyID: locationKeyID,
	})
	return nil
}

// RemoveItemFromTag removes the oldest placement matching the exact
// (item, serial, lot) key.
func (r *MemoryTagsRepository) RemoveItemFromTag(ctx context.Context, tagID string, itemKeyID, serialKeyID, lotInfoKeyID int64, at time.Time, locationKeyID int64) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return false, nil
	}
	key := domain.TagItemKey{ItemKeyID: itemKeyID, SerialKeyID: serialKeyID, LotInfoKeyID: lotInfoKeyID}
	for i, p := range rec.items {
		if p.item.Key() == key {
			rec.items = append(rec.items[:i], rec.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// AddTagToTag nests childID under parentID, re-parenting and rejecting
// containment loops.
func (r *MemoryTagsRepository) AddTagToTag(ctx context.Context, parentID, childID string, at time.Time, locationKeyID int64) error {
	if parentID == "" || childID == "" {
		return fmt.Errorf("parent_tag_id and child_tag_id are required")
	}
	if parentID == childID {
		return ErrCycleDetected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.tags[parentID]
	if !ok {
		return ErrTagNotFound
	}
	child, ok := r.tags[childID]
	if !ok {
		return ErrTagNotFound
	}

	// Reject when the child already sits above the parent.
	for ancestor := parent; ancestor.parent != ""; {
		if ancestor.parent == childID {
			return ErrCycleDetected
		}
		next, ok := r.tags[ancestor.parent]
		if !ok {
			break
		}
		ancestor = next
	}

	if child.parent != "" {
		if previous, ok := r.tags[child.parent]; ok {
			previous.children = removeString(previous.children, childID)
		}
	}
	child.parent = parentID
	parent.children = append(parent.children, childID)
	return nil
}

// RemoveTagFromTag detaches childID from parentID.
func (r *MemoryTagsRepository) RemoveTagFromTag(ctx context.Context, parentID, childID string, at time.Time, locationKeyID int64) (bool, error) {
	if parentID == "" || childID == "" {
		return false, fmt.Errorf("parent_tag_id and child_tag_id are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	child, ok := r.tags[childID]
	if !ok || child.parent != parentID {
		return false, nil
	}
	if parent, ok := r.tags[parentID]; ok {
		parent.children = removeString(parent.children, childID)
	}
	child.parent = ""
	return true, nil
}

// AddIndicatorToTag places an indicator, evicting any previous placement.
func (r *MemoryTagsRepository) AddIndicatorToTag(ctx context.Context, tagID string, indicatorID int64, at time.Time, locationKeyID int64) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if indicatorID <= 0 {
		return fmt.Errorf("indicator_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return ErrTagNotFound
	}

	for _, other := range r.tags {
		kept := other.indicators[:0]
		for _, p := range other.indicators {
			if p.indicatorID != indicatorID {
				kept = append(kept, p)
			}
		}
		other.indicators = kept
	}

	rec.indicators = append(rec.indicators, indicatorPlacement{
		indicatorID:   indicatorID,
		placedAt:      placementTime(at),
		locationKeyID: locationKeyID,
	})
	return nil
}

// RemoveIndicatorFromTag removes the (tag, indicator) placement.
func (r *MemoryTagsRepository) RemoveIndicatorFromTag(ctx context.Context, tagID string, indicatorID int64, at time.Time, locationKeyID int64) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return false, nil
	}
	for i, p := range rec.indicators {
		if p.indicatorID == indicatorID {
			rec.indicators = append(rec.indicators[:i], rec.indicators[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// DissolveTag removes every content placement. Nested children become roots.
func (r *MemoryTagsRepository) DissolveTag(ctx context.Context, tagID string, at time.Time, locationKeyID int64) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return ErrTagNotFound
	}

	for _, childID := range rec.children {
		if child, ok := r.tags[childID]; ok {
			child.parent = ""
		}
	}
	rec.units = nil
	rec.items = nil
	rec.indicators = nil
	rec.children = nil
	return nil
}

// ClearTagContents empties the tag. Same contract as DissolveTag.
func (r *MemoryTagsRepository) ClearTagContents(ctx context.Context, tagID string, at time.Time, locationKeyID int64) error {
	return r.DissolveTag(ctx, tagID, at, locationKeyID)
}

// MoveTagContentToTransportTag re-parents every content placement from
// source to transport atomically.
func (r *MemoryTagsRepository) MoveTagContentToTransportTag(ctx context.Context, sourceTagID, transportTagID string, at time.Time, locationKeyID int64) error {
	if sourceTagID == "" || transportTagID == "" {
		return fmt.Errorf("source_tag_id and transport_tag_id are required")
	}
	if sourceTagID == transportTagID {
		return fmt.Errorf("source and transport tags must differ")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.tags[sourceTagID]
	if !ok {
		return ErrTagNotFound
	}
	transport, ok := r.tags[transportTagID]
	if !ok {
		return ErrTagNotFound
	}

	// Reject when the transport tag sits inside the source.
	queue := append([]string{}, source.children...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == transportTagID {
			return ErrCycleDetected
		}
		if rec, ok := r.tags[id]; ok {
			queue = append(queue, rec.children...)
		}
	}

	movedAt := placementTime(at)
	for _, p := range source.units {
		p.placedAt = movedAt
		p.locationKeyID = locationKeyID
		transport.units = append(transport.units, p)
	}
	for _, p := range source.items {
		p.placedAt = movedAt
		p.locationKeyID = locationKeyID
		transport.items = append(transport.items, p)
	}
	for _, p := range source.indicators {
		p.placedAt = movedAt
		p.locationKeyID = locationKeyID
		transport.indicators = append(transport.indicators, p)
	}
	for _, childID := range source.children {
		if child, ok := r.tags[childID]; ok {
			child.parent = transportTagID
		}
		transport.children = append(transport.children, childID)
	}

	source.units = nil
	source.items = nil
	source.indicators = nil
	source.children = nil
	return nil
}

// UpdateTagLocation stamps the tag's current location.
func (r *MemoryTagsRepository) UpdateTagLocation(ctx context.Context, tagID string, locationKeyID int64, at time.Time) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if locationKeyID <= 0 {
		return fmt.Errorf("location_key_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return ErrTagNotFound
	}
	rec.tag.LocationKeyID = locationKeyID
	rec.tag.LocationTime = placementTime(at)
	return nil
}

// ReserveAutoTag creates a reserved auto tag numbered one past the current
// maximum for the type.
func (r *MemoryTagsRepository) ReserveAutoTag(ctx context.Context, tagType domain.TagType, locationKeyID int64) (*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}

	tag := domain.NewTag(tagType, 0, "system")
	tag.IsAuto = true
	tag.HasAutoReservation = true
	if locationKeyID > 0 {
		tag.LocationKeyID = locationKeyID
		tag.LocationTime = time.Now().UTC()
	}
	return r.CreateTag(ctx, tag)
}

// ReleaseAutoTagReservation clears the reservation flag.
func (r *MemoryTagsRepository) ReleaseAutoTagReservation(ctx context.Context, tagID string) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tags[tagID]
	if !ok || !rec.tag.HasAutoReservation {
		return false, nil
	}
	rec.tag.HasAutoReservation = false
	return true, nil
}

// GetReservedAutoTags returns every auto tag still holding its reservation.
func (r *MemoryTagsRepository) GetReservedAutoTags(ctx context.Context) ([]*domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(rec *tagRecord) bool {
		return rec.tag.IsAuto && rec.tag.HasAutoReservation
	}, byTypeAndNumber), nil
}

// GetEmptyAutoTag returns the lowest-numbered content-free auto tag for the
// type and location, or (nil, nil) when none is free.
func (r *MemoryTagsRepository) GetEmptyAutoTag(ctx context.Context, tagType domain.TagType, locationKeyID int64) (*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *tagRecord
	for _, rec := range r.tags {
		if !rec.tag.IsAuto || rec.tag.TagType != tagType {
			continue
		}
		if rec.tag.LocationKeyID != locationKeyID {
			continue
		}
		if len(rec.units)+len(rec.items)+len(rec.children)+len(rec.indicators) > 0 {
			continue
		}
		if found == nil || rec.tag.TagNumber < found.tag.TagNumber {
			found = rec
		}
	}
	if found == nil {
		return nil, nil
	}
	return r.build(found), nil
}

// GetLinkedSplitTags returns the other tags sharing a split-flagged unit
// with tagID.
func (r *MemoryTagsRepository) GetLinkedSplitTags(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	if tagID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tags[tagID]
	if !ok {
		return []*domain.Tag{}, nil
	}

	splitUnits := map[int64]bool{}
	for _, p := range rec.units {
		if p.isSplit {
			splitUnits[p.unitID] = true
		}
	}
	if len(splitUnits) == 0 {
		return []*domain.Tag{}, nil
	}

	return r.collect(func(other *tagRecord) bool {
		if other.tag.TagID == tagID {
			return false
		}
		for _, p := range other.units {
			if p.isSplit && splitUnits[p.unitID] {
				return true
			}
		}
		return false
	}, bySeq), nil
}

// GetSplitTagsForUnitSerialNumber needs the units catalog to resolve serial
// numbers; the in-memory store does not carry one.
func (r *MemoryTagsRepository) GetSplitTagsForUnitSerialNumber(ctx context.Context, serialNumber string) ([]*domain.Tag, error) {
	return nil, ErrUnsupported
}
