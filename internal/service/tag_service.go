package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/events"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/repository"
)

// TagService carries the tag composition rules on top of the repository and
// publishes movement events for every mutation. Event publishing is
// best-effort: a failed publish is logged, never surfaced to the caller.
type TagService struct {
	tags      repository.TagsRepository
	units     repository.UnitsRepository
	publisher events.Publisher
	logger    *zap.Logger
}

// NewTagService creates the tag service.
func NewTagService(tags repository.TagsRepository, units repository.UnitsRepository, publisher events.Publisher, logger *zap.Logger) *TagService {
	return &TagService{
		tags:      tags,
		units:     units,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *TagService) publish(ctx context.Context, event events.MovementEvent) {
	if err := s.publisher.PublishMovement(ctx, event); err != nil {
		s.logger.Warn("failed to publish movement event",
			zap.String("type", string(event.Type)),
			zap.String("tag_id", event.TagID),
			zap.Error(err))
	}
}

// CreateTagRequest carries the fields a caller may set on a new tag. A
// TagNumber of 0 lets the repository assign the next free number.
type CreateTagRequest struct {
	TagType       domain.TagType
	TagNumber     int
	IsAuto        bool
	LocationKeyID int64
	CreatedBy     string
}

// CreateTag registers a new tag.
func (s *TagService) CreateTag(ctx context.Context, req CreateTagRequest) (*domain.Tag, error) {
	if !req.TagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", req.TagType)
	}

	tag := domain.NewTag(req.TagType, req.TagNumber, req.CreatedBy)
	tag.IsAuto = req.IsAuto
	if req.LocationKeyID > 0 {
		tag.LocationKeyID = req.LocationKeyID
		tag.LocationTime = time.Now().UTC()
	}

	created, err := s.tags.CreateTag(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementTagCreated,
		TagID:         created.TagID,
		LocationKeyID: created.LocationKeyID,
		Actor:         created.CreatedBy,
	})
	s.logger.Info("tag created",
		zap.String("tag_id", created.TagID),
		zap.String("tag_type", string(created.TagType)),
		zap.Int("tag_number", created.TagNumber))
	return created, nil
}

// GetTag returns one tag with contents.
func (s *TagService) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	if tagID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}
	return s.tags.GetTag(ctx, tagID)
}

// GetTagByNumberAndType returns the tag carrying a type-scoped number.
func (s *TagService) GetTagByNumberAndType(ctx context.Context, tagNumber int, tagType domain.TagType) (*domain.Tag, error) {
	if tagNumber <= 0 {
		return nil, fmt.Errorf("tag_number is required")
	}
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}
	return s.tags.GetTagByNumberAndType(ctx, tagNumber, tagType)
}

// ListTagsRequest narrows and pages the tag listing.
type ListTagsRequest struct {
	TagType       domain.TagType
	LocationKeyID int64
	Status        domain.TagStatus
	AutoOnly      bool
	Page          int
	Size          int
}

// ListTagsResponse is one page of tags.
type ListTagsResponse struct {
	Items []*domain.Tag `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

// ListTags returns one page of tags plus the unpaged total.
func (s *TagService) ListTags(ctx context.Context, req ListTagsRequest) (*ListTagsResponse, error) {
	if req.TagType != "" && !req.TagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", req.TagType)
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("invalid tag status %q", req.Status)
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Size <= 0 {
		req.Size = 50
	}
	if req.Size > 500 {
		req.Size = 500
	}

	filter := repository.TagsFilter{
		TagType:       req.TagType,
		LocationKeyID: req.LocationKeyID,
		Status:        req.Status,
		AutoOnly:      req.AutoOnly,
	}
	items, total, err := s.tags.ListTags(ctx, filter, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	return &ListTagsResponse{
		Items: items,
		Total: total,
		Page:  req.Page,
		Size:  req.Size,
	}, nil
}

// UpdateTagRequest carries the mutable scalar fields. Zero values leave the
// stored field unchanged.
type UpdateTagRequest struct {
	TagID         string
	TagNumber     int
	TagType       domain.TagType
	Status        domain.TagStatus
	LocationKeyID int64
	UpdatedBy     string
}

// UpdateTag applies scalar mutations to a stored tag.
func (s *TagService) UpdateTag(ctx context.Context, req UpdateTagRequest) (*domain.Tag, error) {
	if req.TagID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}
	if req.TagType != "" && !req.TagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", req.TagType)
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("invalid tag status %q", req.Status)
	}

	tag, err := s.tags.GetTag(ctx, req.TagID)
	if err != nil {
		return nil, err
	}

	if req.TagNumber > 0 {
		tag.TagNumber = req.TagNumber
	}
	if req.TagType != "" {
		tag.TagType = req.TagType
	}
	if req.Status != "" {
		tag.Status = req.Status
	}
	if req.LocationKeyID > 0 {
		tag.LocationKeyID = req.LocationKeyID
		tag.LocationTime = time.Now().UTC()
	}
	tag.UpdatedBy = req.UpdatedBy

	if err := s.tags.UpdateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementTagUpdated,
		TagID:         tag.TagID,
		LocationKeyID: tag.LocationKeyID,
		Actor:         req.UpdatedBy,
	})
	return tag, nil
}

// DeleteTag removes a tag and its contents. Returns false when the tag did
// not exist.
func (s *TagService) DeleteTag(ctx context.Context, tagID, actor string) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	deleted, err := s.tags.DeleteTag(ctx, tagID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tag: %w", err)
	}
	if deleted {
		s.publish(ctx, events.MovementEvent{
			Type:  events.MovementTagDeleted,
			TagID: tagID,
			Actor: actor,
		})
		s.logger.Info("tag deleted", zap.String("tag_id", tagID))
	}
	return deleted, nil
}

// GetTagsByType returns every tag of one type.
func (s *TagService) GetTagsByType(ctx context.Context, tagType domain.TagType) ([]*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}
	return s.tags.GetTagsByType(ctx, tagType)
}

// GetTagsByLocation returns every tag currently at one location.
func (s *TagService) GetTagsByLocation(ctx context.Context, locationKeyID int64) ([]*domain.Tag, error) {
	if locationKeyID <= 0 {
		return nil, fmt.Errorf("location_key_id is required")
	}
	return s.tags.GetTagsByLocation(ctx, locationKeyID)
}

// GetAutoTags returns every system-reserved tag.
func (s *TagService) GetAutoTags(ctx context.Context) ([]*domain.Tag, error) {
	return s.tags.GetAutoTags(ctx)
}

// GetTagsContainingUnit returns the tags currently holding the unit.
func (s *TagService) GetTagsContainingUnit(ctx context.Context, unitID int64) ([]*domain.Tag, error) {
	if unitID <= 0 {
		return nil, fmt.Errorf("unit_id is required")
	}
	return s.tags.GetTagsContainingUnit(ctx, unitID)
}

// GetTagsContainingItem returns the tags currently holding the item pair.
func (s *TagService) GetTagsContainingItem(ctx context.Context, itemKeyID, serialKeyID int64) ([]*domain.Tag, error) {
	if itemKeyID <= 0 {
		return nil, fmt.Errorf("item_key_id is required")
	}
	return s.tags.GetTagsContainingItem(ctx, itemKeyID, serialKeyID)
}

// IsUnitInAnyTag reports whether the unit is placed anywhere.
func (s *TagService) IsUnitInAnyTag(ctx context.Context, unitID int64) (bool, error) {
	if unitID <= 0 {
		return false, fmt.Errorf("unit_id is required")
	}
	return s.tags.IsUnitInAnyTag(ctx, unitID)
}

// IsItemInAnyTag reports whether the item pair is placed anywhere.
func (s *TagService) IsItemInAnyTag(ctx context.Context, itemKeyID, serialKeyID int64) (bool, error) {
	if itemKeyID <= 0 {
		return false, fmt.Errorf("item_key_id is required")
	}
	return s.tags.IsItemInAnyTag(ctx, itemKeyID, serialKeyID)
}

// GetTagContentCount returns the number of direct content placements.
func (s *TagService) GetTagContentCount(ctx context.Context, tagID string) (int, error) {
	if tagID == "" {
		return 0, fmt.Errorf("tag_id is required")
	}
	return s.tags.GetTagContentCount(ctx, tagID)
}

// IsTagEmpty reports whether the tag has no contents.
func (s *TagService) IsTagEmpty(ctx context.Context, tagID string) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}
	return s.tags.IsTagEmpty(ctx, tagID)
}

// GetChildTags returns the tags nested directly under parentID.
func (s *TagService) GetChildTags(ctx context.Context, parentID string) ([]*domain.Tag, error) {
	if parentID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}
	return s.tags.GetChildTags(ctx, parentID)
}

// GetParentTag returns the containing tag, or nil for a root.
func (s *TagService) GetParentTag(ctx context.Context, childID string) (*domain.Tag, error) {
	if childID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}
	return s.tags.GetParentTag(ctx, childID)
}

// GetRootTags returns every top-level tag.
func (s *TagService) GetRootTags(ctx context.Context) ([]*domain.Tag, error) {
	return s.tags.GetRootTags(ctx)
}

// GetRootTagID resolves the root of the hierarchy containing tagID.
func (s *TagService) GetRootTagID(ctx context.Context, tagID string) (string, error) {
	if tagID == "" {
		return "", fmt.Errorf("tag_id is required")
	}
	return s.tags.GetRootTagID(ctx, tagID)
}

// GetLinkedSplitTags returns the tags sharing a split unit with tagID.
func (s *TagService) GetLinkedSplitTags(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	if tagID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}
	return s.tags.GetLinkedSplitTags(ctx, tagID)
}

// GetSplitTagsForUnitSerialNumber returns the tags holding the unit with
// this serial number through split placements.
func (s *TagService) GetSplitTagsForUnitSerialNumber(ctx context.Context, serialNumber string) ([]*domain.Tag, error) {
	if serialNumber == "" {
		return nil, fmt.Errorf("serial_number is required")
	}
	return s.tags.GetSplitTagsForUnitSerialNumber(ctx, serialNumber)
}
