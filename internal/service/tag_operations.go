package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/events"
)

func effectiveTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at
}

// AddUnitRequest places a unit onto a tag. MarkAsSplit keeps the unit's
// other placements alive.
type AddUnitRequest struct {
	TagID         string
	UnitID        int64
	LocationKeyID int64
	At            time.Time
	MarkAsSplit   bool
	Actor         string
}

// AddUnitToTag places a unit, relocating it from wherever it currently sits
// unless the placement is marked as split.
func (s *TagService) AddUnitToTag(ctx context.Context, req AddUnitRequest) error {
	if req.TagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if req.UnitID <= 0 {
		return fmt.Errorf("unit_id is required")
	}

	at := effectiveTime(req.At)
	if err := s.tags.AddUnitToTag(ctx, req.TagID, req.UnitID, at, req.LocationKeyID, req.MarkAsSplit); err != nil {
		return err
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementUnitAdded,
		TagID:         req.TagID,
		UnitID:        req.UnitID,
		LocationKeyID: req.LocationKeyID,
		Actor:         req.Actor,
		OccurredAt:    at,
	})
	return nil
}

// RemoveUnitRequest takes one unit placement off a tag.
type RemoveUnitRequest struct {
	TagID         string
	UnitID        int64
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// RemoveUnitFromTag removes one placement of the unit. Returns false when
// the unit was not on the tag.
func (s *TagService) RemoveUnitFromTag(ctx context.Context, req RemoveUnitRequest) (bool, error) {
	if req.TagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}
	if req.UnitID <= 0 {
		return false, fmt.Errorf("unit_id is required")
	}

	at := effectiveTime(req.At)
	removed, err := s.tags.RemoveUnitFromTag(ctx, req.TagID, req.UnitID, at, req.LocationKeyID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, events.MovementEvent{
			Type:          events.MovementUnitRemoved,
			TagID:         req.TagID,
			UnitID:        req.UnitID,
			LocationKeyID: req.LocationKeyID,
			Actor:         req.Actor,
			OccurredAt:    at,
		})
	}
	return removed, nil
}

// AddItemRequest places an item line onto a tag.
type AddItemRequest struct {
	TagID         string
	ItemKeyID     int64
	SerialKeyID   int64
	LotInfoKeyID  int64
	Count         int
	LocationKeyID int64
	At            time.Time
	MarkAsSplit   bool
	Actor         string
}

// AddItemToTag places an item line keyed by (item, serial, lot).
func (s *TagService) AddItemToTag(ctx context.Context, req AddItemRequest) error {
	if req.TagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if req.ItemKeyID <= 0 {
		return fmt.Errorf("item_key_id is required")
	}

	item := domain.TagItem{
		ItemKeyID:    req.ItemKeyID,
		SerialKeyID:  req.SerialKeyID,
		LotInfoKeyID: req.LotInfoKeyID,
		Count:        req.Count,
	}
	at := effectiveTime(req.At)
	if err := s.tags.AddItemToTag(ctx, req.TagID, item, at, req.LocationKeyID, req.MarkAsSplit); err != nil {
		return err
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementItemAdded,
		TagID:         req.TagID,
		ItemKeyID:     req.ItemKeyID,
		SerialKeyID:   req.SerialKeyID,
		LotInfoKeyID:  req.LotInfoKeyID,
		LocationKeyID: req.LocationKeyID,
		Actor:         req.Actor,
		OccurredAt:    at,
	})
	return nil
}

// RemoveItemRequest takes one item placement off a tag. The full
// (item, serial, lot) key must match.
type RemoveItemRequest struct {
	TagID         string
	ItemKeyID     int64
	SerialKeyID   int64
	LotInfoKeyID  int64
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// RemoveItemFromTag removes one placement matching the exact item key.
func (s *TagService) RemoveItemFromTag(ctx context.Context, req RemoveItemRequest) (bool, error) {
	if req.TagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}
	if req.ItemKeyID <= 0 {
		return false, fmt.Errorf("item_key_id is required")
	}

	at := effectiveTime(req.At)
	removed, err := s.tags.RemoveItemFromTag(ctx, req.TagID, req.ItemKeyID, req.SerialKeyID, req.LotInfoKeyID, at, req.LocationKeyID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, events.MovementEvent{
			Type:          events.MovementItemRemoved,
			TagID:         req.TagID,
			ItemKeyID:     req.ItemKeyID,
			SerialKeyID:   req.SerialKeyID,
			LotInfoKeyID:  req.LotInfoKeyID,
			LocationKeyID: req.LocationKeyID,
			Actor:         req.Actor,
			OccurredAt:    at,
		})
	}
	return removed, nil
}

// NestTagRequest nests one tag inside another.
type NestTagRequest struct {
	ParentTagID   string
	ChildTagID    string
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// AddTagToTag nests the child under the parent, re-parenting as needed.
// Nesting that would close a containment loop fails with ErrCycleDetected.
func (s *TagService) AddTagToTag(ctx context.Context, req NestTagRequest) error {
	if req.ParentTagID == "" || req.ChildTagID == "" {
		return fmt.Errorf("parent_tag_id and child_tag_id are required")
	}

	at := effectiveTime(req.At)
	if err := s.tags.AddTagToTag(ctx, req.ParentTagID, req.ChildTagID, at, req.LocationKeyID); err != nil {
		return err
	}

	s.publish(ctx, events.MovementEvent{
		Type:             events.MovementTagNested,
		TagID:            req.ChildTagID,
		CounterpartTagID: req.ParentTagID,
		LocationKeyID:    req.LocationKeyID,
		Actor:            req.Actor,
		OccurredAt:       at,
	})
	return nil
}

// RemoveTagFromTag detaches the child from the parent.
func (s *TagService) RemoveTagFromTag(ctx context.Context, req NestTagRequest) (bool, error) {
	if req.ParentTagID == "" || req.ChildTagID == "" {
		return false, fmt.Errorf("parent_tag_id and child_tag_id are required")
	}

	at := effectiveTime(req.At)
	removed, err := s.tags.RemoveTagFromTag(ctx, req.ParentTagID, req.ChildTagID, at, req.LocationKeyID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, events.MovementEvent{
			Type:             events.MovementTagDetached,
			TagID:            req.ChildTagID,
			CounterpartTagID: req.ParentTagID,
			LocationKeyID:    req.LocationKeyID,
			Actor:            req.Actor,
			OccurredAt:       at,
		})
	}
	return removed, nil
}

// IndicatorRequest places or removes a sterilization indicator.
type IndicatorRequest struct {
	TagID         string
	IndicatorID   int64
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// AddIndicatorToTag places an indicator, relocating it from any previous
// tag.
func (s *TagService) AddIndicatorToTag(ctx context.Context, req IndicatorRequest) error {
	if req.TagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if req.IndicatorID <= 0 {
		return fmt.Errorf("indicator_id is required")
	}

	at := effectiveTime(req.At)
	if err := s.tags.AddIndicatorToTag(ctx, req.TagID, req.IndicatorID, at, req.LocationKeyID); err != nil {
		return err
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementIndicatorAdded,
		TagID:         req.TagID,
		IndicatorID:   req.IndicatorID,
		LocationKeyID: req.LocationKeyID,
		Actor:         req.Actor,
		OccurredAt:    at,
	})
	return nil
}

// RemoveIndicatorFromTag removes the indicator placement.
func (s *TagService) RemoveIndicatorFromTag(ctx context.Context, req IndicatorRequest) (bool, error) {
	if req.TagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}
	if req.IndicatorID <= 0 {
		return false, fmt.Errorf("indicator_id is required")
	}

	at := effectiveTime(req.At)
	removed, err := s.tags.RemoveIndicatorFromTag(ctx, req.TagID, req.IndicatorID, at, req.LocationKeyID)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(ctx, events.MovementEvent{
			Type:          events.MovementIndicatorRemoved,
			TagID:         req.TagID,
			IndicatorID:   req.IndicatorID,
			LocationKeyID: req.LocationKeyID,
			Actor:         req.Actor,
			OccurredAt:    at,
		})
	}
	return removed, nil
}

// ClearContentsRequest empties a tag in one step.
type ClearContentsRequest struct {
	TagID         string
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// DissolveTag removes every content placement from the tag. The tag itself
// survives.
func (s *TagService) DissolveTag(ctx context.Context, req ClearContentsRequest) error {
	if req.TagID == "" {
		return fmt.Errorf("tag_id is required")
	}

	at := effectiveTime(req.At)
	if err := s.tags.DissolveTag(ctx, req.TagID, at, req.LocationKeyID); err != nil {
		return err
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementContentsCleared,
		TagID:         req.TagID,
		LocationKeyID: req.LocationKeyID,
		Actor:         req.Actor,
		OccurredAt:    at,
	})
	s.logger.Info("tag dissolved", zap.String("tag_id", req.TagID))
	return nil
}

// ClearTagContents empties the tag. Same contract as DissolveTag.
func (s *TagService) ClearTagContents(ctx context.Context, req ClearContentsRequest) error {
	return s.DissolveTag(ctx, req)
}

// MoveContentsRequest moves everything from one tag into a transport tag.
type MoveContentsRequest struct {
	SourceTagID    string
	TransportTagID string
	LocationKeyID  int64
	At             time.Time
	Actor          string
}

// MoveTagContentToTransportTag moves every content placement from the
// source tag into the transport tag atomically.
func (s *TagService) MoveTagContentToTransportTag(ctx context.Context, req MoveContentsRequest) error {
	if req.SourceTagID == "" || req.TransportTagID == "" {
		return fmt.Errorf("source_tag_id and transport_tag_id are required")
	}

	at := effectiveTime(req.At)
	if err := s.tags.MoveTagContentToTransportTag(ctx, req.SourceTagID, req.TransportTagID, at, req.LocationKeyID); err != nil {
		return err
	}

	s.publish(ctx, events.MovementEvent{
		Type:             events.MovementContentsMoved,
		TagID:            req.SourceTagID,
		CounterpartTagID: req.TransportTagID,
		LocationKeyID:    req.LocationKeyID,
		Actor:            req.Actor,
		OccurredAt:       at,
	})
	s.logger.Info("tag contents moved",
		zap.String("source_tag_id", req.SourceTagID),
		zap.String("transport_tag_id", req.TransportTagID))
	return nil
}

// ReserveAutoTagRequest reserves a system-numbered tag.
type ReserveAutoTagRequest struct {
	TagType       domain.TagType
	LocationKeyID int64
	Actor         string
}

// ReserveAutoTag creates a reserved auto tag with the next free number for
// the type.
func (s *TagService) ReserveAutoTag(ctx context.Context, req ReserveAutoTagRequest) (*domain.Tag, error) {
	if !req.TagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", req.TagType)
	}

	tag, err := s.tags.ReserveAutoTag(ctx, req.TagType, req.LocationKeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve auto tag: %w", err)
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementReservationMade,
		TagID:         tag.TagID,
		LocationKeyID: req.LocationKeyID,
		Actor:         req.Actor,
	})
	s.logger.Info("auto tag reserved",
		zap.String("tag_id", tag.TagID),
		zap.String("tag_type", string(tag.TagType)),
		zap.Int("tag_number", tag.TagNumber))
	return tag, nil
}

// ReleaseAutoTagReservation clears one reservation. Returns false when the
// tag held none.
func (s *TagService) ReleaseAutoTagReservation(ctx context.Context, tagID, actor string) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	released, err := s.tags.ReleaseAutoTagReservation(ctx, tagID)
	if err != nil {
		return false, fmt.Errorf("failed to release auto tag reservation: %w", err)
	}
	if released {
		s.publish(ctx, events.MovementEvent{
			Type:  events.MovementReservationFreed,
			TagID: tagID,
			Actor: actor,
		})
	}
	return released, nil
}

// GetReservedAutoTags returns every auto tag still holding a reservation.
func (s *TagService) GetReservedAutoTags(ctx context.Context) ([]*domain.Tag, error) {
	return s.tags.GetReservedAutoTags(ctx)
}

// GetEmptyAutoTag returns the first content-free auto tag for the type and
// location, or nil when none is free.
func (s *TagService) GetEmptyAutoTag(ctx context.Context, tagType domain.TagType, locationKeyID int64) (*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}
	return s.tags.GetEmptyAutoTag(ctx, tagType, locationKeyID)
}

// StopAutoTagging releases every reservation of one type. Returns how many
// reservations were released.
func (s *TagService) StopAutoTagging(ctx context.Context, tagType domain.TagType, actor string) (int, error) {
	if !tagType.Valid() {
		return 0, fmt.Errorf("invalid tag type %q", tagType)
	}

	reserved, err := s.tags.GetReservedAutoTags(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list auto tag reservations: %w", err)
	}

	released := 0
	for _, tag := range reserved {
		if tag.TagType != tagType {
			continue
		}
		ok, err := s.ReleaseAutoTagReservation(ctx, tag.TagID, actor)
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	s.logger.Info("auto tagging stopped",
		zap.String("tag_type", string(tagType)),
		zap.Int("released", released))
	return released, nil
}

// StopAllAutoTagging releases every reservation regardless of type.
func (s *TagService) StopAllAutoTagging(ctx context.Context, actor string) (int, error) {
	reserved, err := s.tags.GetReservedAutoTags(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list auto tag reservations: %w", err)
	}

	released := 0
	for _, tag := range reserved {
		ok, err := s.ReleaseAutoTagReservation(ctx, tag.TagID, actor)
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	return released, nil
}

// MoveUnitToTransportBoxRequest routes a unit into a transport box. An empty
// BoxTagID lets the service pick (or reserve) a box at the location.
type MoveUnitToTransportBoxRequest struct {
	UnitID        int64
	BoxTagID      string
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// MoveUnitToTransportBox puts the unit into the requested transport box, or
// into the first empty auto transport box at the location, reserving a fresh
// one when none is free. When the unit currently sits in exactly one tag,
// that whole tag's content moves into the box; an unplaced or split unit is
// added alone. Returns the box the unit ended up in.
func (s *TagService) MoveUnitToTransportBox(ctx context.Context, req MoveUnitToTransportBoxRequest) (*domain.Tag, error) {
	if req.UnitID <= 0 {
		return nil, fmt.Errorf("unit_id is required")
	}

	var box *domain.Tag
	var err error
	if req.BoxTagID != "" {
		box, err = s.tags.GetTag(ctx, req.BoxTagID)
		if err != nil {
			return nil, err
		}
		if box.TagType != domain.TagTypeTransportBox {
			return nil, fmt.Errorf("tag %s is a %s: %w", box.TagID, box.TagType, ErrNotTransportBox)
		}
	} else {
		box, err = s.tags.GetEmptyAutoTag(ctx, domain.TagTypeTransportBox, req.LocationKeyID)
		if err != nil {
			return nil, fmt.Errorf("failed to find transport box: %w", err)
		}
	}
	if box == nil {
		box, err = s.ReserveAutoTag(ctx, ReserveAutoTagRequest{
			TagType:       domain.TagTypeTransportBox,
			LocationKeyID: req.LocationKeyID,
			Actor:         req.Actor,
		})
		if err != nil {
			return nil, err
		}
	}

	holders, err := s.tags.GetTagsContainingUnit(ctx, req.UnitID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve unit placements: %w", err)
	}

	if len(holders) == 1 && holders[0].TagID != box.TagID {
		err = s.MoveTagContentToTransportTag(ctx, MoveContentsRequest{
			SourceTagID:    holders[0].TagID,
			TransportTagID: box.TagID,
			LocationKeyID:  req.LocationKeyID,
			At:             req.At,
			Actor:          req.Actor,
		})
	} else {
		err = s.AddUnitToTag(ctx, AddUnitRequest{
			TagID:         box.TagID,
			UnitID:        req.UnitID,
			LocationKeyID: req.LocationKeyID,
			At:            req.At,
			Actor:         req.Actor,
		})
	}
	if err != nil {
		return nil, err
	}

	return s.tags.GetTag(ctx, box.TagID)
}

// TagScanRequest records a station scan of a tag label.
type TagScanRequest struct {
	TagNumber     int
	TagType       domain.TagType
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// RecordTagScan resolves the scanned label and stamps the tag's location.
func (s *TagService) RecordTagScan(ctx context.Context, req TagScanRequest) (*domain.Tag, error) {
	if req.TagNumber <= 0 {
		return nil, fmt.Errorf("tag_number is required")
	}
	if !req.TagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", req.TagType)
	}
	if req.LocationKeyID <= 0 {
		return nil, fmt.Errorf("location_key_id is required")
	}

	tag, err := s.tags.GetTagByNumberAndType(ctx, req.TagNumber, req.TagType)
	if err != nil {
		return nil, err
	}

	at := effectiveTime(req.At)
	if err := s.tags.UpdateTagLocation(ctx, tag.TagID, req.LocationKeyID, at); err != nil {
		return nil, fmt.Errorf("failed to record tag scan: %w", err)
	}
	tag.LocationKeyID = req.LocationKeyID
	tag.LocationTime = at

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementTagScanned,
		TagID:         tag.TagID,
		LocationKeyID: req.LocationKeyID,
		Actor:         req.Actor,
		OccurredAt:    at,
	})
	return tag, nil
}

// UnitScanRequest records a station scan of a unit. Either UnitID or
// SerialNumber identifies the unit.
type UnitScanRequest struct {
	UnitID        int64
	SerialNumber  string
	LocationKeyID int64
	At            time.Time
	Actor         string
}

// RecordUnitScan resolves the scanned unit and stamps the location of every
// tag currently holding it. Returns those tags.
func (s *TagService) RecordUnitScan(ctx context.Context, req UnitScanRequest) ([]*domain.Tag, error) {
	if req.UnitID <= 0 && req.SerialNumber == "" {
		return nil, fmt.Errorf("unit_id or serial_number is required")
	}
	if req.LocationKeyID <= 0 {
		return nil, fmt.Errorf("location_key_id is required")
	}

	unitID := req.UnitID
	if unitID <= 0 {
		unit, err := s.units.GetUnitBySerialNumber(ctx, req.SerialNumber)
		if err != nil {
			return nil, err
		}
		unitID = unit.UnitID
	}

	holders, err := s.tags.GetTagsContainingUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve unit placements: %w", err)
	}

	at := effectiveTime(req.At)
	for _, tag := range holders {
		if err := s.tags.UpdateTagLocation(ctx, tag.TagID, req.LocationKeyID, at); err != nil {
			return nil, fmt.Errorf("failed to record unit scan: %w", err)
		}
		tag.LocationKeyID = req.LocationKeyID
		tag.LocationTime = at
	}

	s.publish(ctx, events.MovementEvent{
		Type:          events.MovementUnitScanned,
		UnitID:        unitID,
		LocationKeyID: req.LocationKeyID,
		Actor:         req.Actor,
		OccurredAt:    at,
	})
	return holders, nil
}

// UpdateTagLocation stamps the tag's current location.
func (s *TagService) UpdateTagLocation(ctx context.Context, tagID string, locationKeyID int64, at time.Time) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if locationKeyID <= 0 {
		return fmt.Errorf("location_key_id is required")
	}
	return s.tags.UpdateTagLocation(ctx, tagID, locationKeyID, effectiveTime(at))
}
