package domain

import (
	"fmt"
	"time"
)

// TagType enumerates the nine reprocessing tag kinds.
type TagType string

const (
	TagTypePrepTag             TagType = "prep_tag"
	TagTypeBundle              TagType = "bundle"
	TagTypeBasket              TagType = "basket"
	TagTypeSterilizationLoad   TagType = "sterilization_load"
	TagTypeWash                TagType = "wash"
	TagTypeTransport           TagType = "transport"
	TagTypeCaseCart            TagType = "case_cart"
	TagTypeTransportBox        TagType = "transport_box"
	TagTypeInstrumentContainer TagType = "instrument_container"
)

// TagTypes lists every valid tag type.
var TagTypes = []TagType{
	TagTypePrepTag,
	TagTypeBundle,
	TagTypeBasket,
	TagTypeSterilizationLoad,
	TagTypeWash,
	TagTypeTransport,
	TagTypeCaseCart,
	TagTypeTransportBox,
	TagTypeInstrumentContainer,
}

// DisplayName returns the fixed human-readable name for the type.
func (t TagType) DisplayName() string {
	switch t {
	case TagTypePrepTag:
		return "Prep Tag"
	case TagTypeBundle:
		return "Bundle"
	case TagTypeBasket:
		return "Basket"
	case TagTypeSterilizationLoad:
		return "Sterilization Load"
	case TagTypeWash:
		return "Wash"
	case TagTypeTransport:
		return "Transport"
	case TagTypeCaseCart:
		return "Case Cart"
	case TagTypeTransportBox:
		return "Transport Box"
	case TagTypeInstrumentContainer:
		return "Instrument Container"
	}
	return string(t)
}

// Valid reports whether t is one of the nine known tag types.
func (t TagType) Valid() bool {
	switch t {
	case TagTypePrepTag, TagTypeBundle, TagTypeBasket, TagTypeSterilizationLoad,
		TagTypeWash, TagTypeTransport, TagTypeCaseCart, TagTypeTransportBox,
		TagTypeInstrumentContainer:
		return true
	}
	return false
}

// ParseTagType converts a wire value into a TagType.
func ParseTagType(s string) (TagType, error) {
	t := TagType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tag type %q", s)
	}
	return t, nil
}

// TagStatus is the tag lifecycle state.
type TagStatus string

const (
	TagStatusActive   TagStatus = "active"
	TagStatusInactive TagStatus = "inactive"
	TagStatusDead     TagStatus = "dead"
)

// Valid reports whether s is a known lifecycle status.
func (s TagStatus) Valid() bool {
	return s == TagStatusActive || s == TagStatusInactive || s == TagStatusDead
}

// Tag is the aggregate root (tags table). TagNumber is unique per TagType,
// not globally. LocationKeyID and InTagGroupKeyID use 0 for "unset" and are
// stored as NULL.
type Tag struct {
	TagID              string      `json:"tag_id" db:"tag_id"`
	TagNumber          int         `json:"tag_number" db:"tag_number"`
	TagType            TagType     `json:"tag_type" db:"tag_type"`
	IsAuto             bool        `json:"is_auto" db:"is_auto"`
	Status             TagStatus   `json:"status" db:"status"`
	LocationKeyID      int64       `json:"location_key_id" db:"location_key_id"`
	LocationTime       time.Time   `json:"location_time" db:"location_time"`
	HasAutoReservation bool        `json:"has_auto_reservation" db:"has_auto_reservation"`
	InTagGroupKeyID    int64       `json:"in_tag_group_key_id,omitempty" db:"in_tag_group_key_id"`
	Contents           TagContents `json:"contents"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	CreatedBy          string      `json:"created_by" db:"created_by"`
	UpdatedAt          *time.Time  `json:"updated_at,omitempty" db:"updated_at"`
	UpdatedBy          string      `json:"updated_by,omitempty" db:"updated_by"`
}

// NewTag creates an active tag with empty contents. Contents is a value
// field, so a constructed tag can never carry nil contents.
func NewTag(tagType TagType, tagNumber int, createdBy string) *Tag {
	return &Tag{
		TagNumber: tagNumber,
		TagType:   tagType,
		Status:    TagStatusActive,
		CreatedBy: createdBy,
	}
}

// DisplayString returns "{TypeName} #{tagNumber}".
func (t *Tag) DisplayString() string {
	return fmt.Sprintf("%s #%d", t.TagType.DisplayName(), t.TagNumber)
}

// FullDisplayString prefixes "[AUTO] " for system-reserved tags.
func (t *Tag) FullDisplayString() string {
	if t.IsAuto {
		return "[AUTO] " + t.DisplayString()
	}
	return t.DisplayString()
}
