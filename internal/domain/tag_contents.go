package domain

// ContentCondition classifies a tag's contents. Only units and items count;
// nested tags and indicators never change the condition.
type ContentCondition string

const (
	ContentConditionEmpty ContentCondition = "empty"
	ContentConditionUnits ContentCondition = "units"
	ContentConditionItems ContentCondition = "items"
	ContentConditionMixed ContentCondition = "mixed"
)

// TagContents holds everything currently placed inside one tag: nested tags
// (references, each nested tag keeps its own stored state), unit ids, items
// and indicator ids, in placement order.
type TagContents struct {
	Tags       []*Tag    `json:"tags"`
	Units      []int64   `json:"units"`
	Items      []TagItem `json:"items"`
	Indicators []int64   `json:"indicators"`
}

func (c *TagContents) TagCount() int       { return len(c.Tags) }
func (c *TagContents) UnitCount() int      { return len(c.Units) }
func (c *TagContents) ItemCount() int      { return len(c.Items) }
func (c *TagContents) IndicatorCount() int { return len(c.Indicators) }

// IsEmpty reports whether all four member collections are empty.
func (c *TagContents) IsEmpty() bool {
	return len(c.Tags) == 0 && len(c.Units) == 0 && len(c.Items) == 0 && len(c.Indicators) == 0
}

// Condition derives the unit/item classification.
func (c *TagContents) Condition() ContentCondition {
	switch {
	case len(c.Units) > 0 && len(c.Items) > 0:
		return ContentConditionMixed
	case len(c.Units) > 0:
		return ContentConditionUnits
	case len(c.Items) > 0:
		return ContentConditionItems
	}
	return ContentConditionEmpty
}

// Clear detaches all members. Nested tags themselves are untouched.
func (c *TagContents) Clear() {
	c.Tags = nil
	c.Units = nil
	c.Items = nil
	c.Indicators = nil
}

// RemoveUnit removes the first occurrence of unitID. Duplicates are allowed,
// so one call removes at most one copy. Missing targets are a silent no-op.
func (c *TagContents) RemoveUnit(unitID int64) {
	for i, u := range c.Units {
		if u == unitID {
			c.Units = append(c.Units[:i], c.Units[i+1:]...)
			return
		}
	}
}

// RemoveTag removes the first nested reference whose id matches tagID.
// Missing targets are a silent no-op.
func (c *TagContents) RemoveTag(tagID string) {
	for i, t := range c.Tags {
		if t != nil && t.TagID == tagID {
			c.Tags = append(c.Tags[:i], c.Tags[i+1:]...)
			return
		}
	}
}

// RemoveItem removes the entry whose three identity keys all match. A partial
// key match removes nothing.
func (c *TagContents) RemoveItem(itemKeyID, serialKeyID, lotInfoKeyID int64) {
	for i, item := range c.Items {
		if item.ItemKeyID == itemKeyID && item.SerialKeyID == serialKeyID && item.LotInfoKeyID == lotInfoKeyID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// RemoveIndicator removes the first occurrence of indicatorID.
func (c *TagContents) RemoveIndicator(indicatorID int64) {
	for i, ind := range c.Indicators {
		if ind == indicatorID {
			c.Indicators = append(c.Indicators[:i], c.Indicators[i+1:]...)
			return
		}
	}
}

// AllContainedUnits returns this tag's direct units followed by each nested
// tag's units, depth-first in discovery order. The result is never nil.
// Termination relies on the containment graph being kept acyclic at insert
// time.
func (c *TagContents) AllContainedUnits() []int64 {
	units := make([]int64, 0, len(c.Units))
	units = append(units, c.Units...)
	for _, nested := range c.Tags {
		units = append(units, nested.Contents.AllContainedUnits()...)
	}
	return units
}
