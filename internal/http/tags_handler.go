package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/service"
)

const tagRoutePrefix = "/api/v1/tags"

const maxBodyBytes = 1 << 20

// TagsHandler serves every /api/v1/tags route. Routing is done here on path
// segments; the router only needs the two prefix registrations.
type TagsHandler struct {
	service *service.TagService
	logger  *zap.Logger
}

func NewTagsHandler(svc *service.TagService, logger *zap.Logger) *TagsHandler {
	return &TagsHandler{service: svc, logger: logger}
}

// writeError maps the error onto a status and logs internal failures.
func (h *TagsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, Fail(err.Error()))
}

func (h *TagsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, tagRoutePrefix)
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.listTags(w, r)
		case http.MethodPost:
			h.createTag(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	seg := strings.Split(path, "/")
	switch seg[0] {
	case "roots":
		h.getOnly(w, r, seg, 1, h.getRootTags)
	case "auto":
		h.serveAuto(w, r, seg[1:])
	case "number":
		// number/{n}/type/{t}
		if len(seg) != 4 || seg[2] != "type" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getTagByNumberAndType(w, r, seg[1], seg[3])
	case "units":
		// units/{unitId}/tags
		if len(seg) != 3 || seg[2] != "tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getTagsContainingUnit(w, r, seg[1])
	case "transport-box":
		h.serveTransportBox(w, r, seg[1:])
	default:
		h.serveTag(w, r, seg)
	}
}

// getOnly guards a fixed-shape GET route.
func (h *TagsHandler) getOnly(w http.ResponseWriter, r *http.Request, seg []string, wantLen int, fn http.HandlerFunc) {
	if len(seg) != wantLen {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fn(w, r)
}

// serveAuto handles the auto-tagging routes under /tags/auto.
func (h *TagsHandler) serveAuto(w http.ResponseWriter, r *http.Request, seg []string) {
	if len(seg) == 1 {
		switch seg[0] {
		case "reserved":
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.getReservedAutoTags(w, r)
			return
		case "empty":
			if r.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.getEmptyAutoTag(w, r)
			return
		case "start":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.startAutoTag(w, r)
			return
		case "stop-all":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.stopAllAutoTagging(w, r)
			return
		}
	}
	if len(seg) == 2 && seg[0] == "stop" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.stopAutoTagging(w, r, seg[1])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

// serveTransportBox handles the transport-box composite routes:
//
//	POST /tags/transport-box/units/{unitId}            pick or reserve a box
//	POST /tags/transport-box/{boxTagId}/units/{unitId} use the given box
func (h *TagsHandler) serveTransportBox(w http.ResponseWriter, r *http.Request, seg []string) {
	var boxTagID, unitSeg string
	switch {
	case len(seg) == 2 && seg[0] == "units":
		unitSeg = seg[1]
	case len(seg) == 3 && seg[1] == "units":
		boxTagID, unitSeg = seg[0], seg[2]
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	unitID, err := parseInt64(unitSeg)
	if err != nil || unitID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("invalid unit id"))
		return
	}
	var body struct {
		LocationKeyID int64     `json:"location_key_id"`
		At            time.Time `json:"at"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	box, err := h.service.MoveUnitToTransportBox(r.Context(), service.MoveUnitToTransportBoxRequest{
		UnitID:        unitID,
		BoxTagID:      boxTagID,
		LocationKeyID: body.LocationKeyID,
		At:            body.At,
		Actor:         actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(box))
}

// serveTag handles /tags/{id} and its sub-resources.
func (h *TagsHandler) serveTag(w http.ResponseWriter, r *http.Request, seg []string) {
	tagID := seg[0]

	if len(seg) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getTag(w, r, tagID)
		case http.MethodPut:
			h.updateTag(w, r, tagID)
		case http.MethodDelete:
			h.deleteTag(w, r, tagID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch seg[1] {
	case "units":
		switch {
		case len(seg) == 2 && r.Method == http.MethodPost:
			h.addUnit(w, r, tagID)
		case len(seg) == 3 && r.Method == http.MethodDelete:
			h.removeUnit(w, r, tagID, seg[2])
		case len(seg) == 2 || len(seg) == 3:
			w.WriteHeader(http.StatusMethodNotAllowed)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	case "items":
		switch {
		case len(seg) != 2:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost:
			h.addItem(w, r, tagID)
		case r.Method == http.MethodDelete:
			h.removeItem(w, r, tagID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "tags":
		if len(seg) != 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPost:
			h.nestTag(w, r, tagID, seg[2])
		case http.MethodDelete:
			h.detachTag(w, r, tagID, seg[2])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "indicators":
		switch {
		case len(seg) == 2 && r.Method == http.MethodPost:
			h.addIndicator(w, r, tagID)
		case len(seg) == 3 && r.Method == http.MethodDelete:
			h.removeIndicator(w, r, tagID, seg[2])
		case len(seg) == 2 || len(seg) == 3:
			w.WriteHeader(http.StatusMethodNotAllowed)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	case "move-to":
		if len(seg) != 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.moveContents(w, r, tagID, seg[2])
	case "children":
		h.tagQuery(w, r, seg, func() (any, error) {
			return h.service.GetChildTags(r.Context(), tagID)
		})
	case "parent":
		h.tagQuery(w, r, seg, func() (any, error) {
			return h.service.GetParentTag(r.Context(), tagID)
		})
	case "root-id":
		h.tagQuery(w, r, seg, func() (any, error) {
			rootID, err := h.service.GetRootTagID(r.Context(), tagID)
			if err != nil {
				return nil, err
			}
			return map[string]string{"root_tag_id": rootID}, nil
		})
	case "is-empty":
		h.tagQuery(w, r, seg, func() (any, error) {
			empty, err := h.service.IsTagEmpty(r.Context(), tagID)
			if err != nil {
				return nil, err
			}
			return map[string]bool{"is_empty": empty}, nil
		})
	case "content-count":
		h.tagQuery(w, r, seg, func() (any, error) {
			count, err := h.service.GetTagContentCount(r.Context(), tagID)
			if err != nil {
				return nil, err
			}
			return map[string]int{"content_count": count}, nil
		})
	case "all-units":
		h.tagQuery(w, r, seg, func() (any, error) {
			tag, err := h.service.GetTag(r.Context(), tagID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"units": tag.Contents.AllContainedUnits()}, nil
		})
	case "split-links":
		h.tagQuery(w, r, seg, func() (any, error) {
			return h.service.GetLinkedSplitTags(r.Context(), tagID)
		})
	case "dissolve":
		if len(seg) != 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.dissolveTag(w, r, tagID)
	case "contents":
		if len(seg) != 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.clearContents(w, r, tagID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// tagQuery guards a two-segment GET sub-resource and writes its result.
func (h *TagsHandler) tagQuery(w http.ResponseWriter, r *http.Request, seg []string, fn func() (any, error)) {
	if len(seg) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, err := fn()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

func (h *TagsHandler) listTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListTagsRequest{
		Page: parseInt(q.Get("page"), 1),
		Size: parseInt(q.Get("size"), 50),
	}
	if s := q.Get("tag_type"); s != "" {
		tagType, err := domain.ParseTagType(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		req.TagType = tagType
	}
	if s := q.Get("status"); s != "" {
		status := domain.TagStatus(s)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, Fail("unknown status "+s))
			return
		}
		req.Status = status
	}
	if s := q.Get("location_key_id"); s != "" {
		id, err := parseInt64(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid location_key_id"))
			return
		}
		req.LocationKeyID = id
	}
	req.AutoOnly = q.Get("auto") == "true"

	resp, err := h.service.ListTags(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *TagsHandler) createTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TagType       string `json:"tag_type"`
		TagNumber     int    `json:"tag_number"`
		IsAuto        bool   `json:"is_auto"`
		LocationKeyID int64  `json:"location_key_id"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	tagType, err := domain.ParseTagType(body.TagType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	tag, err := h.service.CreateTag(r.Context(), service.CreateTagRequest{
		TagType:       tagType,
		TagNumber:     body.TagNumber,
		IsAuto:        body.IsAuto,
		LocationKeyID: body.LocationKeyID,
		CreatedBy:     actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tag))
}

func (h *TagsHandler) getTag(w http.ResponseWriter, r *http.Request, tagID string) {
	tag, err := h.service.GetTag(r.Context(), tagID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tag))
}

func (h *TagsHandler) getTagByNumberAndType(w http.ResponseWriter, r *http.Request, numberSeg, typeSeg string) {
	tagNumber := parseInt(numberSeg, 0)
	if tagNumber <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("invalid tag number"))
		return
	}
	tagType, err := domain.ParseTagType(typeSeg)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	tag, err := h.service.GetTagByNumberAndType(r.Context(), tagNumber, tagType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tag))
}

func (h *TagsHandler) updateTag(w http.ResponseWriter, r *http.Request, tagID string) {
	var body struct {
		TagNumber     int    `json:"tag_number"`
		TagType       string `json:"tag_type"`
		Status        string `json:"status"`
		LocationKeyID int64  `json:"location_key_id"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	req := service.UpdateTagRequest{
		TagID:         tagID,
		TagNumber:     body.TagNumber,
		LocationKeyID: body.LocationKeyID,
		UpdatedBy:     actorFrom(r),
	}
	if body.TagType != "" {
		tagType, err := domain.ParseTagType(body.TagType)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		req.TagType = tagType
	}
	if body.Status != "" {
		status := domain.TagStatus(body.Status)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, Fail("unknown status "+body.Status))
			return
		}
		req.Status = status
	}

	tag, err := h.service.UpdateTag(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tag))
}

func (h *TagsHandler) deleteTag(w http.ResponseWriter, r *http.Request, tagID string) {
	deleted, err := h.service.DeleteTag(r.Context(), tagID, actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, Fail("tag not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"deleted": true}))
}

func (h *TagsHandler) getRootTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.GetRootTags(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tags))
}

func (h *TagsHandler) getTagsContainingUnit(w http.ResponseWriter, r *http.Request, unitSeg string) {
	unitID, err := parseInt64(unitSeg)
	if err != nil || unitID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("invalid unit id"))
		return
	}
	tags, err := h.service.GetTagsContainingUnit(r.Context(), unitID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tags))
}

func (h *TagsHandler) addUnit(w http.ResponseWriter, r *http.Request, tagID string) {
	var body struct {
		UnitID        int64     `json:"unit_id"`
		LocationKeyID int64     `json:"location_key_id"`
		At            time.Time `json:"at"`
		MarkAsSplit   bool      `json:"mark_as_split"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if body.UnitID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("unit_id is required"))
		return
	}
	err := h.service.AddUnitToTag(r.Context(), service.AddUnitRequest{
		TagID:         tagID,
		UnitID:        body.UnitID,
		LocationKeyID: body.LocationKeyID,
		At:            body.At,
		MarkAsSplit:   body.MarkAsSplit,
		Actor:         actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"added": true}))
}

func (h *TagsHandler) removeUnit(w http.ResponseWriter, r *http.Request, tagID, unitSeg string) {
	unitID, err := parseInt64(unitSeg)
	if err != nil || unitID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("invalid unit id"))
		return
	}
	removed, err := h.service.RemoveUnitFromTag(r.Context(), service.RemoveUnitRequest{
		TagID:  tagID,
		UnitID: unitID,
		Actor:  actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"removed": removed}))
}

func (h *TagsHandler) addItem(w http.ResponseWriter, r *http.Request, tagID string) {
	var body struct {
		ItemKeyID     int64     `json:"item_key_id"`
		SerialKeyID   int64     `json:"serial_key_id"`
		LotInfoKeyID  int64     `json:"lot_info_key_id"`
		Count         int       `json:"count"`
		LocationKeyID int64     `json:"location_key_id"`
		At            time.Time `json:"at"`
		MarkAsSplit   bool      `json:"mark_as_split"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if body.ItemKeyID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("item_key_id is required"))
		return
	}
	err := h.service.AddItemToTag(r.Context(), service.AddItemRequest{
		TagID:         tagID,
		ItemKeyID:     body.ItemKeyID,
		SerialKeyID:   body.SerialKeyID,
		LotInfoKeyID:  body.LotInfoKeyID,
		Count:         body.Count,
		LocationKeyID: body.LocationKeyID,
		At:            body.At,
		MarkAsSplit:   body.MarkAsSplit,
		Actor:         actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"added": true}))
}

// removeItem takes the item triple from the query string so DELETE carries
// no body.
func (h *TagsHandler) removeItem(w http.ResponseWriter, r *http.Request, tagID string) {
	q := r.URL.Query()
	itemKeyID, err := parseInt64(q.Get("item_key_id"))
	if err != nil || itemKeyID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("item_key_id is required"))
		return
	}
	var serialKeyID, lotInfoKeyID int64
	if s := q.Get("serial_key_id"); s != "" {
		if serialKeyID, err = parseInt64(s); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid serial_key_id"))
			return
		}
	}
	if s := q.Get("lot_info_key_id"); s != "" {
		if lotInfoKeyID, err = parseInt64(s); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid lot_info_key_id"))
			return
		}
	}
	removed, err := h.service.RemoveItemFromTag(r.Context(), service.RemoveItemRequest{
		TagID:        tagID,
		ItemKeyID:    itemKeyID,
		SerialKeyID:  serialKeyID,
		LotInfoKeyID: lotInfoKeyID,
		Actor:        actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"removed": removed}))
}

func (h *TagsHandler) nestTag(w http.ResponseWriter, r *http.Request, parentTagID, childTagID string) {
	var body struct {
		LocationKeyID int64     `json:"location_key_id"`
		At            time.Time `json:"at"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	err := h.service.AddTagToTag(r.Context(), service.NestTagRequest{
		ParentTagID:   parentTagID,
		ChildTagID:    childTagID,
		LocationKeyID: body.LocationKeyID,
		At:            body.At,
		Actor:         actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"added": true}))
}

func (h *TagsHandler) detachTag(w http.ResponseWriter, r *http.Request, parentTagID, childTagID string) {
	removed, err := h.service.RemoveTagFromTag(r.Context(), service.NestTagRequest{
		ParentTagID: parentTagID,
		ChildTagID:  childTagID,
		Actor:       actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"removed": removed}))
}

func (h *TagsHandler) addIndicator(w http.ResponseWriter, r *http.Request, tagID string) {
	var body struct {
		IndicatorID   int64     `json:"indicator_id"`
		LocationKeyID int64     `json:"location_key_id"`
		At            time.Time `json:"at"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if body.IndicatorID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("indicator_id is required"))
		return
	}
	err := h.service.AddIndicatorToTag(r.Context(), service.IndicatorRequest{
		TagID:         tagID,
		IndicatorID:   body.IndicatorID,
		LocationKeyID: body.LocationKeyID,
		At:            body.At,
		Actor:         actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"added": true}))
}

func (h *TagsHandler) removeIndicator(w http.ResponseWriter, r *http.Request, tagID, indicatorSeg string) {
	indicatorID, err := parseInt64(indicatorSeg)
	if err != nil || indicatorID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("invalid indicator id"))
		return
	}
	removed, err := h.service.RemoveIndicatorFromTag(r.Context(), service.IndicatorRequest{
		TagID:       tagID,
		IndicatorID: indicatorID,
		Actor:       actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"removed": removed}))
}

func (h *TagsHandler) moveContents(w http.ResponseWriter, r *http.Request, sourceTagID, transportTagID string) {
	var body struct {
		LocationKeyID int64     `json:"location_key_id"`
		At            time.Time `json:"at"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	err := h.service.MoveTagContentToTransportTag(r.Context(), service.MoveContentsRequest{
		SourceTagID:    sourceTagID,
		TransportTagID: transportTagID,
		LocationKeyID:  body.LocationKeyID,
		At:             body.At,
		Actor:          actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"moved": true}))
}

func (h *TagsHandler) dissolveTag(w http.ResponseWriter, r *http.Request, tagID string) {
	err := h.service.DissolveTag(r.Context(), service.ClearContentsRequest{
		TagID: tagID,
		Actor: actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"dissolved": true}))
}

func (h *TagsHandler) clearContents(w http.ResponseWriter, r *http.Request, tagID string) {
	err := h.service.ClearTagContents(r.Context(), service.ClearContentsRequest{
		TagID: tagID,
		Actor: actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"cleared": true}))
}

func (h *TagsHandler) startAutoTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TagType       string `json:"tag_type"`
		LocationKeyID int64  `json:"location_key_id"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	tagType, err := domain.ParseTagType(body.TagType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	tag, err := h.service.ReserveAutoTag(r.Context(), service.ReserveAutoTagRequest{
		TagType:       tagType,
		LocationKeyID: body.LocationKeyID,
		Actor:         actorFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tag))
}

func (h *TagsHandler) stopAutoTagging(w http.ResponseWriter, r *http.Request, typeSeg string) {
	tagType, err := domain.ParseTagType(typeSeg)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	released, err := h.service.StopAutoTagging(r.Context(), tagType, actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int{"released": released}))
}

func (h *TagsHandler) stopAllAutoTagging(w http.ResponseWriter, r *http.Request) {
	released, err := h.service.StopAllAutoTagging(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int{"released": released}))
}

func (h *TagsHandler) getReservedAutoTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.GetReservedAutoTags(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tags))
}

func (h *TagsHandler) getEmptyAutoTag(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tagType, err := domain.ParseTagType(q.Get("tag_type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	var locationKeyID int64
	if s := q.Get("location_key_id"); s != "" {
		if locationKeyID, err = parseInt64(s); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid location_key_id"))
			return
		}
	}
	tag, err := h.service.GetEmptyAutoTag(r.Context(), tagType, locationKeyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tag))
}
