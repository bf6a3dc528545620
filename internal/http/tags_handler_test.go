package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/events"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/repository"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/service"
)

func setupTagsAPI(t *testing.T) *Router {
	t.Helper()
	svc := service.NewTagService(
		repository.NewMemoryTagsRepository(),
		repository.NewMemoryUnitsRepository(),
		events.NopPublisher{},
		zap.NewNop(),
	)
	router := NewRouter(zap.NewNop())
	router.RegisterTagRoutes(NewTagsHandler(svc, zap.NewNop()))
	router.RegisterHealthRoutes()
	return router
}

func doJSON(t *testing.T, router *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-Id", "tester")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeResult unmarshals the envelope and the result payload.
func decodeResult(t *testing.T, w *httptest.ResponseRecorder, out any) Result[json.RawMessage] {
	t.Helper()
	var envelope Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if out != nil && len(envelope.Result) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Result, out))
	}
	return envelope
}

func createTagViaAPI(t *testing.T, router *Router, tagType string) domain.Tag {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/tags", map[string]any{"tag_type": tagType})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tag domain.Tag
	decodeResult(t, w, &tag)
	require.NotEmpty(t, tag.TagID)
	return tag
}

func TestCreateAndGetTag(t *testing.T) {
	router := setupTagsAPI(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/tags", map[string]any{
		"tag_type":        "prep_tag",
		"location_key_id": 3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created domain.Tag
	envelope := decodeResult(t, w, &created)
	assert.Equal(t, ResultSuccess, envelope.Code)
	assert.Equal(t, domain.TagTypePrepTag, created.TagType)
	assert.Equal(t, 1, created.TagNumber)
	assert.Equal(t, "tester", created.CreatedBy)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+created.TagID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched domain.Tag
	decodeResult(t, w, &fetched)
	assert.Equal(t, created.TagID, fetched.TagID)
	assert.Equal(t, int64(3), fetched.LocationKeyID)
}

func TestCreateTag_UnknownTypeIs400(t *testing.T) {
	router := setupTagsAPI(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/tags", map[string]any{"tag_type": "shelf"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeResult(t, w, nil)
	assert.Equal(t, ResultError, envelope.Code)
}

func TestGetTag_MissingIs404(t *testing.T) {
	router := setupTagsAPI(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/tags/00000000-0000-0000-0000-000000000000", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	envelope := decodeResult(t, w, nil)
	assert.Equal(t, "error", envelope.Type)
}

func TestListTags_FiltersByType(t *testing.T) {
	router := setupTagsAPI(t)
	createTagViaAPI(t, router, "basket")
	createTagViaAPI(t, router, "basket")
	createTagViaAPI(t, router, "wash")

	w := doJSON(t, router, http.MethodGet, "/api/v1/tags?tag_type=basket", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items []domain.Tag `json:"items"`
		Total int          `json:"total"`
	}
	decodeResult(t, w, &page)
	assert.Equal(t, 2, page.Total)
	for _, tag := range page.Items {
		assert.Equal(t, domain.TagTypeBasket, tag.TagType)
	}
}

func TestDuplicateNumberIs409(t *testing.T) {
	router := setupTagsAPI(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/tags", map[string]any{
		"tag_type":   "bundle",
		"tag_number": 7,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tags", map[string]any{
		"tag_type":   "bundle",
		"tag_number": 7,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateTag_ChangesStatus(t *testing.T) {
	router := setupTagsAPI(t)
	tag := createTagViaAPI(t, router, "wash")

	w := doJSON(t, router, http.MethodPut, "/api/v1/tags/"+tag.TagID, map[string]any{"status": "dead"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated domain.Tag
	decodeResult(t, w, &updated)
	assert.Equal(t, domain.TagStatusDead, updated.Status)
	assert.Equal(t, "tester", updated.UpdatedBy)
}

func TestDeleteTag_SecondDeleteIs404(t *testing.T) {
	router := setupTagsAPI(t)
	tag := createTagViaAPI(t, router, "case_cart")

	w := doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.TagID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.TagID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTagByNumberAndType(t *testing.T) {
	router := setupTagsAPI(t)
	tag := createTagViaAPI(t, router, "sterilization_load")

	w := doJSON(t, router, http.MethodGet, "/api/v1/tags/number/1/type/sterilization_load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched domain.Tag
	decodeResult(t, w, &fetched)
	assert.Equal(t, tag.TagID, fetched.TagID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/number/1/type/crate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnitPlacementRoutes(t *testing.T) {
	router := setupTagsAPI(t)
	tag := createTagViaAPI(t, router, "basket")

	w := doJSON(t, router, http.MethodPost, "/api/v1/tags/"+tag.TagID+"/units", map[string]any{
		"unit_id": 42,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/units/42/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var holders []domain.Tag
	decodeResult(t, w, &holders)
	require.Len(t, holders, 1)
	assert.Equal(t, tag.TagID, holders[0].TagID)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.TagID+"/units/42", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var removed map[string]bool
	decodeResult(t, w, &removed)
	assert.True(t, removed["removed"])

	// Removing again reports false, not an error.
	w = doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.TagID+"/units/42", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResult(t, w, &removed)
	assert.False(t, removed["removed"])
}

func TestItemRoutes_TripleViaQuery(t *testing.T) {
	router := setupTagsAPI(t)
	tag := createTagViaAPI(t, router, "case_cart")

	w := doJSON(t, router, http.MethodPost, "/api/v1/tags/"+tag.TagID+"/items", map[string]any{
		"item_key_id":   9,
		"serial_key_id": 2,
		"count":         3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodDelete,
		"/api/v1/tags/"+tag.TagID+"/items?item_key_id=9&serial_key_id=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var removed map[string]bool
	decodeResult(t, w, &removed)
	assert.True(t, removed["removed"])

	w = doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.TagID+"/items", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNestingRoutes_CycleIs409(t *testing.T) {
	router := setupTagsAPI(t)
	parent := createTagViaAPI(t, router, "transport")
	child := createTagViaAPI(t, router, "basket")

	w := doJSON(t, router, http.MethodPost,
		"/api/v1/tags/"+parent.TagID+"/tags/"+child.TagID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost,
		"/api/v1/tags/"+child.TagID+"/tags/"+parent.TagID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+parent.TagID+"/children", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var children []domain.Tag
	decodeResult(t, w, &children)
	require.Len(t, children, 1)
	assert.Equal(t, child.TagID, children[0].TagID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+child.TagID+"/parent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var gotParent domain.Tag
	decodeResult(t, w, &gotParent)
	assert.Equal(t, parent.TagID, gotParent.TagID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+child.TagID+"/root-id", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var root map[string]string
	decodeResult(t, w, &root)
	assert.Equal(t, parent.TagID, root["root_tag_id"])

	w = doJSON(t, router, http.MethodDelete,
		"/api/v1/tags/"+parent.TagID+"/tags/"+child.TagID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var removed map[string]bool
	decodeResult(t, w, &removed)
	assert.True(t, removed["removed"])
}

func TestContentQueries(t *testing.T) {
	router := setupTagsAPI(t)
	parent := createTagViaAPI(t, router, "transport")
	child := createTagViaAPI(t, router, "basket")

	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+parent.TagID+"/units", map[string]any{"unit_id": 1})
	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+child.TagID+"/units", map[string]any{"unit_id": 2})
	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+parent.TagID+"/tags/"+child.TagID, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/tags/"+parent.TagID+"/is-empty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var empty map[string]bool
	decodeResult(t, w, &empty)
	assert.False(t, empty["is_empty"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+parent.TagID+"/content-count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count map[string]int
	decodeResult(t, w, &count)
	assert.Equal(t, 2, count["content_count"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+parent.TagID+"/all-units", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var allUnits map[string][]int64
	decodeResult(t, w, &allUnits)
	assert.Equal(t, []int64{1, 2}, allUnits["units"])

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/roots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var roots []domain.Tag
	decodeResult(t, w, &roots)
	require.Len(t, roots, 1)
	assert.Equal(t, parent.TagID, roots[0].TagID)
}

func TestDissolveAndClearRoutes(t *testing.T) {
	router := setupTagsAPI(t)
	tag := createTagViaAPI(t, router, "bundle")
	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+tag.TagID+"/units", map[string]any{"unit_id": 5})

	w := doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.TagID+"/dissolve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+tag.TagID+"/is-empty", nil)
	var empty map[string]bool
	decodeResult(t, w, &empty)
	assert.True(t, empty["is_empty"])

	w = doJSON(t, router, http.MethodDelete, "/api/v1/tags/"+tag.TagID+"/contents", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMoveContentsRoute(t *testing.T) {
	router := setupTagsAPI(t)
	source := createTagViaAPI(t, router, "case_cart")
	transport := createTagViaAPI(t, router, "transport_box")
	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+source.TagID+"/units", map[string]any{"unit_id": 10})
	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+source.TagID+"/units", map[string]any{"unit_id": 20})

	w := doJSON(t, router, http.MethodPost,
		"/api/v1/tags/"+source.TagID+"/move-to/"+transport.TagID, map[string]any{"location_key_id": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+transport.TagID, nil)
	var moved domain.Tag
	decodeResult(t, w, &moved)
	assert.Equal(t, []int64{10, 20}, moved.Contents.Units)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/"+source.TagID+"/is-empty", nil)
	var empty map[string]bool
	decodeResult(t, w, &empty)
	assert.True(t, empty["is_empty"])
}

func TestAutoTagRoutes(t *testing.T) {
	router := setupTagsAPI(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/tags/auto/start", map[string]any{
		"tag_type":        "wash",
		"location_key_id": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reserved domain.Tag
	decodeResult(t, w, &reserved)
	assert.True(t, reserved.IsAuto)
	assert.True(t, reserved.HasAutoReservation)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/auto/reserved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Tag
	decodeResult(t, w, &list)
	assert.Len(t, list, 1)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tags/auto/empty?tag_type=wash&location_key_id=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var emptyBox domain.Tag
	decodeResult(t, w, &emptyBox)
	assert.Equal(t, reserved.TagID, emptyBox.TagID)

	w = doJSON(t, router, http.MethodPost, "/api/v1/tags/auto/stop/wash", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var released map[string]int
	decodeResult(t, w, &released)
	assert.Equal(t, 1, released["released"])

	w = doJSON(t, router, http.MethodPost, "/api/v1/tags/auto/stop-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResult(t, w, &released)
	assert.Equal(t, 0, released["released"])
}

func TestTransportBoxComposite(t *testing.T) {
	router := setupTagsAPI(t)

	// No box exists yet: the service reserves one.
	w := doJSON(t, router, http.MethodPost, "/api/v1/tags/transport-box/units/100", map[string]any{
		"location_key_id": 5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var box domain.Tag
	decodeResult(t, w, &box)
	assert.Equal(t, domain.TagTypeTransportBox, box.TagType)
	assert.Equal(t, []int64{100}, box.Contents.Units)

	// Explicit box route.
	other := createTagViaAPI(t, router, "transport_box")
	w = doJSON(t, router, http.MethodPost,
		"/api/v1/tags/transport-box/"+other.TagID+"/units/200", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var explicit domain.Tag
	decodeResult(t, w, &explicit)
	assert.Equal(t, other.TagID, explicit.TagID)
	assert.Equal(t, []int64{200}, explicit.Contents.Units)

	// A non-box target is rejected.
	basket := createTagViaAPI(t, router, "basket")
	w = doJSON(t, router, http.MethodPost,
		"/api/v1/tags/transport-box/"+basket.TagID+"/units/300", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSplitLinksRoute(t *testing.T) {
	router := setupTagsAPI(t)
	first := createTagViaAPI(t, router, "basket")
	second := createTagViaAPI(t, router, "wash")

	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+first.TagID+"/units", map[string]any{
		"unit_id": 77, "mark_as_split": true,
	})
	doJSON(t, router, http.MethodPost, "/api/v1/tags/"+second.TagID+"/units", map[string]any{
		"unit_id": 77, "mark_as_split": true,
	})

	w := doJSON(t, router, http.MethodGet, "/api/v1/tags/"+first.TagID+"/split-links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var linked []domain.Tag
	decodeResult(t, w, &linked)
	require.Len(t, linked, 1)
	assert.Equal(t, second.TagID, linked[0].TagID)
}

func TestMethodNotAllowed(t *testing.T) {
	router := setupTagsAPI(t)
	tag := createTagViaAPI(t, router, "basket")

	w := doJSON(t, router, http.MethodPatch, "/api/v1/tags", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/v1/tags/"+tag.TagID+"/units", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthz(t *testing.T) {
	router := setupTagsAPI(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
