package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/config"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/events"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/repository"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/service"
)

func setupListener(t *testing.T) (*ScanListener, *service.TagService, *repository.MemoryUnitsRepository) {
	t.Helper()
	units := repository.NewMemoryUnitsRepository()
	svc := service.NewTagService(
		repository.NewMemoryTagsRepository(),
		units,
		events.NopPublisher{},
		zap.NewNop(),
	)
	listener := NewScanListener(&config.MQTTConfig{
		TagScanTopic:  "stations/+/tag-scans",
		UnitScanTopic: "stations/+/unit-scans",
	}, nil, svc, zap.NewNop())
	return listener, svc, units
}

func TestHandleTagScan_UpdatesLocation(t *testing.T) {
	listener, svc, _ := setupListener(t)
	ctx := context.Background()

	tag, err := svc.CreateTag(ctx, service.CreateTagRequest{TagType: domain.TagTypeBasket, CreatedBy: "tech1"})
	require.NoError(t, err)

	payload := []byte(`{"tagNumber":1,"tagType":"basket","locationKeyId":7}`)
	require.NoError(t, listener.handleTagScan("stations/ST-04/tag-scans", payload))

	stored, err := svc.GetTag(ctx, tag.TagID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.LocationKeyID)
}

func TestHandleTagScan_BadInput(t *testing.T) {
	listener, _, _ := setupListener(t)

	err := listener.handleTagScan("stations/ST-04/tag-scans", []byte(`{not json`))
	assert.Error(t, err)

	err = listener.handleTagScan("tag-scans", []byte(`{"tagNumber":1,"tagType":"basket","locationKeyId":7}`))
	assert.Error(t, err)

	err = listener.handleTagScan("stations/ST-04/tag-scans",
		[]byte(`{"tagNumber":1,"tagType":"pallet","locationKeyId":7}`))
	assert.Error(t, err)

	// Unknown label: no tag with this number exists.
	err = listener.handleTagScan("stations/ST-04/tag-scans",
		[]byte(`{"tagNumber":42,"tagType":"basket","locationKeyId":7}`))
	assert.ErrorIs(t, err, repository.ErrTagNotFound)
}

func TestHandleUnitScan_ResolvesSerialNumber(t *testing.T) {
	listener, svc, units := setupListener(t)
	ctx := context.Background()

	_, err := units.CreateUnit(ctx, &domain.Unit{UnitID: 500, SerialNumber: "SN-500"})
	require.NoError(t, err)
	tag, err := svc.CreateTag(ctx, service.CreateTagRequest{TagType: domain.TagTypeWash, CreatedBy: "tech1"})
	require.NoError(t, err)
	require.NoError(t, svc.AddUnitToTag(ctx, service.AddUnitRequest{TagID: tag.TagID, UnitID: 500}))

	payload := []byte(`{"serialNumber":"SN-500","locationKeyId":9}`)
	require.NoError(t, listener.handleUnitScan("stations/ST-01/unit-scans", payload))

	stored, err := svc.GetTag(ctx, tag.TagID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stored.LocationKeyID)
}

func TestHandleUnitScan_UnknownSerial(t *testing.T) {
	listener, _, _ := setupListener(t)

	err := listener.handleUnitScan("stations/ST-01/unit-scans",
		[]byte(`{"serialNumber":"SN-MISSING","locationKeyId":9}`))

	assert.ErrorIs(t, err, repository.ErrUnitNotFound)
}
