package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/config"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/service"
)

// tagScanMessage is the payload the station gateways publish on
// stations/{station}/tag-scans.
type tagScanMessage struct {
	TagNumber     int       `json:"tagNumber"`
	TagType       string    `json:"tagType"`
	LocationKeyID int64     `json:"locationKeyId"`
	ScannedAt     time.Time `json:"scannedAt"`
}

// unitScanMessage is the payload on stations/{station}/unit-scans. Either
// unitId or serialNumber identifies the unit.
type unitScanMessage struct {
	UnitID        int64     `json:"unitId"`
	SerialNumber  string    `json:"serialNumber"`
	LocationKeyID int64     `json:"locationKeyId"`
	ScannedAt     time.Time `json:"scannedAt"`
}

// ScanListener feeds station scans into the tag service.
type ScanListener struct {
	config  *config.MQTTConfig
	client  *Client
	service *service.TagService
	logger  *zap.Logger
}

func NewScanListener(
	cfg *config.MQTTConfig,
	client *Client,
	svc *service.TagService,
	logger *zap.Logger,
) *ScanListener {
	return &ScanListener{
		config:  cfg,
		client:  client,
		service: svc,
		logger:  logger,
	}
}

// Start subscribes to both scan topics and blocks until ctx is cancelled.
func (l *ScanListener) Start(ctx context.Context) error {
	if err := l.client.Subscribe(l.config.TagScanTopic, l.config.QoS, l.handleTagScan); err != nil {
		return fmt.Errorf("failed to subscribe to tag scans: %w", err)
	}
	if err := l.client.Subscribe(l.config.UnitScanTopic, l.config.QoS, l.handleUnitScan); err != nil {
		return fmt.Errorf("failed to subscribe to unit scans: %w", err)
	}

	l.logger.Info("Scan listener started",
		zap.String("tag_topic", l.config.TagScanTopic),
		zap.String("unit_topic", l.config.UnitScanTopic))

	<-ctx.Done()
	return nil
}

// Stop unsubscribes both topics.
func (l *ScanListener) Stop(ctx context.Context) error {
	if err := l.client.Unsubscribe(l.config.TagScanTopic, l.config.UnitScanTopic); err != nil {
		l.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	l.logger.Info("Scan listener stopped")
	return nil
}

// stationFrom extracts the station segment from stations/{station}/... .
func stationFrom(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[1], nil
}

func (l *ScanListener) handleTagScan(topic string, payload []byte) error {
	station, err := stationFrom(topic)
	if err != nil {
		return err
	}

	var msg tagScanMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal tag scan: %w", err)
	}
	tagType, err := domain.ParseTagType(msg.TagType)
	if err != nil {
		return err
	}

	tag, err := l.service.RecordTagScan(context.Background(), service.TagScanRequest{
		TagNumber:     msg.TagNumber,
		TagType:       tagType,
		LocationKeyID: msg.LocationKeyID,
		At:            msg.ScannedAt,
		Actor:         station,
	})
	if err != nil {
		return fmt.Errorf("failed to record tag scan: %w", err)
	}

	l.logger.Debug("Tag scan recorded",
		zap.String("station", station),
		zap.String("tag_id", tag.TagID),
		zap.Int64("location_key_id", msg.LocationKeyID))
	return nil
}

func (l *ScanListener) handleUnitScan(topic string, payload []byte) error {
	station, err := stationFrom(topic)
	if err != nil {
		return err
	}

	var msg unitScanMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal unit scan: %w", err)
	}

	holders, err := l.service.RecordUnitScan(context.Background(), service.UnitScanRequest{
		UnitID:        msg.UnitID,
		SerialNumber:  msg.SerialNumber,
		LocationKeyID: msg.LocationKeyID,
		At:            msg.ScannedAt,
		Actor:         station,
	})
	if err != nil {
		return fmt.Errorf("failed to record unit scan: %w", err)
	}

	l.logger.Debug("Unit scan recorded",
		zap.String("station", station),
		zap.Int64("unit_id", msg.UnitID),
		zap.Int("tags_updated", len(holders)))
	return nil
}
