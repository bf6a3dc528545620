package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
)

// lockTag takes a row lock on the tag for the duration of the transaction.
func lockTag(ctx context.Context, tx *sql.Tx, tagID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT tag_id::text FROM tags WHERE tag_id = $1 FOR UPDATE`, tagID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrTagNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock tag: %w", err)
	}
	return nil
}

// lockTagPair locks two tags in id order so concurrent pairwise mutations
// cannot deadlock.
func lockTagPair(ctx context.Context, tx *sql.Tx, firstID, secondID string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT tag_id FROM tags WHERE tag_id IN ($1, $2) ORDER BY tag_id FOR UPDATE`,
		firstID, secondID)
	if err != nil {
		return fmt.Errorf("failed to lock tags: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to lock tags: %w", err)
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock tags: %w", err)
	}
	if locked < 2 {
		return ErrTagNotFound
	}
	return nil
}

func placementTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at
}

// AddUnitToTag places a unit on a tag. Unless markAsSplit is set, every
// existing placement of the unit (split rows included) is evicted first, in
// the same transaction as the insert.
func (r *PostgresTagsRepository) AddUnitToTag(ctx context.Context, tagID string, unitID int64, at time.Time, locationKeyID int64, markAsSplit bool) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if unitID <= 0 {
		return fmt.Errorf("unit_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockTag(ctx, tx, tagID); err != nil {
		return err
	}

	if !markAsSplit {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tag_units WHERE unit_id = $1`, unitID); err != nil {
			return fmt.Errorf("failed to evict unit placements: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_units (tag_id, unit_id, is_split, placed_at, location_key_id)
		VALUES ($1, $2, $3, $4, $5)
	`, tagID, unitID, markAsSplit, placementTime(at), nullKeyID(locationKeyID))
	if err != nil {
		return fmt.Errorf("failed to add unit to tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unit placement: %w", err)
	}
	return nil
}

// RemoveUnitFromTag deletes the oldest (tag, unit) placement row. Duplicate
// placements shed one row per call.
func (r *PostgresTagsRepository) RemoveUnitFromTag(ctx context.Context, tagID string, unitID int64, at time.Time, locationKeyID int64) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM tag_units
		WHERE id = (
			SELECT id FROM tag_units
			WHERE tag_id = $1 AND unit_id = $2
			ORDER BY id
			LIMIT 1
		)
	`, tagID, unitID)
	if err != nil {
		return false, fmt.Errorf("failed to remove unit from tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove unit from tag: %w", err)
	}
	return affected > 0, nil
}

// AddItemToTag places an item line keyed by (item, serial, lot). Exclusivity
// and split semantics mirror AddUnitToTag.
func (r *PostgresTagsRepository) AddItemToTag(ctx context.Context, tagID string, item domain.TagItem, at time.Time, locationKeyID int64, markAsSplit bool) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if item.ItemKeyID <= 0 {
		return fmt.Errorf("item_key_id is required")
	}
	if item.Count <= 0 {
		item.Count = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockTag(ctx, tx, tagID); err != nil {
		return err
	}

	if !markAsSplit {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM tag_items
			WHERE item_key_id = $1 AND serial_key_id = $2 AND lot_info_key_id = $3
		`, item.ItemKeyID, item.SerialKeyID, item.LotInfoKeyID)
		if err != nil {
			return fmt.Errorf("failed to evict item placements: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_items (tag_id, item_key_id, serial_key_id, lot_info_key_id, count, is_split, placed_at, location_key_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tagID, item.ItemKeyID, item.SerialKeyID, item.LotInfoKeyID, item.Count, markAsSplit, placementTime(at), nullKeyID(locationKeyID))
	if err != nil {
		return fmt.Errorf("failed to add item to tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item placement: %w", err)
	}
	return nil
}

// RemoveItemFromTag deletes the oldest placement row matching the exact
// (item, serial, lot) key. A partial key match removes nothing.
func (r *PostgresTagsRepository) RemoveItemFromTag(ctx context.Context, tagID string, itemKeyID, serialKeyID, lotInfoKeyID int64, at time.Time, locationKeyID int64) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM tag_items
		WHERE id = (
			SELECT id FROM tag_items
			WHERE tag_id = $1 AND item_key_id = $2 AND serial_key_id = $3 AND lot_info_key_id = $4
			ORDER BY id
			LIMIT 1
		)
	`, tagID, itemKeyID, serialKeyID, lotInfoKeyID)
	if err != nil {
		return false, fmt.Errorf("failed to remove item from tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove item from tag: %w", err)
	}
	return affected > 0, nil
}

// AddTagToTag nests childID under parentID. A child already nested elsewhere
// is re-parented. The edge is rejected with ErrCycleDetected when childID is
// parentID itself or any ancestor of it.
func (r *PostgresTagsRepository) AddTagToTag(ctx context.Context, parentID, childID string, at time.Time, locationKeyID int64) error {
	if parentID == "" || childID == "" {
		return fmt.Errorf("parent_tag_id and child_tag_id are required")
	}
	if parentID == childID {
		return ErrCycleDetected
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockTagPair(ctx, tx, parentID, childID); err != nil {
		return err
	}

	// The child would become an ancestor of itself if it already sits above
	// the parent.
	var cycles bool
	err = tx.QueryRowContext(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT parent_tag_id FROM tag_children WHERE child_tag_id = $1
			UNION
			SELECT tc.parent_tag_id
			FROM tag_children tc
			JOIN ancestors a ON tc.child_tag_id = a.parent_tag_id
		)
		SELECT EXISTS (SELECT 1 FROM ancestors WHERE parent_tag_id = $2)
	`, parentID, childID).Scan(&cycles)
	if err != nil {
		return fmt.Errorf("failed to check tag ancestry: %w", err)
	}
	if cycles {
		return ErrCycleDetected
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_children WHERE child_tag_id = $1`, childID); err != nil {
		return fmt.Errorf("failed to detach tag from previous parent: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_children (child_tag_id, parent_tag_id, placed_at, location_key_id)
		VALUES ($1, $2, $3, $4)
	`, childID, parentID, placementTime(at), nullKeyID(locationKeyID))
	if err != nil {
		return fmt.Errorf("failed to nest tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag nesting: %w", err)
	}
	return nil
}

// RemoveTagFromTag detaches childID from parentID. Returns false when that
// exact edge did not exist.
func (r *PostgresTagsRepository) RemoveTagFromTag(ctx context.Context, parentID, childID string, at time.Time, locationKeyID int64) (bool, error) {
	if parentID == "" || childID == "" {
		return false, fmt.Errorf("parent_tag_id and child_tag_id are required")
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tag_children WHERE parent_tag_id = $1 AND child_tag_id = $2`,
		parentID, childID)
	if err != nil {
		return false, fmt.Errorf("failed to remove nested tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove nested tag: %w", err)
	}
	return affected > 0, nil
}

// AddIndicatorToTag places an indicator, evicting any previous placement of
// the same indicator. Indicators have no split mechanism.
func (r *PostgresTagsRepository) AddIndicatorToTag(ctx context.Context, tagID string, indicatorID int64, at time.Time, locationKeyID int64) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if indicatorID <= 0 {
		return fmt.Errorf("indicator_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockTag(ctx, tx, tagID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_indicators WHERE indicator_id = $1`, indicatorID); err != nil {
		return fmt.Errorf("failed to evict indicator placements: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_indicators (tag_id, indicator_id, placed_at, location_key_id)
		VALUES ($1, $2, $3, $4)
	`, tagID, indicatorID, placementTime(at), nullKeyID(locationKeyID))
	if err != nil {
		return fmt.Errorf("failed to add indicator to tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit indicator placement: %w", err)
	}
	return nil
}

// RemoveIndicatorFromTag removes the (tag, indicator) placement. Returns
// false when that relation did not exist.
func (r *PostgresTagsRepository) RemoveIndicatorFromTag(ctx context.Context, tagID string, indicatorID int64, at time.Time, locationKeyID int64) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tag_indicators WHERE tag_id = $1 AND indicator_id = $2`,
		tagID, indicatorID)
	if err != nil {
		return false, fmt.Errorf("failed to remove indicator from tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove indicator from tag: %w", err)
	}
	return affected > 0, nil
}

// DissolveTag deletes every content row owned by the tag in one
// transaction. The tag row itself survives.
func (r *PostgresTagsRepository) DissolveTag(ctx context.Context, tagID string, at time.Time, locationKeyID int64) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockTag(ctx, tx, tagID); err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM tag_units WHERE tag_id = $1`,
		`DELETE FROM tag_items WHERE tag_id = $1`,
		`DELETE FROM tag_indicators WHERE tag_id = $1`,
		`DELETE FROM tag_children WHERE parent_tag_id = $1`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement, tagID); err != nil {
			return fmt.Errorf("failed to dissolve tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag dissolve: %w", err)
	}
	return nil
}

// ClearTagContents empties the tag. Same contract as DissolveTag.
func (r *PostgresTagsRepository) ClearTagContents(ctx context.Context, tagID string, at time.Time, locationKeyID int64) error {
	return r.DissolveTag(ctx, tagID, at, locationKeyID)
}

// MoveTagContentToTransportTag re-parents every content row from source to
// transport in one transaction, stamping the move time and location on each
// moved row. The move is rejected when the transport tag sits inside the
// source, since re-parenting would close a containment loop.
func (r *PostgresTagsRepository) MoveTagContentToTransportTag(ctx context.Context, sourceTagID, transportTagID string, at time.Time, locationKeyID int64) error {
	if sourceTagID == "" || transportTagID == "" {
		return fmt.Errorf("source_tag_id and transport_tag_id are required")
	}
	if sourceTagID == transportTagID {
		return fmt.Errorf("source and transport tags must differ")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockTagPair(ctx, tx, sourceTagID, transportTagID); err != nil {
		return err
	}

	var cycles bool
	err = tx.QueryRowContext(ctx, `
		WITH RECURSIVE descendants AS (
			SELECT child_tag_id FROM tag_children WHERE parent_tag_id = $1
			UNION
			SELECT tc.child_tag_id
			FROM tag_children tc
			JOIN descendants d ON tc.parent_tag_id = d.child_tag_id
		)
		SELECT EXISTS (SELECT 1 FROM descendants WHERE child_tag_id = $2)
	`, sourceTagID, transportTagID).Scan(&cycles)
	if err != nil {
		return fmt.Errorf("failed to check transport tag ancestry: %w", err)
	}
	if cycles {
		return ErrCycleDetected
	}

	movedAt := placementTime(at)
	location := nullKeyID(locationKeyID)

	statements := []string{
		`UPDATE tag_units SET tag_id = $2, placed_at = $3, location_key_id = $4 WHERE tag_id = $1`,
		`UPDATE tag_items SET tag_id = $2, placed_at = $3, location_key_id = $4 WHERE tag_id = $1`,
		`UPDATE tag_indicators SET tag_id = $2, placed_at = $3, location_key_id = $4 WHERE tag_id = $1`,
		`UPDATE tag_children SET parent_tag_id = $2, placed_at = $3, location_key_id = $4 WHERE parent_tag_id = $1`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement, sourceTagID, transportTagID, movedAt, location); err != nil {
			return fmt.Errorf("failed to move tag contents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit content move: %w", err)
	}
	return nil
}

// UpdateTagLocation stamps the tag's current location, typically from scan
// ingestion.
func (r *PostgresTagsRepository) UpdateTagLocation(ctx context.Context, tagID string, locationKeyID int64, at time.Time) error {
	if tagID == "" {
		return fmt.Errorf("tag_id is required")
	}
	if locationKeyID <= 0 {
		return fmt.Errorf("location_key_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE tags SET location_key_id = $2, location_time = $3 WHERE tag_id = $1`,
		tagID, locationKeyID, placementTime(at))
	if err != nil {
		return fmt.Errorf("failed to update tag location: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update tag location: %w", err)
	}
	if affected == 0 {
		return ErrTagNotFound
	}
	return nil
}

// ReserveAutoTag creates a reserved auto tag numbered one past the current
// maximum for the type.
func (r *PostgresTagsRepository) ReserveAutoTag(ctx context.Context, tagType domain.TagType, locationKeyID int64) (*domain.Tag, error) {
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

// ReleaseAutoTagReservation clears the reservation flag. Returns false when
// the tag does not exist or holds no reservation.
func (r *PostgresTagsRepository) ReleaseAutoTagReservation(ctx context.Context, tagID string) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE tags SET has_auto_reservation = false WHERE tag_id = $1 AND has_auto_reservation = true`,
		tagID)
	if err != nil {
		return false, fmt.Errorf("failed to release auto tag reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to release auto tag reservation: %w", err)
	}
	return affected > 0, nil
}

// GetReservedAutoTags returns every auto tag still holding its reservation.
func (r *PostgresTagsRepository) GetReservedAutoTags(ctx context.Context) ([]*domain.Tag, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE t.is_auto = true AND t.has_auto_reservation = true
		ORDER BY t.tag_type, t.tag_number
	`, tagColumns)
	return r.queryTags(ctx, query)
}

// GetEmptyAutoTag returns the lowest-numbered content-free auto tag for the
// type and location, or (nil, nil) when none is free. A locationKeyID of 0
// matches tags without a recorded location.
func (r *PostgresTagsRepository) GetEmptyAutoTag(ctx context.Context, tagType domain.TagType, locationKeyID int64) (*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}

	locationClause := "t.location_key_id IS NULL"
	args := []interface{}{string(tagType)}
	if locationKeyID > 0 {
		locationClause = "t.location_key_id = $2"
		args = append(args, locationKeyID)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE t.is_auto = true AND t.tag_type = $1 AND %s
			AND NOT EXISTS (SELECT 1 FROM tag_units tu WHERE tu.tag_id = t.tag_id)
			AND NOT EXISTS (SELECT 1 FROM tag_items ti WHERE ti.tag_id = t.tag_id)
			AND NOT EXISTS (SELECT 1 FROM tag_children tc WHERE tc.parent_tag_id = t.tag_id)
			AND NOT EXISTS (SELECT 1 FROM tag_indicators tx WHERE tx.tag_id = t.tag_id)
		ORDER BY t.tag_number
		LIMIT 1
	`, tagColumns, locationClause)

	tag, err := scanTagRow(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get empty auto tag: %w", err)
	}
	tag.Contents = domain.TagContents{
		Tags:       make([]*domain.Tag, 0),
		Units:      make([]int64, 0),
		Items:      make([]domain.TagItem, 0),
		Indicators: make([]int64, 0),
	}
	return tag, nil
}
