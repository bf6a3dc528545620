package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/domain"
)

// tagColumns is the canonical select list for tag rows; scanTagRow scans in
// this exact order.
const tagColumns = `
	t.tag_id::text,
	t.tag_number,
	t.tag_type,
	t.is_auto,
	t.status,
	t.location_key_id,
	t.location_time,
	t.has_auto_reservation,
	t.in_tag_group_key_id,
	t.created_at,
	t.created_by,
	t.updated_at,
	t.updated_by`

// PostgresTagsRepository implements TagsRepository over the tags schema.
type PostgresTagsRepository struct {
	db *sql.DB
}

// NewPostgresTagsRepository creates the Postgres-backed tags repository.
func NewPostgresTagsRepository(db *sql.DB) *PostgresTagsRepository {
	return &PostgresTagsRepository{db: db}
}

var _ TagsRepository = (*PostgresTagsRepository)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTagRow(row rowScanner) (*domain.Tag, error) {
	var tag domain.Tag
	var tagType, status string
	var locationKeyID, tagGroupKeyID sql.NullInt64
	var locationTime, updatedAt sql.NullTime
	var updatedBy sql.NullString

	err := row.Scan(
		&tag.TagID,
		&tag.TagNumber,
		&tagType,
		&tag.IsAuto,
		&status,
		&locationKeyID,
		&locationTime,
		&tag.HasAutoReservation,
		&tagGroupKeyID,
		&tag.CreatedAt,
		&tag.CreatedBy,
		&updatedAt,
		&updatedBy,
	)
	if err != nil {
		return nil, err
	}

	tag.TagType = domain.TagType(tagType)
	tag.Status = domain.TagStatus(status)
	if locationKeyID.Valid {
		tag.LocationKeyID = locationKeyID.Int64
	}
	if locationTime.Valid {
		tag.LocationTime = locationTime.Time
	}
	if tagGroupKeyID.Valid {
		tag.InTagGroupKeyID = tagGroupKeyID.Int64
	}
	if updatedAt.Valid {
		at := updatedAt.Time
		tag.UpdatedAt = &at
	}
	if updatedBy.Valid {
		tag.UpdatedBy = updatedBy.String
	}
	return &tag, nil
}

// nullKeyID maps the 0-means-unset convention onto a NULL column.
func nullKeyID(keyID int64) sql.NullInt64 {
	if keyID <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: keyID, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// loadContents populates tag.Contents, resolving nested tags transitively.
// visited guards the recursion against a corrupted (cyclic) edge table.
func (r *PostgresTagsRepository) loadContents(ctx context.Context, tag *domain.Tag, visited map[string]bool) error {
	unitsQuery := `
		SELECT unit_id
		FROM tag_units
		WHERE tag_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, unitsQuery, tag.TagID)
	if err != nil {
		return fmt.Errorf("failed to load tag units: %w", err)
	}
	units := make([]int64, 0)
	for rows.Next() {
		var unitID int64
		if err := rows.Scan(&unitID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan tag unit: %w", err)
		}
		units = append(units, unitID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tag units: %w", err)
	}

	itemsQuery := `
		SELECT item_key_id, serial_key_id, lot_info_key_id, count
		FROM tag_items
		WHERE tag_id = $1
		ORDER BY id
	`
	rows, err = r.db.QueryContext(ctx, itemsQuery, tag.TagID)
	if err != nil {
		return fmt.Errorf("failed to load tag items: %w", err)
	}
	items := make([]domain.TagItem, 0)
	for rows.Next() {
		var item domain.TagItem
		if err := rows.Scan(&item.ItemKeyID, &item.SerialKeyID, &item.LotInfoKeyID, &item.Count); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan tag item: %w", err)
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tag items: %w", err)
	}

	indicatorsQuery := `
		SELECT indicator_id
		FROM tag_indicators
		WHERE tag_id = $1
		ORDER BY id
	`
	rows, err = r.db.QueryContext(ctx, indicatorsQuery, tag.TagID)
	if err != nil {
		return fmt.Errorf("failed to load tag indicators: %w", err)
	}
	indicators := make([]int64, 0)
	for rows.Next() {
		var indicatorID int64
		if err := rows.Scan(&indicatorID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan tag indicator: %w", err)
		}
		indicators = append(indicators, indicatorID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tag indicators: %w", err)
	}

	childrenQuery := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		JOIN tag_children tc ON tc.child_tag_id = t.tag_id
		WHERE tc.parent_tag_id = $1
		ORDER BY tc.placed_at, t.tag_id
	`, tagColumns)
	rows, err = r.db.QueryContext(ctx, childrenQuery, tag.TagID)
	if err != nil {
		return fmt.Errorf("failed to load nested tags: %w", err)
	}
	children := make([]*domain.Tag, 0)
	for rows.Next() {
		child, err := scanTagRow(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan nested tag: %w", err)
		}
		children = append(children, child)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read nested tags: %w", err)
	}

	for _, child := range children {
		if visited[child.TagID] {
			return fmt.Errorf("tag %s: %w", child.TagID, ErrCycleDetected)
		}
		visited[child.TagID] = true
		if err := r.loadContents(ctx, child, visited); err != nil {
			return err
		}
	}

	tag.Contents = domain.TagContents{
		Tags:       children,
		Units:      units,
		Items:      items,
		Indicators: indicators,
	}
	return nil
}

// queryTags runs a query producing tag rows and populates contents for each.
func (r *PostgresTagsRepository) queryTags(ctx context.Context, query string, args ...interface{}) ([]*domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	tags := make([]*domain.Tag, 0)
	for rows.Next() {
		tag, err := scanTagRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	for _, tag := range tags {
		if err := r.loadContents(ctx, tag, map[string]bool{tag.TagID: true}); err != nil {
			return nil, err
		}
	}
	return tags, nil
}

// GetTag returns one tag with contents eagerly populated.
func (r *PostgresTagsRepository) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	if tagID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE t.tag_id = $1
	`, tagColumns)

	tag, err := scanTagRow(r.db.QueryRowContext(ctx, query, tagID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}

	if err := r.loadContents(ctx, tag, map[string]bool{tag.TagID: true}); err != nil {
		return nil, err
	}
	return tag, nil
}

// GetTagByNumberAndType looks a tag up by its type-scoped number.
func (r *PostgresTagsRepository) GetTagByNumberAndType(ctx context.Context, tagNumber int, tagType domain.TagType) (*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE t.tag_number = $1 AND t.tag_type = $2
	`, tagColumns)

	tag, err := scanTagRow(r.db.QueryRowContext(ctx, query, tagNumber, string(tagType)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag by number and type: %w", err)
	}

	if err := r.loadContents(ctx, tag, map[string]bool{tag.TagID: true}); err != nil {
		return nil, err
	}
	return tag, nil
}

// ListTags returns one page of tags plus the unpaged total. size <= 0
// disables paging.
func (r *PostgresTagsRepository) ListTags(ctx context.Context, filter TagsFilter, page, size int) ([]*domain.Tag, int, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	argN := 1

	if filter.TagType != "" {
		where = append(where, fmt.Sprintf("t.tag_type = $%d", argN))
		args = append(args, string(filter.TagType))
		argN++
	}
	if filter.LocationKeyID > 0 {
		where = append(where, fmt.Sprintf("t.location_key_id = $%d", argN))
		args = append(args, filter.LocationKeyID)
		argN++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("t.status = $%d", argN))
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.AutoOnly {
		where = append(where, "t.is_auto = true")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tags t %s`, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tags: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		%s
		ORDER BY t.created_at, t.tag_id
	`, tagColumns, whereClause)

	if size > 0 {
		if page <= 0 {
			page = 1
		}
		listQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argN, argN+1)
		args = append(args, size, (page-1)*size)
	}

	tags, err := r.queryTags(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return tags, total, nil
}

// CreateTag inserts a new tag. A zero TagNumber is replaced with the next
// number for the tag's type, retrying on numbering races.
func (r *PostgresTagsRepository) CreateTag(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
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

	assignNumber := tag.TagNumber <= 0
	tag.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO tags (
			tag_number, tag_type, is_auto, status,
			location_key_id, location_time,
			has_auto_reservation, in_tag_group_key_id,
			created_at, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING tag_id::text
	`

	for attempt := 0; attempt < 3; attempt++ {
		if assignNumber {
			next, err := r.nextTagNumber(ctx, tag.TagType)
			if err != nil {
				return nil, err
			}
			tag.TagNumber = next
		}

		err := r.db.QueryRowContext(ctx, query,
			tag.TagNumber,
			string(tag.TagType),
			tag.IsAuto,
			string(tag.Status),
			nullKeyID(tag.LocationKeyID),
			nullTime(tag.LocationTime),
			tag.HasAutoReservation,
			nullKeyID(tag.InTagGroupKeyID),
			tag.CreatedAt,
			tag.CreatedBy,
		).Scan(&tag.TagID)
		if err == nil {
			return tag, nil
		}
		if isUniqueViolation(err) {
			if assignNumber {
				continue
			}
			return nil, ErrDuplicateTagNumber
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return nil, fmt.Errorf("failed to create tag: tag number contention for type %s", tag.TagType)
}

func (r *PostgresTagsRepository) nextTagNumber(ctx context.Context, tagType domain.TagType) (int, error) {
	var next int
	query := `SELECT COALESCE(MAX(tag_number), 0) + 1 FROM tags WHERE tag_type = $1`
	if err := r.db.QueryRowContext(ctx, query, string(tagType)).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to get next tag number: %w", err)
	}
	return next, nil
}

// UpdateTag persists scalar mutations and stamps UpdatedAt.
func (r *PostgresTagsRepository) UpdateTag(ctx context.Context, tag *domain.Tag) error {
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
	now := time.Now().UTC()
	tag.UpdatedAt = &now

	query := `
		UPDATE tags SET
			tag_number = $2,
			tag_type = $3,
			is_auto = $4,
			status = $5,
			location_key_id = $6,
			location_time = $7,
			has_auto_reservation = $8,
			in_tag_group_key_id = $9,
			updated_at = $10,
			updated_by = $11
		WHERE tag_id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		tag.TagID,
		tag.TagNumber,
		string(tag.TagType),
		tag.IsAuto,
		string(tag.Status),
		nullKeyID(tag.LocationKeyID),
		nullTime(tag.LocationTime),
		tag.HasAutoReservation,
		nullKeyID(tag.InTagGroupKeyID),
		tag.UpdatedAt,
		tag.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTagNumber
		}
		return fmt.Errorf("failed to update tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}
	if affected == 0 {
		return ErrTagNotFound
	}
	return nil
}

// DeleteTag removes the tag; content rows cascade. Returns false when the
// tag did not exist.
func (r *PostgresTagsRepository) DeleteTag(ctx context.Context, tagID string) (bool, error) {
	if tagID == "" {
		return false, fmt.Errorf("tag_id is required")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE tag_id = $1`, tagID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete tag: %w", err)
	}
	return affected > 0, nil
}

// GetTagsByType returns every tag of one type.
func (r *PostgresTagsRepository) GetTagsByType(ctx context.Context, tagType domain.TagType) ([]*domain.Tag, error) {
	if !tagType.Valid() {
		return nil, fmt.Errorf("invalid tag type %q", tagType)
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE t.tag_type = $1
		ORDER BY t.tag_number
	`, tagColumns)
	return r.queryTags(ctx, query, string(tagType))
}

// GetTagsByLocation returns every tag currently at one location.
func (r *PostgresTagsRepository) GetTagsByLocation(ctx context.Context, locationKeyID int64) ([]*domain.Tag, error) {
	if locationKeyID <= 0 {
		return nil, fmt.Errorf("location_key_id is required")
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE t.location_key_id = $1
		ORDER BY t.created_at, t.tag_id
	`, tagColumns)
	return r.queryTags(ctx, query, locationKeyID)
}

// GetAutoTags returns every system-reserved tag.
func (r *PostgresTagsRepository) GetAutoTags(ctx context.Context) ([]*domain.Tag, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE t.is_auto = true
		ORDER BY t.tag_type, t.tag_number
	`, tagColumns)
	return r.queryTags(ctx, query)
}

// GetTagsContainingUnit is the reverse placement lookup for one unit.
func (r *PostgresTagsRepository) GetTagsContainingUnit(ctx context.Context, unitID int64) ([]*domain.Tag, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM tags t
		JOIN tag_units tu ON tu.tag_id = t.tag_id
		WHERE tu.unit_id = $1
		ORDER BY t.created_at, t.tag_id::text
	`, tagColumns)
	return r.queryTags(ctx, query, unitID)
}

// GetTagsContainingItem is the reverse placement lookup for one item key
// pair.
func (r *PostgresTagsRepository) GetTagsContainingItem(ctx context.Context, itemKeyID, serialKeyID int64) ([]*domain.Tag, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM tags t
		JOIN tag_items ti ON ti.tag_id = t.tag_id
		WHERE ti.item_key_id = $1 AND ti.serial_key_id = $2
		ORDER BY t.created_at, t.tag_id::text
	`, tagColumns)
	return r.queryTags(ctx, query, itemKeyID, serialKeyID)
}

// IsUnitInAnyTag reports whether any placement row exists for the unit.
func (r *PostgresTagsRepository) IsUnitInAnyTag(ctx context.Context, unitID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM tag_units WHERE unit_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, unitID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check unit placement: %w", err)
	}
	return exists, nil
}

// IsItemInAnyTag reports whether any placement row exists for the item pair.
func (r *PostgresTagsRepository) IsItemInAnyTag(ctx context.Context, itemKeyID, serialKeyID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM tag_items WHERE item_key_id = $1 AND serial_key_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, itemKeyID, serialKeyID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check item placement: %w", err)
	}
	return exists, nil
}

func (r *PostgresTagsRepository) tagExists(ctx context.Context, tagID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM tags WHERE tag_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, tagID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check tag existence: %w", err)
	}
	return exists, nil
}

// GetTagContentCount sums unit, item, nested-tag and indicator rows.
func (r *PostgresTagsRepository) GetTagContentCount(ctx context.Context, tagID string) (int, error) {
	if tagID == "" {
		return 0, fmt.Errorf("tag_id is required")
	}
	exists, err := r.tagExists(ctx, tagID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrTagNotFound
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM tag_units WHERE tag_id = $1) +
			(SELECT COUNT(*) FROM tag_items WHERE tag_id = $1) +
			(SELECT COUNT(*) FROM tag_children WHERE parent_tag_id = $1) +
			(SELECT COUNT(*) FROM tag_indicators WHERE tag_id = $1)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tagID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tag contents: %w", err)
	}
	return count, nil
}

// IsTagEmpty reports whether the tag has zero content rows.
func (r *PostgresTagsRepository) IsTagEmpty(ctx context.Context, tagID string) (bool, error) {
	count, err := r.GetTagContentCount(ctx, tagID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// GetChildTags returns the direct children in placement order.
func (r *PostgresTagsRepository) GetChildTags(ctx context.Context, parentID string) ([]*domain.Tag, error) {
	if parentID == "" {
		return nil, fmt.Errorf("parent_tag_id is required")
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		JOIN tag_children tc ON tc.child_tag_id = t.tag_id
		WHERE tc.parent_tag_id = $1
		ORDER BY tc.placed_at, t.tag_id
	`, tagColumns)
	return r.queryTags(ctx, query, parentID)
}

// GetParentTag returns the containing tag, or (nil, nil) for a root.
func (r *PostgresTagsRepository) GetParentTag(ctx context.Context, childID string) (*domain.Tag, error) {
	if childID == "" {
		return nil, fmt.Errorf("child_tag_id is required")
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		JOIN tag_children tc ON tc.parent_tag_id = t.tag_id
		WHERE tc.child_tag_id = $1
	`, tagColumns)

	tag, err := scanTagRow(r.db.QueryRowContext(ctx, query, childID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get parent tag: %w", err)
	}
	if err := r.loadContents(ctx, tag, map[string]bool{tag.TagID: true}); err != nil {
		return nil, err
	}
	return tag, nil
}

// GetRootTags returns every tag not nested inside another tag.
func (r *PostgresTagsRepository) GetRootTags(ctx context.Context) ([]*domain.Tag, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tags t
		WHERE NOT EXISTS (SELECT 1 FROM tag_children tc WHERE tc.child_tag_id = t.tag_id)
		ORDER BY t.created_at, t.tag_id
	`, tagColumns)
	return r.queryTags(ctx, query)
}

// GetRootTagID walks parent links upward to the containing root. The edge
// table keys on the child, so the upward chain is linear; UNION (not UNION
// ALL) keeps the walk finite even against a corrupted edge set.
func (r *PostgresTagsRepository) GetRootTagID(ctx context.Context, tagID string) (string, error) {
	if tagID == "" {
		return "", fmt.Errorf("tag_id is required")
	}

	query := `
		WITH RECURSIVE chain AS (
			SELECT tag_id FROM tags WHERE tag_id = $1
			UNION
			SELECT tc.parent_tag_id
			FROM tag_children tc
			JOIN chain c ON tc.child_tag_id = c.tag_id
		)
		SELECT chain.tag_id::text
		FROM chain
		WHERE NOT EXISTS (
			SELECT 1 FROM tag_children tc2 WHERE tc2.child_tag_id = chain.tag_id
		)
		LIMIT 1
	`

	var rootID string
	err := r.db.QueryRowContext(ctx, query, tagID).Scan(&rootID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrTagNotFound
		}
		return "", fmt.Errorf("failed to resolve root tag: %w", err)
	}
	return rootID, nil
}

// GetLinkedSplitTags returns the other tags sharing a split-flagged unit
// with tagID.
func (r *PostgresTagsRepository) GetLinkedSplitTags(ctx context.Context, tagID string) ([]*domain.Tag, error) {
	if tagID == "" {
		return nil, fmt.Errorf("tag_id is required")
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM tags t
		JOIN tag_units other ON other.tag_id = t.tag_id AND other.is_split
		JOIN tag_units mine ON mine.unit_id = other.unit_id AND mine.is_split
		WHERE mine.tag_id = $1 AND t.tag_id <> $1
		ORDER BY t.created_at, t.tag_id::text
	`, tagColumns)
	return r.queryTags(ctx, query, tagID)
}

// GetSplitTagsForUnitSerialNumber resolves the unit through the units
// catalog and returns the tags holding it via split rows.
func (r *PostgresTagsRepository) GetSplitTagsForUnitSerialNumber(ctx context.Context, serialNumber string) ([]*domain.Tag, error) {
	if serialNumber == "" {
		return nil, fmt.Errorf("serial_number is required")
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM tags t
		JOIN tag_units tu ON tu.tag_id = t.tag_id AND tu.is_split
		JOIN units u ON u.unit_id = tu.unit_id
		WHERE u.serial_number = $1
		ORDER BY t.created_at, t.tag_id::text
	`, tagColumns)
	return r.queryTags(ctx, query, serialNumber)
}
