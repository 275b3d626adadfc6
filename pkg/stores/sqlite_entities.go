package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/schema"
)

const entityColumns = `id, key, kind, alias, name, icon, thumbnail, description, allow_at_root, list_view, parent_key, parent_alias`

// ByKey returns the entity with the given key, or (nil, nil).
func (s *SQLiteStore) ByKey(ctx context.Context, kind schema.Kind, key uuid.UUID) (*schema.Entity, error) {
	if key == uuid.Nil {
		return nil, nil
	}
	query := `SELECT ` + entityColumns + ` FROM entities WHERE kind = ? AND key = ?`
	return s.getEntity(ctx, query, kind, key.String())
}

// ByAlias returns the entity with the given alias, or (nil, nil).
func (s *SQLiteStore) ByAlias(ctx context.Context, kind schema.Kind, alias string) (*schema.Entity, error) {
	if alias == "" {
		return nil, nil
	}
	query := `SELECT ` + entityColumns + ` FROM entities WHERE kind = ? AND alias = ?`
	return s.getEntity(ctx, query, kind, alias)
}

func (s *SQLiteStore) getEntity(ctx context.Context, query string, args ...interface{}) (*schema.Entity, error) {
	entity, err := scanEntity(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	if err := loadEntityChildren(ctx, s.db, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// ListEntities lists entities ordered by kind and alias. An empty kind lists
// both namespaces.
func (s *SQLiteStore) ListEntities(ctx context.Context, kind schema.Kind) ([]*schema.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE (? = '' OR kind = ?)
		ORDER BY kind, alias
	`

	rows, err := s.db.QueryContext(ctx, query, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	entities := []*schema.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	rows.Close()

	for _, entity := range entities {
		if err := loadEntityChildren(ctx, s.db, entity); err != nil {
			return nil, err
		}
	}

	return entities, nil
}

// CreateEntity inserts a new entity with its fields, groupings and allowed
// children. A missing key is generated; the assigned ID is written back.
func (s *SQLiteStore) CreateEntity(ctx context.Context, entity *schema.Entity) error {
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}
	if entity.Key == uuid.Nil {
		entity.Key = uuid.New()
	}

	query := `
		INSERT INTO entities (key, kind, alias, name, icon, thumbnail, description, allow_at_root, list_view,
			parent_key, parent_alias, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		parentKey, parentAlias := parentColumns(entity.Parent)
		now := time.Now().UTC()

		result, err := tx.ExecContext(ctx, query,
			entity.Key.String(),
			entity.Kind,
			entity.Alias,
			entity.Name,
			entity.Icon,
			entity.Thumbnail,
			entity.Description,
			entity.AllowAtRoot,
			entity.ListView,
			parentKey,
			parentAlias,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to create entity: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get entity ID: %w", err)
		}
		entity.ID = id

		return writeEntityChildren(ctx, tx, entity)
	})
}

// SaveEntity replaces the stored state of an existing entity.
func (s *SQLiteStore) SaveEntity(ctx context.Context, entity *schema.Entity) error {
	if entity.ID == 0 {
		return fmt.Errorf("entity %s has no ID: %w", entity.Alias, ErrNotFound)
	}
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}

	query := `
		UPDATE entities
		SET key = ?, alias = ?, name = ?, icon = ?, thumbnail = ?, description = ?,
			allow_at_root = ?, list_view = ?, parent_key = ?, parent_alias = ?, updated_at = ?
		WHERE id = ? AND kind = ?
	`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		parentKey, parentAlias := parentColumns(entity.Parent)

		result, err := tx.ExecContext(ctx, query,
			entity.Key.String(),
			entity.Alias,
			entity.Name,
			entity.Icon,
			entity.Thumbnail,
			entity.Description,
			entity.AllowAtRoot,
			entity.ListView,
			parentKey,
			parentAlias,
			time.Now().UTC(),
			entity.ID,
			entity.Kind,
		)
		if err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("entity %d: %w", entity.ID, ErrNotFound)
		}

		for _, table := range []string{"fields", "groupings", "allowed_children"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE entity_id = ?`, entity.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		return writeEntityChildren(ctx, tx, entity)
	})
}

// DeleteEntity deletes an entity by kind and alias
func (s *SQLiteStore) DeleteEntity(ctx context.Context, kind schema.Kind, alias string) error {
	query := `DELETE FROM entities WHERE kind = ? AND alias = ?`

	result, err := s.db.ExecContext(ctx, query, kind, alias)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("entity %s/%s: %w", kind, alias, ErrNotFound)
	}

	return nil
}

func scanEntity(row rowScanner) (*schema.Entity, error) {
	entity := schema.NewEntity("", "")
	var parentKey uuid.NullUUID
	var parentAlias sql.NullString

	err := row.Scan(
		&entity.ID,
		&entity.Key,
		&entity.Kind,
		&entity.Alias,
		&entity.Name,
		&entity.Icon,
		&entity.Thumbnail,
		&entity.Description,
		&entity.AllowAtRoot,
		&entity.ListView,
		&parentKey,
		&parentAlias,
	)
	if err != nil {
		return nil, err
	}

	if parentKey.Valid || parentAlias.Valid {
		entity.Parent = &schema.Reference{Key: parentKey.UUID, Alias: parentAlias.String}
	}
	return entity, nil
}

func parentColumns(ref *schema.Reference) (interface{}, interface{}) {
	if ref == nil || ref.IsZero() {
		return nil, nil
	}
	var key, alias interface{}
	if ref.Key != uuid.Nil {
		key = ref.Key.String()
	}
	if ref.Alias != "" {
		alias = ref.Alias
	}
	return key, alias
}

func nullKey(key uuid.UUID) interface{} {
	if key == uuid.Nil {
		return nil
	}
	return key.String()
}

func writeEntityChildren(ctx context.Context, q querier, entity *schema.Entity) error {
	for i, g := range entity.Groupings {
		_, err := q.ExecContext(ctx,
			`INSERT INTO groupings (entity_id, position, name, sort_order) VALUES (?, ?, ?, ?)`,
			entity.ID, i, g.Name, g.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("failed to write grouping %q: %w", g.Name, err)
		}
	}

	fieldQuery := `
		INSERT INTO fields (entity_id, position, key, alias, name, description, mandatory, validation_pattern,
			sort_order, data_type_id, data_type_key, editor_alias, group_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, f := range entity.Fields {
		_, err := q.ExecContext(ctx, fieldQuery,
			entity.ID,
			i,
			nullKey(f.Key),
			f.Alias,
			f.Name,
			f.Description,
			f.Mandatory,
			f.ValidationPattern,
			f.SortOrder,
			f.DataType.ID,
			nullKey(f.DataType.Key),
			f.DataType.EditorAlias,
			f.Group,
		)
		if err != nil {
			return fmt.Errorf("failed to write field %q: %w", f.Alias, err)
		}
	}

	for i, c := range entity.AllowedChildren {
		_, err := q.ExecContext(ctx,
			`INSERT INTO allowed_children (entity_id, position, child_key, child_alias, sort_order, display_name)
			VALUES (?, ?, ?, ?, ?, ?)`,
			entity.ID, i, nullKey(c.Ref.Key), c.Ref.Alias, c.SortOrder, c.DisplayName,
		)
		if err != nil {
			return fmt.Errorf("failed to write allowed child %q: %w", c.Ref.Alias, err)
		}
	}

	return nil
}

func loadEntityChildren(ctx context.Context, q querier, entity *schema.Entity) error {
	rows, err := q.QueryContext(ctx,
		`SELECT name, sort_order FROM groupings WHERE entity_id = ? ORDER BY position`, entity.ID)
	if err != nil {
		return fmt.Errorf("failed to load groupings: %w", err)
	}
	for rows.Next() {
		g := &schema.Grouping{}
		if err := rows.Scan(&g.Name, &g.SortOrder); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan grouping: %w", err)
		}
		entity.Groupings = append(entity.Groupings, g)
	}
	if err := closeRows(rows, "groupings"); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT key, alias, name, description, mandatory, validation_pattern, sort_order,
			data_type_id, data_type_key, editor_alias, group_name
		FROM fields WHERE entity_id = ? ORDER BY position`, entity.ID)
	if err != nil {
		return fmt.Errorf("failed to load fields: %w", err)
	}
	for rows.Next() {
		f := &schema.Field{}
		var key, dataTypeKey uuid.NullUUID
		err := rows.Scan(
			&key,
			&f.Alias,
			&f.Name,
			&f.Description,
			&f.Mandatory,
			&f.ValidationPattern,
			&f.SortOrder,
			&f.DataType.ID,
			&dataTypeKey,
			&f.DataType.EditorAlias,
			&f.Group,
		)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan field: %w", err)
		}
		f.Key = key.UUID
		f.DataType.Key = dataTypeKey.UUID
		entity.Fields = append(entity.Fields, f)
	}
	if err := closeRows(rows, "fields"); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT child_key, child_alias, sort_order, display_name
		FROM allowed_children WHERE entity_id = ? ORDER BY position`, entity.ID)
	if err != nil {
		return fmt.Errorf("failed to load allowed children: %w", err)
	}
	for rows.Next() {
		var c schema.StructureEntry
		var key uuid.NullUUID
		if err := rows.Scan(&key, &c.Ref.Alias, &c.SortOrder, &c.DisplayName); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan allowed child: %w", err)
		}
		c.Ref.Key = key.UUID
		entity.AllowedChildren = append(entity.AllowedChildren, c)
	}
	return closeRows(rows, "allowed children")
}

func closeRows(rows *sql.Rows, what string) error {
	err := rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("error iterating %s: %w", what, err)
	}
	return nil
}

// DataTypeByID returns the data type definition with the given id, or (nil, nil).
func (s *SQLiteStore) DataTypeByID(ctx context.Context, id int64) (*schema.DataTypeDefinition, error) {
	query := `SELECT id, key, name, editor_alias FROM data_types WHERE id = ?`
	return s.getDataType(ctx, query, id)
}

// DataTypeByKey returns the data type definition with the given key, or (nil, nil).
func (s *SQLiteStore) DataTypeByKey(ctx context.Context, key uuid.UUID) (*schema.DataTypeDefinition, error) {
	if key == uuid.Nil {
		return nil, nil
	}
	query := `SELECT id, key, name, editor_alias FROM data_types WHERE key = ?`
	return s.getDataType(ctx, query, key.String())
}

func (s *SQLiteStore) getDataType(ctx context.Context, query string, arg interface{}) (*schema.DataTypeDefinition, error) {
	def := &schema.DataTypeDefinition{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&def.ID, &def.Key, &def.Name, &def.EditorAlias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data type: %w", err)
	}
	return def, nil
}

// SaveDataType inserts or updates a data type definition by key. A zero ID
// is assigned by the database; the stored ID is written back.
func (s *SQLiteStore) SaveDataType(ctx context.Context, def *schema.DataTypeDefinition) error {
	if def.Key == uuid.Nil {
		def.Key = uuid.New()
	}

	query := `
		INSERT INTO data_types (id, key, name, editor_alias, updated_at)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			editor_alias = excluded.editor_alias,
			updated_at = excluded.updated_at
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query, def.ID, def.Key.String(), def.Name, def.EditorAlias, time.Now().UTC()).Scan(&def.ID)
	if err != nil {
		return fmt.Errorf("failed to save data type: %w", err)
	}
	return nil
}

// ListDataTypes lists data type definitions ordered by id
func (s *SQLiteStore) ListDataTypes(ctx context.Context) ([]*schema.DataTypeDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, key, name, editor_alias FROM data_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data types: %w", err)
	}
	defer rows.Close()

	defs := []*schema.DataTypeDefinition{}
	for rows.Next() {
		def := &schema.DataTypeDefinition{}
		if err := rows.Scan(&def.ID, &def.Key, &def.Name, &def.EditorAlias); err != nil {
			return nil, fmt.Errorf("failed to scan data type: %w", err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data types: %w", err)
	}

	return defs, nil
}
