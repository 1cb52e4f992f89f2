package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// scanItem scans a row into an Item. The row must have all 7 columns in
// standard order.
func scanItem(scanner interface{ Scan(dest ...any) error }) (Item, error) {
	var it Item
	var blob string
	var dormant int
	err := scanner.Scan(
		&it.ID, &blob, &it.LastUpdated, &it.PriorityScore,
		&dormant, &it.DormantSince, &it.LastChecked,
	)
	if err != nil {
		return it, err
	}
	it.IsDormant = dormant != 0
	it.Attrs, err = decodeAttrs(blob)
	if err != nil {
		return it, fmt.Errorf("decoding attrs for item %d: %w", it.ID, err)
	}
	return it, nil
}

const itemColumns = `item_id, data, last_updated, priority_score, is_dormant, dormant_since, last_checked`

// Set buffers an upsert. The write becomes durable on the next Flush.
// Last write wins for repeated sets of the same id.
func (s *Store) Set(it Item) {
	cp := it
	s.pending[it.ID] = &cp
}

// Flush writes all buffered upserts in one transaction and clears the buffer.
func (s *Store) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting flush transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			data = excluded.data,
			last_updated = excluded.last_updated,
			priority_score = excluded.priority_score,
			is_dormant = excluded.is_dormant,
			dormant_since = excluded.dormant_since,
			last_checked = excluded.last_checked
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, it := range s.pending {
		blob, err := encodeAttrs(it.Attrs)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding attrs for item %d: %w", it.ID, err)
		}
		dormant := 0
		if it.IsDormant {
			dormant = 1
		}
		if _, err := stmt.Exec(it.ID, blob, it.LastUpdated, it.PriorityScore,
			dormant, it.DormantSince, it.LastChecked); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting item %d: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing flush: %w", err)
	}
	s.pending = make(map[int64]*Item)
	return nil
}

// Sync flushes the buffer and folds the WAL into the main file, so copies
// of the bare .db are complete while the store stays open.
func (s *Store) Sync() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing WAL: %w", err)
	}
	return nil
}

// Get returns a single item by id, or nil if not present.
func (s *Store) Get(id int64) (*Item, error) {
	if it, ok := s.pending[id]; ok {
		cp := *it
		return &cp, nil
	}

	row := s.conn.QueryRow(`SELECT `+itemColumns+` FROM items WHERE item_id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Exists reports whether an item id is present.
func (s *Store) Exists(id int64) (bool, error) {
	if _, ok := s.pending[id]; ok {
		return true, nil
	}
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM items WHERE item_id = ?`, id).Scan(&n)
	return n > 0, err
}

// Count returns the number of stored items. Buffered writes are flushed
// first so the count reflects them.
func (s *Store) Count() (int, error) {
	if err := s.Flush(); err != nil {
		return 0, err
	}
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

// AllIDs returns every stored item id in ascending order.
func (s *Store) AllIDs() ([]int64, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(`SELECT item_id FROM items ORDER BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllItems returns every stored item ordered by id. Used by the edge
// synthesizer, which needs the full attribute set in one pass.
func (s *Store) AllItems() ([]Item, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(`SELECT ` + itemColumns + ` FROM items ORDER BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// BestSeed returns the non-dormant item with the highest priority score,
// or ok=false when no eligible item exists. Served by the partial index
// on (priority_score DESC) so it stays fast as the table grows.
func (s *Store) BestSeed() (id int64, ok bool, err error) {
	if err := s.Flush(); err != nil {
		return 0, false, err
	}
	row := s.conn.QueryRow(`
		SELECT item_id FROM items
		WHERE is_dormant = 0
		ORDER BY priority_score DESC, item_id
		LIMIT 1
	`)
	err = row.Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// MarkDormant excludes an item from seed selection without deleting it.
func (s *Store) MarkDormant(id int64, nowMs int64) error {
	if it, ok := s.pending[id]; ok {
		it.IsDormant = true
		it.DormantSince = &nowMs
		return nil
	}
	_, err := s.conn.Exec(`
		UPDATE items SET is_dormant = 1, dormant_since = ?
		WHERE item_id = ? AND is_dormant = 0
	`, nowMs, id)
	return err
}

// Delete removes an item. Used for tombstoning; the caller is responsible
// for removing the item's edges from the topology.
func (s *Store) Delete(id int64) error {
	delete(s.pending, id)
	_, err := s.conn.Exec(`DELETE FROM items WHERE item_id = ?`, id)
	return err
}

// StalestIDs returns up to n item ids ordered by oldest existence check
// first. Drives partial validation runs.
func (s *Store) StalestIDs(n int) ([]int64, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(`
		SELECT item_id FROM items ORDER BY last_checked, item_id LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PendingIDs returns the ids currently sitting in the write buffer,
// sorted. Mostly useful in tests and diagnostics.
func (s *Store) PendingIDs() []int64 {
	ids := make([]int64, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
