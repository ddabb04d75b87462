package outbox

import "database/sql"

// SQLiteRepository holds the terminal's completed-sale sync records until
// the dispatcher has delivered them to the upstream sales service. A row
// stays unpublished across restarts, so a sale recorded while offline is
// sent once the broker is reachable again.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db}
}

func (r *SQLiteRepository) Save(evt OutboxEvent) error {
	_, err := r.db.Exec(`
		INSERT INTO outbox_events (id, event_type, payload, published, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		evt.ID,
		string(evt.Type),
		evt.Payload,
		0,
		evt.CreatedAt.UTC(),
	)
	return err
}

// FindUnpublished returns up to limit undelivered sale records, oldest
// first, in the order the sales were completed.
func (r *SQLiteRepository) FindUnpublished(limit int) ([]OutboxEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, event_type, payload, published, created_at
		FROM outbox_events
		WHERE published = 0
		ORDER BY created_at, rowid
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []OutboxEvent

	for rows.Next() {
		var evt OutboxEvent
		var published int

		if err := rows.Scan(
			&evt.ID,
			&evt.Type,
			&evt.Payload,
			&published,
			&evt.CreatedAt,
		); err != nil {
			return nil, err
		}

		evt.Published = published == 1
		events = append(events, evt)
	}

	return events, rows.Err()
}

func (r *SQLiteRepository) MarkPublished(id string) error {
	_, err := r.db.Exec(`
		UPDATE outbox_events
		SET published = 1
		WHERE id = ?
	`, id)

	return err
}

// Pending counts events not yet published.
func (r *SQLiteRepository) Pending() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM outbox_events WHERE published = 0`).Scan(&n)
	return n, err
}
