package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/scheduler"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Card is a stored card: authored content plus scheduling state.
type Card struct {
	Hash     string
	Question string
	Answer   string
	Context  string
	SourceID sql.NullInt64
	Sched    scheduler.Card
}

const cardColumns = `id, hash, deck_id, question, answer, context,
	state, queue, due, last_review, last_edited,
	reps, lapses, stability, difficulty, elapsed_days, scheduled_days, source_id`

func scanCard(row interface{ Scan(...any) error }) (*Card, error) {
	var c Card
	var lastReview sql.NullTime
	var state, queue int
	err := row.Scan(
		&c.Sched.ID, &c.Hash, &c.Sched.DeckID, &c.Question, &c.Answer, &c.Context,
		&state, &queue, &c.Sched.Due, &lastReview, &c.Sched.LastEdited,
		&c.Sched.Reps, &c.Sched.Lapses, &c.Sched.Stability, &c.Sched.Difficulty,
		&c.Sched.ElapsedDays, &c.Sched.ScheduledDays, &c.SourceID,
	)
	if err != nil {
		return nil, err
	}
	c.Sched.State = scheduler.State(state)
	c.Sched.Queue = scheduler.Queue(queue)
	if lastReview.Valid {
		t := lastReview.Time
		c.Sched.LastReview = &t
	}
	return &c, nil
}

// InsertCard inserts a newly discovered card into a deck with fresh
// scheduling state: New, due now.
func (db *DB) InsertCard(card domain.Card, deckID, sourceID int64, now time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO cards (hash, deck_id, question, answer, context, state, queue, due, last_edited, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.Hash, deckID, card.Question, card.Answer, card.Context,
		int(scheduler.New), int(scheduler.QueueNormal), now, now, sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.Hash, err)
	}
	return nil
}

// FindCardByHash retrieves a card by its content hash, or nil when absent.
func (db *DB) FindCardByHash(hash string) (*Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE hash = ?`, hash)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return c, nil
}

// FindCardByID retrieves a card by its row id, or nil when absent.
func (db *DB) FindCardByID(id int64) (*Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card %d: %w", id, err)
	}
	return c, nil
}

func (db *DB) queryCards(query string, args ...any) ([]Card, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// GetAllCards retrieves every stored card.
func (db *DB) GetAllCards() ([]Card, error) {
	cards, err := db.queryCards(`SELECT ` + cardColumns + ` FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all cards: %w", err)
	}
	return cards, nil
}

// GetCardsInDeckTree retrieves every card whose deck is deckName or a
// descendant of it. An empty name returns all cards.
func (db *DB) GetCardsInDeckTree(deckName string) ([]Card, error) {
	if deckName == "" {
		return db.GetAllCards()
	}
	cards, err := db.queryCards(`
		SELECT `+cardColumns+` FROM cards
		WHERE deck_id IN (SELECT id FROM decks WHERE name = ? OR name LIKE ?)
	`, deckName, deckName+scheduler.PathSeparator+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck %s: %w", deckName, err)
	}
	return cards, nil
}

// GetCardsBySourceID retrieves all cards associated with a source.
func (db *DB) GetCardsBySourceID(sourceID int64) ([]Card, error) {
	cards, err := db.queryCards(`SELECT `+cardColumns+` FROM cards WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return cards, nil
}

// DeleteCardByHash removes a card and its review history.
func (db *DB) DeleteCardByHash(hash string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete for card %s: %w", hash, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM review_log WHERE card_id IN (SELECT id FROM cards WHERE hash = ?)`, hash,
	); err != nil {
		return fmt.Errorf("failed to delete review log for card %s: %w", hash, err)
	}
	if _, err := tx.Exec(`DELETE FROM cards WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("failed to delete card with hash %s: %w", hash, err)
	}
	return tx.Commit()
}

// SetCardQueue updates a card's queue flag (bury/suspend/restore),
// stamping last_edited so bury expires at the next logical day.
func (db *DB) SetCardQueue(id int64, queue scheduler.Queue, now time.Time) error {
	_, err := db.conn.Exec(`UPDATE cards SET queue = ?, last_edited = ? WHERE id = ?`,
		int(queue), now, id)
	if err != nil {
		return fmt.Errorf("failed to set queue for card %d: %w", id, err)
	}
	return nil
}

// SaveReview persists one review as a single unit: the card's new
// scheduling state, the appended log entry, and the deck's per-day counter.
// wasNew reports whether the card was in the New bucket before the review,
// which decides which counter the review consumes.
func (db *DB) SaveReview(card scheduler.Card, entry scheduler.ReviewLogEntry, wasNew bool) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	var lastReview sql.NullTime
	if card.LastReview != nil {
		lastReview = sql.NullTime{Time: *card.LastReview, Valid: true}
	}
	if _, err := tx.Exec(`
		UPDATE cards
		SET state = ?, queue = ?, due = ?, last_review = ?,
		    reps = ?, lapses = ?, stability = ?, difficulty = ?,
		    elapsed_days = ?, scheduled_days = ?
		WHERE id = ?
	`,
		int(card.State), int(card.Queue), card.Due, lastReview,
		card.Reps, card.Lapses, card.Stability, card.Difficulty,
		card.ElapsedDays, card.ScheduledDays, card.ID,
	); err != nil {
		return fmt.Errorf("failed to update card %d: %w", card.ID, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO review_log (card_id, rating, state, due, stability, difficulty,
			elapsed_days, scheduled_days, reviewed_at, time_spent_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.CardID, int(entry.Rating), int(entry.State), entry.Due,
		entry.Stability, entry.Difficulty, entry.ElapsedDays, entry.ScheduledDays,
		entry.ReviewedAt, entry.TimeSpent.Milliseconds(),
	); err != nil {
		return fmt.Errorf("failed to append review log for card %d: %w", entry.CardID, err)
	}

	counter := "review_today"
	if wasNew {
		counter = "new_today"
	}
	if _, err := tx.Exec(
		`UPDATE decks SET `+counter+` = `+counter+` + 1 WHERE id = ?`, card.DeckID,
	); err != nil {
		return fmt.Errorf("failed to bump deck counter for deck %d: %w", card.DeckID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for card %d: %w", card.ID, err)
	}
	return nil
}

// ReviewCount returns the number of logged reviews for a card.
func (db *DB) ReviewCount(cardID int64) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM review_log WHERE card_id = ?`, cardID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews for card %d: %w", cardID, err)
	}
	return n, nil
}

const deckColumns = `id, name, config_name, today, new_today, review_today,
	new_limit_today, rev_limit_today, new_limit, rev_limit`

func scanDeck(row interface{ Scan(...any) error }) (*scheduler.Deck, error) {
	var d scheduler.Deck
	var newToday, revToday, newLim, revLim sql.NullInt64
	err := row.Scan(
		&d.ID, &d.Name, &d.ConfigName, &d.Today, &d.NewToday, &d.ReviewToday,
		&newToday, &revToday, &newLim, &revLim,
	)
	if err != nil {
		return nil, err
	}
	d.NewLimitToday = nullableInt(newToday)
	d.RevLimitToday = nullableInt(revToday)
	d.NewLimit = nullableInt(newLim)
	d.RevLimit = nullableInt(revLim)
	return &d, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// GetOrCreateDeck finds a deck by name, creating it (under the default
// config) when missing.
func (db *DB) GetOrCreateDeck(name string, now time.Time) (*scheduler.Deck, error) {
	deck, err := db.FindDeckByName(name)
	if err != nil || deck != nil {
		return deck, err
	}
	if _, err := db.conn.Exec(
		`INSERT INTO decks (name, today) VALUES (?, ?)`, name, now,
	); err != nil {
		return nil, fmt.Errorf("failed to insert deck %s: %w", name, err)
	}
	return db.FindDeckByName(name)
}

// FindDeckByName retrieves a deck by its full path name, or nil when absent.
func (db *DB) FindDeckByName(name string) (*scheduler.Deck, error) {
	row := db.conn.QueryRow(`SELECT `+deckColumns+` FROM decks WHERE name = ?`, name)
	d, err := scanDeck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find deck %s: %w", name, err)
	}
	return d, nil
}

// GetAllDecks retrieves every stored deck.
func (db *DB) GetAllDecks() ([]scheduler.Deck, error) {
	rows, err := db.conn.Query(`SELECT ` + deckColumns + ` FROM decks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all decks: %w", err)
	}
	defer rows.Close()

	var decks []scheduler.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, *d)
	}
	return decks, rows.Err()
}

// ResetDeckDay rolls the deck's daily state over when now has crossed into
// a new logical day: counters return to zero, custom today-limits are
// cleared, and the today marker moves to now. Returns the refreshed deck.
func (db *DB) ResetDeckDay(deck *scheduler.Deck, now time.Time, offset time.Duration) (*scheduler.Deck, error) {
	if scheduler.SameDay(deck.Today, now, offset) {
		return deck, nil
	}
	if _, err := db.conn.Exec(`
		UPDATE decks
		SET today = ?, new_today = 0, review_today = 0,
		    new_limit_today = NULL, rev_limit_today = NULL
		WHERE id = ?
	`, now, deck.ID); err != nil {
		return nil, fmt.Errorf("failed to reset day for deck %d: %w", deck.ID, err)
	}
	return db.FindDeckByName(deck.Name)
}

// SetDeckLimits updates a deck's permanent and today-only caps. Nil clears.
func (db *DB) SetDeckLimits(deckID int64, newToday, revToday, newDefault, revDefault *int) error {
	_, err := db.conn.Exec(`
		UPDATE decks
		SET new_limit_today = ?, rev_limit_today = ?, new_limit = ?, rev_limit = ?
		WHERE id = ?
	`, intValue(newToday), intValue(revToday), intValue(newDefault), intValue(revDefault), deckID)
	if err != nil {
		return fmt.Errorf("failed to set limits for deck %d: %w", deckID, err)
	}
	return nil
}

func intValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// Source represents a card source, either a local path or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	LastScanned sql.NullTime
}

// InsertSource inserts a new source and returns its ID.
func (db *DB) InsertSource(path, sourceType string) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO sources (path, type) VALUES (?, ?)`, path, sourceType,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path, or nil when absent.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	var s Source
	row := db.conn.QueryRow(`SELECT id, path, type, last_scanned FROM sources WHERE path = ?`, path)
	err := row.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT id, path, type, last_scanned FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned stamps the source's last successful scan.
func (db *DB) UpdateSourceLastScanned(sourceID int64, now time.Time) error {
	_, err := db.conn.Exec(`UPDATE sources SET last_scanned = ? WHERE id = ?`, now, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source and every card it supplied.
func (db *DB) DeleteSource(sourceID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete for source %d: %w", sourceID, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM review_log WHERE card_id IN (SELECT id FROM cards WHERE source_id = ?)`, sourceID,
	); err != nil {
		return fmt.Errorf("failed to delete review logs for source %d: %w", sourceID, err)
	}
	if _, err := tx.Exec(`DELETE FROM cards WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to delete cards for source %d: %w", sourceID, err)
	}
	if _, err := tx.Exec(`DELETE FROM sources WHERE id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to delete source %d: %w", sourceID, err)
	}
	return tx.Commit()
}
