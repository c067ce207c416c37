// Package web serves the study UI: the deck dashboard, the review loop,
// and source management. All scheduling decisions are delegated to
// internal/scheduler; this layer only loads state, invokes the engine, and
// persists outcomes.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/fsrs"
	"github.com/conorfennell/knoldeck/internal/scheduler"
	"github.com/conorfennell/knoldeck/internal/storage"
	"github.com/conorfennell/knoldeck/internal/sync"
)

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	cfg       config.Config
	logger    *zap.Logger
	router    *http.ServeMux
	templates *template.Template
	selector  *scheduler.Selector
	syncer    *sync.Syncer

	engines map[string]*fsrs.Engine // keyed by deck config name
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, cfg config.Config, logger *zap.Logger, syncer *sync.Syncer) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		db:        db,
		cfg:       cfg,
		logger:    logger,
		router:    http.NewServeMux(),
		templates: tpl,
		selector:  scheduler.NewSelector(),
		syncer:    syncer,
		engines:   make(map[string]*fsrs.Engine),
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleDashboard)
	s.router.HandleFunc("/study", s.handleStudy)
	s.router.HandleFunc("/study/answer/", s.handleShowAnswer)
	s.router.HandleFunc("/review/", s.handlePostReview)
	s.router.HandleFunc("/cards/", s.handleCardAction)
	s.router.HandleFunc("/sources", s.handleSources)
	s.router.HandleFunc("/sources/", s.handleDeleteSource)
	s.router.HandleFunc("/sync", s.handlePostSync)
}

// session builds a review session for the deck's configuration, reusing the
// engine for each config name.
func (s *Server) session(deck *scheduler.Deck) (*scheduler.Session, *scheduler.DeckConfig, error) {
	configName := "default"
	if deck != nil {
		configName = deck.ConfigName
	}
	conf := s.cfg.Resolve(configName)

	engine, ok := s.engines[configName]
	if !ok {
		var err error
		engine, err = fsrs.New(fsrs.Config{
			DesiredRetention: conf.DesiredRetention,
			MaximumInterval:  conf.MaximumInterval,
			DisableFuzzing:   conf.DisableFuzzing,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build engine for config %s: %w", configName, err)
		}
		s.engines[configName] = engine
	}
	return scheduler.NewSession(engine, conf), conf, nil
}

// deckRow is one line of the dashboard tree.
type deckRow struct {
	Name   string
	Indent int
	Self   scheduler.Counts
	Sub    scheduler.Counts
}

// handleDashboard renders every deck with its own and rolled-up counts.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	decks, err := s.db.GetAllDecks()
	if err != nil {
		s.internalError(w, "loading decks", err)
		return
	}
	cards, err := s.db.GetAllCards()
	if err != nil {
		s.internalError(w, "loading cards", err)
		return
	}

	// Config validation guarantees every deck config shares one day-start
	// offset, so the whole tree classifies under the standard config's.
	offset := s.cfg.Resolve("default").DayStartOffset
	tree := scheduler.Aggregate(decks, schedCards(cards), time.Now(), offset)

	names := make([]string, 0, len(tree.Nodes))
	for name := range tree.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]deckRow, 0, len(names))
	for _, name := range names {
		counts := tree.Nodes[name]
		rows = append(rows, deckRow{
			Name:   name,
			Indent: strings.Count(name, scheduler.PathSeparator),
			Self:   counts.Self,
			Sub:    counts.Sub,
		})
	}

	s.render(w, "dashboard", map[string]any{
		"Rows":  rows,
		"Total": tree.Total,
	})
}

// handleStudy picks and renders the next card for the requested deck
// subtree. The two exhaustion reasons render distinct messages.
func (s *Server) handleStudy(w http.ResponseWriter, r *http.Request) {
	deckName := r.URL.Query().Get("deck")
	now := time.Now()

	set, err := s.deckSet(deckName, now)
	if err != nil {
		s.internalError(w, "building deck set", err)
		return
	}

	card, err := s.selector.Next(*set, now)
	switch {
	case err == scheduler.ErrNewLimitReached:
		s.render(w, "exhausted", map[string]any{
			"Deck":    deckName,
			"Message": "No new cards available today. The daily new-card limit is reached.",
		})
		return
	case err == scheduler.ErrNothingDue:
		s.render(w, "exhausted", map[string]any{
			"Deck":    deckName,
			"Message": "Nothing due right now. Come back when reviews are due.",
		})
		return
	case err != nil:
		s.internalError(w, "selecting next card", err)
		return
	}

	stored, err := s.db.FindCardByID(card.ID)
	if err != nil || stored == nil {
		s.internalError(w, "loading card", err)
		return
	}
	s.render(w, "card_front", map[string]any{
		"Deck": deckName,
		"Card": stored,
	})
}

// handleShowAnswer renders the back of a card with its rating buttons.
func (s *Server) handleShowAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/study/answer/"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid card ID", http.StatusBadRequest)
		return
	}
	stored, err := s.db.FindCardByID(id)
	if err != nil || stored == nil {
		http.NotFound(w, r)
		return
	}
	s.render(w, "card_back", map[string]any{
		"Deck":    r.URL.Query().Get("deck"),
		"Card":    stored,
		"Ratings": []scheduler.Rating{scheduler.Again, scheduler.Hard, scheduler.Good, scheduler.Easy},
	})
}

// handlePostReview grades a card, persists the outcome atomically, and
// hands back to the study view for the next card.
func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/review/"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid card ID", http.StatusBadRequest)
		return
	}
	grade, err := strconv.Atoi(r.PostFormValue("grade"))
	if err != nil {
		http.Error(w, "Invalid grade", http.StatusBadRequest)
		return
	}
	rating := scheduler.Rating(grade)
	if !rating.IsValid() {
		http.Error(w, "Invalid grade", http.StatusBadRequest)
		return
	}

	stored, err := s.db.FindCardByID(id)
	if err != nil || stored == nil {
		http.NotFound(w, r)
		return
	}

	deck, err := s.deckForCard(stored)
	if err != nil {
		s.internalError(w, "loading deck", err)
		return
	}
	session, _, err := s.session(deck)
	if err != nil {
		s.internalError(w, "building session", err)
		return
	}

	now := time.Now()
	wasNew := stored.Sched.State == scheduler.New
	next, entry, err := session.Review(stored.Sched, rating, now)
	if err != nil {
		s.internalError(w, "reviewing card", err)
		return
	}
	if ms, err := strconv.Atoi(r.PostFormValue("spent_ms")); err == nil && ms > 0 {
		entry.TimeSpent = time.Duration(ms) * time.Millisecond
	}

	// Persist the card update and the log append as one unit. On failure
	// the computed outcome is discarded; replaying it against stale state
	// would double-count reps and day counters.
	if err := s.db.SaveReview(next, entry, wasNew); err != nil {
		s.internalError(w, "saving review", err)
		return
	}

	http.Redirect(w, r, "/study?deck="+r.PostFormValue("deck"), http.StatusSeeOther)
}

// handleCardAction handles bury/suspend/restore: /cards/{id}/{action}.
func (s *Server) handleCardAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/cards/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "Invalid card ID", http.StatusBadRequest)
		return
	}

	var queue scheduler.Queue
	switch parts[1] {
	case "bury":
		queue = scheduler.QueueBuried
	case "suspend":
		queue = scheduler.QueueSuspended
	case "restore":
		queue = scheduler.QueueNormal
	default:
		http.NotFound(w, r)
		return
	}

	if err := s.db.SetCardQueue(id, queue, time.Now()); err != nil {
		s.internalError(w, "updating card queue", err)
		return
	}
	http.Redirect(w, r, "/study?deck="+r.PostFormValue("deck"), http.StatusSeeOther)
}

// handleSources handles GET (list) and POST (add) for sources.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderSources(w, "sources")
	case http.MethodPost:
		path := r.PostFormValue("path")
		if path == "" {
			http.Error(w, "Path cannot be empty", http.StatusBadRequest)
			return
		}
		sourceType := "local"
		if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
			sourceType = "git"
		}
		if _, err := s.db.InsertSource(path, sourceType); err != nil {
			s.internalError(w, "inserting source", err)
			return
		}
		s.renderSources(w, "source_list")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDeleteSource removes a source and its cards.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/sources/"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid source ID", http.StatusBadRequest)
		return
	}
	if err := s.db.DeleteSource(id); err != nil {
		s.internalError(w, "deleting source", err)
		return
	}
	s.renderSources(w, "source_list")
}

// handlePostSync runs a full source sync in the foreground.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.syncer.Run(time.Now()); err != nil {
		s.internalError(w, "running sync", err)
		return
	}
	s.renderSources(w, "source_list")
}

// deckSet assembles the selector's input for a deck subtree, rolling the
// deck's daily counters over first if a new logical day has started.
func (s *Server) deckSet(deckName string, now time.Time) (*scheduler.DeckSet, error) {
	var deck *scheduler.Deck
	if deckName != "" {
		var err error
		deck, err = s.db.FindDeckByName(deckName)
		if err != nil {
			return nil, err
		}
	}

	_, conf, err := s.session(deck)
	if err != nil {
		return nil, err
	}

	if deck != nil {
		deck, err = s.db.ResetDeckDay(deck, now, conf.DayStartOffset)
		if err != nil {
			return nil, err
		}
	}

	cards, err := s.db.GetCardsInDeckTree(deckName)
	if err != nil {
		return nil, err
	}
	return &scheduler.DeckSet{Deck: deck, Conf: conf, Cards: schedCards(cards)}, nil
}

// deckForCard loads the deck a stored card belongs to.
func (s *Server) deckForCard(card *storage.Card) (*scheduler.Deck, error) {
	decks, err := s.db.GetAllDecks()
	if err != nil {
		return nil, err
	}
	for i := range decks {
		if decks[i].ID == card.Sched.DeckID {
			return &decks[i], nil
		}
	}
	return nil, fmt.Errorf("deck %d not found for card %d", card.Sched.DeckID, card.Sched.ID)
}

func (s *Server) renderSources(w http.ResponseWriter, tmpl string) {
	sources, err := s.db.GetAllSources()
	if err != nil {
		s.internalError(w, "loading sources", err)
		return
	}
	s.render(w, tmpl, map[string]any{"Sources": sources})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func schedCards(cards []storage.Card) []scheduler.Card {
	out := make([]scheduler.Card, len(cards))
	for i, c := range cards {
		out[i] = c.Sched
	}
	return out
}
