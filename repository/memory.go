package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
)

var errReadOnly = errors.New("write attempted in read-only view")

// MemoryStore implements Store in process memory. Read-write units of work
// are serialized and run against a private copy that replaces the live state
// only when fn succeeds.
type MemoryStore struct {
	mu  sync.RWMutex
	st  *memState
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type memRow struct {
	state    models.SignState
	signedAt *time.Time
	seq      int
}

type memState struct {
	users            map[uuid.UUID]models.User
	responsibilities map[int]models.Responsibility
	statuses         map[int]models.Status
	documents        map[uuid.UUID]models.Document
	rows             map[uuid.UUID]map[models.Assignee]memRow
	history          []models.HistoryEntry
	nextHistoryID    int64
	nextSeq          int
}

func newMemState() *memState {
	return &memState{
		users:            make(map[uuid.UUID]models.User),
		responsibilities: make(map[int]models.Responsibility),
		statuses:         make(map[int]models.Status),
		documents:        make(map[uuid.UUID]models.Document),
		rows:             make(map[uuid.UUID]map[models.Assignee]memRow),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		users:            make(map[uuid.UUID]models.User, len(s.users)),
		responsibilities: make(map[int]models.Responsibility, len(s.responsibilities)),
		statuses:         make(map[int]models.Status, len(s.statuses)),
		documents:        make(map[uuid.UUID]models.Document, len(s.documents)),
		rows:             make(map[uuid.UUID]map[models.Assignee]memRow, len(s.rows)),
		history:          append([]models.HistoryEntry(nil), s.history...),
		nextHistoryID:    s.nextHistoryID,
		nextSeq:          s.nextSeq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.responsibilities {
		c.responsibilities[k] = v
	}
	for k, v := range s.statuses {
		c.statuses[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for doc, rows := range s.rows {
		cr := make(map[models.Assignee]memRow, len(rows))
		for k, v := range rows {
			cr[k] = v
		}
		c.rows[doc] = cr
	}
	return c
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState(), now: time.Now}
}

// SetClock overrides the time source used for server-assigned timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// WithTx implements Store
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.st.clone()
	if err := fn(ctx, &memTx{st: work, now: m.now}); err != nil {
		return err
	}
	// a cancelled request rolls back like a dropped connection would
	if err := ctx.Err(); err != nil {
		return err
	}
	m.st = work
	return nil
}

// View implements Store
func (m *MemoryStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &memTx{st: m.st, now: m.now, readOnly: true})
}

// AddUser seeds a user.
func (m *MemoryStore) AddUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
		u.UpdatedAt = u.CreatedAt
	}
	m.st.users[u.ID] = u
	return u
}

// AddResponsibility seeds a catalog responsibility.
func (m *MemoryStore) AddResponsibility(r models.Responsibility) models.Responsibility {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = len(m.st.responsibilities) + 1
	}
	m.st.responsibilities[r.ID] = r
	return r
}

// AddStatus seeds a catalog status.
func (m *MemoryStore) AddStatus(s models.Status) models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = len(m.st.statuses) + 1
	}
	m.st.statuses[s.ID] = s
	return s
}

// SeedCatalog installs the default responsibilities and workflow statuses.
func (m *MemoryStore) SeedCatalog() {
	for i, name := range []string{models.ResponsibilityElabora, models.ResponsibilityRevisa, models.ResponsibilityAprueba} {
		orden := i + 1
		m.AddResponsibility(models.Responsibility{ID: orden, Name: name, Orden: &orden})
	}
	for i, name := range []string{models.StatusPendiente, models.StatusEnProgreso, models.StatusRechazado, models.StatusCompletado} {
		m.AddStatus(models.Status{ID: i + 1, Name: name})
	}
}

type memTx struct {
	st       *memState
	now      func() time.Time
	readOnly bool
}

var _ Tx = (*memTx)(nil)

func (t *memTx) write() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *memTx) withStatusName(d models.Document) models.Document {
	if st, ok := t.st.statuses[d.StatusID]; ok {
		d.StatusName = st.Name
	}
	return d
}

func (t *memTx) GetDocument(_ context.Context, id uuid.UUID) (*models.Document, error) {
	d, ok := t.st.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	d = t.withStatusName(d)
	return &d, nil
}

// LockDocument is GetDocument: read-write units of work are already serialized.
func (t *memTx) LockDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return t.GetDocument(ctx, id)
}

func (t *memTx) CreateDocument(_ context.Context, doc *models.Document) error {
	if err := t.write(); err != nil {
		return err
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if _, ok := t.st.statuses[doc.StatusID]; !ok {
		return errors.New("estado_firma_id references a missing status")
	}
	now := t.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	*doc = t.withStatusName(*doc)
	t.st.documents[doc.ID] = *doc
	return nil
}

func (t *memTx) SetDocumentStatus(_ context.Context, id uuid.UUID, statusID int, active bool) error {
	if err := t.write(); err != nil {
		return err
	}
	d, ok := t.st.documents[id]
	if !ok {
		return ErrNotFound
	}
	if _, ok := t.st.statuses[statusID]; !ok {
		return errors.New("estado_firma_id references a missing status")
	}
	d.StatusID = statusID
	d.Active = active
	d.UpdatedAt = t.now()
	t.st.documents[id] = d
	return nil
}

func (t *memTx) ListSupervision(_ context.Context, filter models.SupervisionFilter, p models.Pagination) ([]models.Document, int, error) {
	p = p.Normalize()
	q := strings.ToLower(strings.TrimSpace(filter.Query))

	var all []models.Document
	for _, d := range t.st.documents {
		d = t.withStatusName(d)
		if filter.StatusName != "" && !strings.EqualFold(d.StatusName, filter.StatusName) {
			continue
		}
		if filter.CompanyID != nil && (d.CompanyID == nil || *d.CompanyID != *filter.CompanyID) {
			continue
		}
		if filter.Active != nil && d.Active != *filter.Active {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Title), q) && !strings.Contains(strings.ToLower(d.Code), q) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return paginate(all, p), len(all), nil
}

func paginate[T any](items []T, p models.Pagination) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (t *memTx) ResponsibilityByName(_ context.Context, name string) (*models.Responsibility, error) {
	for _, r := range t.st.responsibilities {
		if strings.EqualFold(r.Name, strings.TrimSpace(name)) {
			r := r
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) ListResponsibilities(_ context.Context) ([]models.Responsibility, error) {
	out := make([]models.Responsibility, 0, len(t.st.responsibilities))
	for _, r := range t.st.responsibilities {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return rankLess(out[i], out[j]) })
	return out, nil
}

// rankLess orders by orden with unranked responsibilities last.
func rankLess(a, b models.Responsibility) bool {
	switch {
	case a.Orden != nil && b.Orden != nil && *a.Orden != *b.Orden:
		return *a.Orden < *b.Orden
	case a.Orden != nil && b.Orden == nil:
		return true
	case a.Orden == nil && b.Orden != nil:
		return false
	}
	return a.ID < b.ID
}

func (t *memTx) StatusByID(_ context.Context, id int) (*models.Status, error) {
	s, ok := t.st.statuses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memTx) StatusByName(_ context.Context, name string) (*models.Status, error) {
	for _, s := range t.st.statuses {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			s := s
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) assignment(documentID uuid.UUID, key models.Assignee, row memRow) models.SignerAssignment {
	return models.SignerAssignment{
		DocumentID:     documentID,
		UserID:         key.UserID,
		Responsibility: t.st.responsibilities[key.ResponsibilityID],
		State:          row.state,
		SignedAt:       row.signedAt,
		User:           t.st.users[key.UserID],
	}
}

func (t *memTx) ListAssignments(_ context.Context, documentID uuid.UUID) ([]models.SignerAssignment, error) {
	rows := t.st.rows[documentID]
	keys := make([]models.Assignee, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := t.st.responsibilities[keys[i].ResponsibilityID], t.st.responsibilities[keys[j].ResponsibilityID]
		if ri.ID != rj.ID {
			return rankLess(ri, rj)
		}
		return rows[keys[i]].seq < rows[keys[j]].seq
	})

	out := make([]models.SignerAssignment, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.assignment(documentID, k, rows[k]))
	}
	return out, nil
}

func (t *memTx) GetAssignment(_ context.Context, documentID, userID uuid.UUID, responsibilityID int) (*models.SignerAssignment, error) {
	key := models.Assignee{UserID: userID, ResponsibilityID: responsibilityID}
	row, ok := t.st.rows[documentID][key]
	if !ok {
		return nil, ErrNotFound
	}
	a := t.assignment(documentID, key, row)
	return &a, nil
}

func (t *memTx) CountPending(_ context.Context, documentID uuid.UUID, responsibilityID int) (int, error) {
	n := 0
	for k, row := range t.st.rows[documentID] {
		if k.ResponsibilityID == responsibilityID && row.state == models.SignPending {
			n++
		}
	}
	return n, nil
}

func (t *memTx) MarkSigned(_ context.Context, documentID, userID uuid.UUID, responsibilityID int, at time.Time) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	key := models.Assignee{UserID: userID, ResponsibilityID: responsibilityID}
	row, ok := t.st.rows[documentID][key]
	if !ok || row.state != models.SignPending {
		return false, nil
	}
	row.state = models.SignSigned
	row.signedAt = &at
	t.st.rows[documentID][key] = row
	return true, nil
}

func (t *memTx) CreateAssignment(_ context.Context, documentID uuid.UUID, a models.Assignee) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.documents[documentID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.st.users[a.UserID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.st.responsibilities[a.ResponsibilityID]; !ok {
		return ErrNotFound
	}
	rows := t.st.rows[documentID]
	if rows == nil {
		rows = make(map[models.Assignee]memRow)
		t.st.rows[documentID] = rows
	}
	row, ok := rows[a]
	if !ok {
		t.st.nextSeq++
		row.seq = t.st.nextSeq
	}
	row.state = models.SignPending
	row.signedAt = nil
	rows[a] = row
	return nil
}

func (t *memTx) ResetAssignment(_ context.Context, documentID uuid.UUID, a models.Assignee) error {
	if err := t.write(); err != nil {
		return err
	}
	row, ok := t.st.rows[documentID][a]
	if !ok {
		return ErrNotFound
	}
	row.state = models.SignPending
	row.signedAt = nil
	t.st.rows[documentID][a] = row
	return nil
}

func (t *memTx) DeleteAssignment(_ context.Context, documentID uuid.UUID, a models.Assignee) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.rows[documentID][a]; !ok {
		return ErrNotFound
	}
	delete(t.st.rows[documentID], a)
	return nil
}

func (t *memTx) ListAssignmentsByUser(_ context.Context, userID uuid.UUID, p models.Pagination) ([]models.UserAssignment, int, error) {
	p = p.Normalize()

	var all []models.UserAssignment
	for docID, rows := range t.st.rows {
		for k, row := range rows {
			if k.UserID != userID {
				continue
			}
			all = append(all, models.UserAssignment{
				Document:       t.withStatusName(t.st.documents[docID]),
				Responsibility: t.st.responsibilities[k.ResponsibilityID],
				State:          row.state,
				SignedAt:       row.signedAt,
			})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		di, dj := all[i].Document, all[j].Document
		if !di.CreatedAt.Equal(dj.CreatedAt) {
			return di.CreatedAt.After(dj.CreatedAt)
		}
		if di.ID != dj.ID {
			return di.ID.String() < dj.ID.String()
		}
		return rankLess(all[i].Responsibility, all[j].Responsibility)
	})
	return paginate(all, p), len(all), nil
}

func (t *memTx) AppendHistory(_ context.Context, entry *models.HistoryEntry) error {
	if err := t.write(); err != nil {
		return err
	}
	st, ok := t.st.statuses[entry.StatusID]
	if !ok {
		return errors.New("estado_firma_id references a missing status")
	}
	t.st.nextHistoryID++
	entry.ID = t.st.nextHistoryID
	entry.ObservedAt = t.now()
	entry.StatusName = st.Name
	t.st.history = append(t.st.history, *entry)
	return nil
}

func (t *memTx) ListHistory(_ context.Context, documentID uuid.UUID) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	for _, h := range t.st.history {
		if h.DocumentID == documentID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.Before(out[j].ObservedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}
