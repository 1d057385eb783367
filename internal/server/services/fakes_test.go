package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/cryptox"
	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/assetdeletions"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newTestHasher(t *testing.T) cryptox.Hasher {
	t.Helper()
	h, err := cryptox.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func ptr[T any](v T) *T { return &v }

func changesWithRefresh(hash string) users.Changes {
	return users.Changes{RefreshTokenHash: &hash}
}

func changesWithAvatar(info models.AssetInfo) users.Changes {
	return users.Changes{Avatar: &models.Avatar{AssetID: info.AssetID, URL: info.URL}}
}

// memUsers is an in-memory users.Repository with the same filter semantics
// as the PostgreSQL one.
type memUsers struct {
	mu      sync.Mutex
	records []*models.User
	nextID  int

	// hideFromLookups makes FindByCondition miss every record, as if another
	// signup committed between the pre-check and the insert.
	hideFromLookups bool

	findErr   error
	createErr error
	updateErr error

	findCalls   int
	createCalls int
	updateCalls int
}

func (m *memUsers) seed(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		m.nextID++
		u.ID = fmt.Sprintf("u%d", m.nextID)
	}
	rec := u
	m.records = append(m.records, &rec)
	return &rec
}

func (m *memUsers) get(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.records {
		if u.ID == id {
			return copyUser(u, users.WithSecrets)
		}
	}
	return nil
}

func copyUser(u *models.User, p users.Projection) *models.User {
	c := *u
	if u.Avatar != nil {
		a := *u.Avatar
		c.Avatar = &a
	}
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	if p == users.WithoutSecrets {
		c.PasswordHash = ""
		c.RefreshTokenHash = nil
	}
	return &c
}

func matches(u *models.User, f users.Filter) bool {
	if f.ID != "" && u.ID != f.ID {
		return false
	}
	if f.Email != "" && u.Email != f.Email {
		return false
	}
	if f.ExcludeID != "" && u.ID == f.ExcludeID {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		name := strings.ToLower(u.Firstname + " " + u.Lastname)
		if !strings.Contains(name, q) && !strings.Contains(strings.ToLower(u.Email), q) {
			return false
		}
	}
	return true
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, r := range m.records {
		if r.Email == u.Email {
			return nil, common.ErrorConflict
		}
	}
	m.nextID++
	rec := *u
	rec.ID = fmt.Sprintf("u%d", m.nextID)
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.records = append(m.records, &rec)
	return copyUser(&rec, users.WithSecrets), nil
}

func (m *memUsers) FindByCondition(_ context.Context, f users.Filter, p users.Projection) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.hideFromLookups {
		return nil, common.ErrorNotFound
	}
	for _, u := range m.records {
		if matches(u, f) {
			return copyUser(u, p), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByCondition(_ context.Context, f users.Filter, p users.Projection) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := []*models.User{}
	for _, u := range m.records {
		if matches(u, f) {
			out = append(out, copyUser(u, p))
		}
	}
	return out, nil
}

func (m *memUsers) FindByIDAndUpdate(ctx context.Context, id string, c users.Changes) (*models.User, error) {
	return m.FindByConditionAndUpdate(ctx, users.Filter{ID: id}, c)
}

func (m *memUsers) FindByConditionAndUpdate(_ context.Context, f users.Filter, c users.Changes) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if f.ID == "" && f.Email == "" {
		return nil, users.ErrNonUniqueFilter
	}
	for _, u := range m.records {
		if !matches(u, f) {
			continue
		}
		if c.Firstname != nil {
			u.Firstname = *c.Firstname
		}
		if c.Lastname != nil {
			u.Lastname = *c.Lastname
		}
		if c.Avatar != nil {
			a := *c.Avatar
			u.Avatar = &a
		}
		if c.PasswordHash != nil {
			u.PasswordHash = *c.PasswordHash
		}
		if c.ClearRefreshToken {
			u.RefreshTokenHash = nil
		} else if c.RefreshTokenHash != nil {
			h := *c.RefreshTokenHash
			u.RefreshTokenHash = &h
		}
		u.UpdatedAt = time.Now()
		return copyUser(u, users.WithSecrets), nil
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) ReplaceAvatar(_ context.Context, id string, avatar models.Avatar) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return "", m.updateErr
	}
	for _, u := range m.records {
		if u.ID != id {
			continue
		}
		prev := ""
		if u.Avatar != nil {
			prev = u.Avatar.AssetID
		}
		a := avatar
		u.Avatar = &a
		u.UpdatedAt = time.Now()
		return prev, nil
	}
	return "", common.ErrorNotFound
}

// memDeletions is an in-memory assetdeletions.Repository.
type memDeletions struct {
	mu      sync.Mutex
	records []*models.PendingAssetDeletion
	nextID  int

	createErr error
	listErr   error
	markErr   error
	deleteErr error
}

func (m *memDeletions) Create(_ context.Context, userID, assetID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.nextID++
	d := &models.PendingAssetDeletion{
		ID:        fmt.Sprintf("d%d", m.nextID),
		UserID:    userID,
		AssetID:   assetID,
		CreatedAt: time.Now(),
	}
	m.records = append(m.records, d)
	return d.ID, nil
}

func (m *memDeletions) ListDue(_ context.Context, limit int) ([]*models.PendingAssetDeletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.PendingAssetDeletion{}
	for _, d := range m.records {
		if len(out) == limit {
			break
		}
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func (m *memDeletions) MarkFailed(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	for _, d := range m.records {
		if d.ID == id {
			d.Attempts++
			d.LastError = reason
		}
	}
	return nil
}

func (m *memDeletions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, d := range m.records {
		if d.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memDeletions) pending() []models.PendingAssetDeletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PendingAssetDeletion, 0, len(m.records))
	for _, d := range m.records {
		out = append(out, *d)
	}
	return out
}

type fakeRepoManager struct {
	u *memUsers
	d *memDeletions
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: &memUsers{}, d: &memDeletions{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error      { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                   { return m.u }
func (m *fakeRepoManager) AssetDeletions(dbx.DBTX) assetdeletions.Repository { return m.d }

// fakeStore is an in-memory assets.Store.
type fakeStore struct {
	mu        sync.Mutex
	stored    map[string][]byte
	destroyed []string
	next      int

	uploadErr  error
	destroyErr map[string]error

	// onUpload, when set, runs once after the next successful upload,
	// before UploadImage returns.
	onUpload func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{stored: map[string][]byte{}, destroyErr: map[string]error{}}
}

func (f *fakeStore) UploadImage(_ context.Context, data []byte) (models.AssetInfo, error) {
	f.mu.Lock()
	if f.uploadErr != nil {
		f.mu.Unlock()
		return models.AssetInfo{}, f.uploadErr
	}
	f.next++
	id := fmt.Sprintf("avatars/a%d.png", f.next)
	f.stored[id] = data
	hook := f.onUpload
	f.onUpload = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return models.AssetInfo{AssetID: id, URL: "http://assets.local/" + id}, nil
}

func (f *fakeStore) DestroyImage(_ context.Context, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.destroyErr[assetID]; err != nil {
		return err
	}
	delete(f.stored, assetID)
	f.destroyed = append(f.destroyed, assetID)
	return nil
}

func (f *fakeStore) setDestroyErr(assetID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.destroyErr, assetID)
		return
	}
	f.destroyErr[assetID] = err
}

func (f *fakeStore) has(assetID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stored[assetID]
	return ok
}

// live lists the stored asset ids in sorted order.
func (f *fakeStore) live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.stored))
	for id := range f.stored {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func testLogger() logging.Logger { return logging.Discard() }
