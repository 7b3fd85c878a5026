package fakeuserrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory UserRepo. It hands out copies so callers
// cannot mutate stored records without going through Update.
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user.Email = users.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return errors.Wrap(err, "[FakeUserRepo.Create]")
	}
	if _, exists := ur.emailIds[user.Email]; exists {
		return errors.Wrapf(apperrors.ErrEmailAlreadyExists, "[FakeUserRepo.Create] %s", user.Email)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, exists := ur.users[user.ID]; exists {
		return errors.Errorf("[FakeUserRepo.Create] duplicate id %s", user.ID)
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	user.Email = users.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return errors.Wrap(err, "[FakeUserRepo.Update]")
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.users[user.ID]
	if !ok {
		return errors.Wrapf(apperrors.ErrUserNotFound, "[FakeUserRepo.Update] %s", user.ID)
	}
	if ownerID, taken := ur.emailIds[user.Email]; taken && ownerID != user.ID {
		return errors.Wrapf(apperrors.ErrEmailAlreadyExists, "[FakeUserRepo.Update] %s", user.Email)
	}
	delete(ur.emailIds, existing.Email)
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errors.Wrapf(apperrors.ErrUserNotFound, "[FakeUserRepo.Delete] %s", id)
	}
	delete(ur.emailIds, user.Email)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrUserNotFound, "[FakeUserRepo.GetByEmail] %s", email)
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrUserNotFound, "[FakeUserRepo.GetByID] %s", id)
	}
	u := *user
	return &u, nil
}

// List orders by creation time, then id.
func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) (users.UsersListResponse, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		u := *v
		userList = append(userList, &u)
	}

	sort.Slice(userList, func(i, j int) bool {
		if !userList[i].CreatedAt.Equal(userList[j].CreatedAt) {
			return userList[i].CreatedAt.Before(userList[j].CreatedAt)
		}
		return userList[i].ID < userList[j].ID
	})

	total := len(userList)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return users.UsersListResponse{Users: []*users.User{}, Total: total, Offset: offset, Limit: limit}, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	return users.UsersListResponse{
		Users:  userList[offset:end],
		Total:  total,
		Offset: offset,
		Limit:  limit,
	}, nil
}

// Len is a test helper.
func (ur *FakeUserRepo) Len() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}
