package user

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}

type fakeRepo struct {
	users       map[string]*User
	findCatErr  error
	findCatCall int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*User)}
}

func (r *fakeRepo) Create(_ context.Context, user *User) (*User, error) {
	if _, ok := r.users[user.ID]; ok {
		return nil, ErrUserAlreadyExists
	}
	copy := *user
	r.users[user.ID] = &copy
	return cloneUser(&copy), nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *fakeRepo) FindCategory(_ context.Context, id string) (Category, error) {
	r.findCatCall++
	if r.findCatErr != nil {
		return 0, r.findCatErr
	}
	u, ok := r.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	return u.Category, nil
}

func (r *fakeRepo) List(_ context.Context, filter ListUsersFilter) ([]*User, string, error) {
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var filtered []*User
	for _, id := range ids {
		u := r.users[id]
		if filter.Category != nil && u.Category != *filter.Category {
			continue
		}
		filtered = append(filtered, cloneUser(u))
	}

	if filter.Offset > len(filtered) {
		return []*User{}, "", nil
	}

	end := filter.Offset + filter.Limit
	if end > len(filtered) {
		end = len(filtered)
	}

	var nextToken string
	if end < len(filtered) {
		nextToken = strconv.Itoa(end)
	}

	return filtered[filter.Offset:end], nextToken, nil
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	copy := *u
	return &copy
}

func TestService_CreateUser_Success(t *testing.T) {
	t.Parallel()

	clk := stubClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := newFakeRepo()
	svc := NewService(repo, clk)

	created, err := svc.CreateUser(context.Background(), CreateUserInput{ID: " 1234567890 ", Category: CategoryGuest})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if created.ID != "1234567890" {
		t.Errorf("expected trimmed id, got %q", created.ID)
	}

	if created.Category != CategoryGuest {
		t.Errorf("expected guest category, got %s", created.Category)
	}

	if !created.CreatedAt.Equal(clk.now) {
		t.Errorf("expected CreatedAt to use clock, got %v", created.CreatedAt)
	}
}

func TestService_CreateUser_Duplicate(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := NewService(repo, stubClock{now: time.Now()})

	if _, err := svc.CreateUser(context.Background(), CreateUserInput{ID: "u-1", Category: CategoryAffiliated}); err != nil {
		t.Fatalf("unexpected error preparing data: %v", err)
	}

	_, err := svc.CreateUser(context.Background(), CreateUserInput{ID: "u-1", Category: CategoryEmployee})
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestService_CreateUser_InvalidInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   CreateUserInput
		want error
	}{
		{name: "blank id", in: CreateUserInput{ID: "  ", Category: CategoryGuest}, want: ErrInvalidID},
		{name: "id too long", in: CreateUserInput{ID: "12345678901", Category: CategoryGuest}, want: ErrInvalidID},
		{name: "unknown category", in: CreateUserInput{ID: "u-1", Category: Category(7)}, want: ErrInvalidCategory},
		{name: "zero category", in: CreateUserInput{ID: "u-1"}, want: ErrInvalidCategory},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := NewService(newFakeRepo(), nil)
			if _, err := svc.CreateUser(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestService_ResolveCategory(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := NewService(repo, nil)

	for i, category := range []Category{CategoryAffiliated, CategoryEmployee, CategoryGuest} {
		id := fmt.Sprintf("u-%d", i)
		if _, err := svc.CreateUser(context.Background(), CreateUserInput{ID: id, Category: category}); err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		got, err := svc.ResolveCategory(context.Background(), id)
		if err != nil {
			t.Fatalf("ResolveCategory returned error: %v", err)
		}
		if got != category {
			t.Fatalf("expected %s, got %s", category, got)
		}
	}
}

func TestService_ResolveCategory_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil)

	for _, id := range []string{"missing", "0000000000", "x", "12345678901", "", "   "} {
		if _, err := svc.ResolveCategory(context.Background(), id); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound for %q, got %v", id, err)
		}
	}
}

func TestService_ResolveCategory_PropagatesStorageError(t *testing.T) {
	t.Parallel()

	storageErr := errors.New("connection reset")
	repo := newFakeRepo()
	repo.findCatErr = storageErr
	svc := NewService(repo, nil)

	if _, err := svc.ResolveCategory(context.Background(), "u-1"); err != storageErr {
		t.Fatalf("expected storage error unchanged, got %v", err)
	}
}

func TestService_GetUser_InvalidID(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil)

	if _, err := svc.GetUser(context.Background(), GetUserInput{ID: "   "}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestService_ListUsers_Paging(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateUser(context.Background(), CreateUserInput{ID: fmt.Sprintf("u-%d", i), Category: CategoryEmployee}); err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}
	}

	first, err := svc.ListUsers(context.Background(), ListUsersInput{PageSize: 2})
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(first.Users) != 2 || first.NextPageToken != "2" {
		t.Fatalf("unexpected first page: %d users, token %q", len(first.Users), first.NextPageToken)
	}
	if first.Users[0].ID != "u-0" || first.Users[1].ID != "u-1" {
		t.Fatalf("expected ascending id order, got %s, %s", first.Users[0].ID, first.Users[1].ID)
	}

	second, err := svc.ListUsers(context.Background(), ListUsersInput{PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(second.Users) != 1 || second.NextPageToken != "" {
		t.Fatalf("unexpected second page: %d users, token %q", len(second.Users), second.NextPageToken)
	}
}

func TestService_ListUsers_Validation(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil)

	if _, err := svc.ListUsers(context.Background(), ListUsersInput{PageSize: maxListPageSize + 1}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}

	if _, err := svc.ListUsers(context.Background(), ListUsersInput{PageToken: "abc"}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}

	invalid := Category(0)
	if _, err := svc.ListUsers(context.Background(), ListUsersInput{Category: &invalid}); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	cases := map[string]Category{
		"affiliated": CategoryAffiliated,
		" Employee ": CategoryEmployee,
		"GUEST":      CategoryGuest,
		"1":          CategoryAffiliated,
		"3":          CategoryGuest,
	}
	for raw, want := range cases {
		got, err := ParseCategory(raw)
		if err != nil {
			t.Fatalf("ParseCategory(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseCategory(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseCategory("student"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}
