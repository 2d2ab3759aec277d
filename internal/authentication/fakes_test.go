package authentication

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
	"github.com/mehmetcc/campaign-auth-service/internal/otp"
	"github.com/mehmetcc/campaign-auth-service/internal/utils"
)

type fakeRecordRepo struct {
	mu     sync.Mutex
	pairs  map[uint]*TokenPair
	nextID uint
	err    error
	// collisions makes the next n Create calls fail with ErrTokenCollision.
	collisions int
	touched    []uint
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{pairs: make(map[uint]*TokenPair)}
}

func (f *fakeRecordRepo) insert(pair *TokenPair) error {
	if f.collisions > 0 {
		f.collisions--
		return ErrTokenCollision
	}
	for _, p := range f.pairs {
		if p.AccessTokenHash == pair.AccessTokenHash || p.RefreshTokenHash == pair.RefreshTokenHash {
			return ErrTokenCollision
		}
	}
	f.nextID++
	pair.ID = f.nextID
	pair.CreatedAt = time.Now()
	stored := *pair
	f.pairs[pair.ID] = &stored
	return nil
}

func (f *fakeRecordRepo) Create(_ context.Context, pair *TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return f.insert(pair)
}

func (f *fakeRecordRepo) ReadActiveByAccessHash(_ context.Context, hash string, now time.Time) (*TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.pairs {
		if p.AccessTokenHash == hash && !p.IsRevoked && p.AccessExpiresAt.After(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFoundByGivenToken
}

func (f *fakeRecordRepo) TouchLastUsed(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	if p, ok := f.pairs[id]; ok {
		p.LastUsedAt = &at
	}
	return nil
}

func (f *fakeRecordRepo) ReadActiveByRefreshHash(_ context.Context, hash string, now time.Time) (*TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.pairs {
		if p.RefreshTokenHash == hash && !p.IsRevoked && p.RefreshExpiresAt.After(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFoundByGivenToken
}

func (f *fakeRecordRepo) Rotate(_ context.Context, refreshHash string, now time.Time, successor *TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	var consumed *TokenPair
	for _, p := range f.pairs {
		if p.RefreshTokenHash == refreshHash && !p.IsRevoked && p.RefreshExpiresAt.After(now) {
			consumed = p
			break
		}
	}
	if consumed == nil {
		return ErrRecordNotFoundByGivenToken
	}
	if err := f.insert(successor); err != nil {
		return err
	}
	consumed.IsRevoked = true
	return nil
}

func (f *fakeRecordRepo) RevokeByAccessHash(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, p := range f.pairs {
		if p.AccessTokenHash == hash && !p.IsRevoked {
			p.IsRevoked = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRecordRepo) RevokeAll(_ context.Context, userTypes []account.UserType, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, p := range f.pairs {
		if slices.Contains(userTypes, p.UserType) && p.UserID == userID && !p.IsRevoked {
			p.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeRecordRepo) ListActive(_ context.Context, userTypes []account.UserType, userID uint, now time.Time) ([]TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []TokenPair
	for _, p := range f.pairs {
		if slices.Contains(userTypes, p.UserType) && p.UserID == userID && !p.IsRevoked && p.RefreshExpiresAt.After(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeAccounts struct {
	mu     sync.Mutex
	donors map[uint]*account.DonorRecord
	users  map[uint]*account.UserRecord
	err    error
	// staffLookups counts ReadStaffByPhone calls, i.e. password checks reached.
	staffLookups int
}

func (f *fakeAccounts) ReadDonorByPhone(_ context.Context, phone string) (*account.DonorRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	canonical, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, account.ErrDonorNotFound
	}
	for _, d := range f.donors {
		if d.Phone == canonical {
			return d, nil
		}
	}
	return nil, account.ErrDonorNotFound
}

func (f *fakeAccounts) ReadStaffByPhone(_ context.Context, phone string) (*account.UserRecord, error) {
	f.mu.Lock()
	f.staffLookups++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	canonical, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, account.ErrUserNotFound
	}
	for _, u := range f.users {
		if u.Phone == canonical {
			return u, nil
		}
	}
	return nil, account.ErrUserNotFound
}

func (f *fakeAccounts) ReadView(_ context.Context, userType account.UserType, id uint) (*account.UserView, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch userType {
	case account.Donor:
		if d, ok := f.donors[id]; ok {
			return account.NewDonorView(d), nil
		}
		return nil, account.ErrDonorNotFound
	case account.Admin, account.Registrar:
		if u, ok := f.users[id]; ok && u.Active {
			return account.NewUserView(u), nil
		}
		return nil, account.ErrUserNotFound
	}
	return nil, account.ErrUnknownUserType
}

// fakeOtps accepts codes[phone] once.
type fakeOtps struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (f *fakeOtps) Send(context.Context, string) (*otp.Dispatch, error) { return nil, nil }

func (f *fakeOtps) Verify(_ context.Context, phone, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if want, ok := f.codes[phone]; ok && want == code {
		delete(f.codes, phone)
		return true, nil
	}
	return false, nil
}

// staffPassword is the bcrypt-hashed password of every staff fixture.
const staffPassword = "Campaign2024!"

var staffHash = func() string {
	h, err := account.HashPassword(staffPassword)
	if err != nil {
		panic(err)
	}
	return h
}()

func newFakeAccounts() *fakeAccounts {
	donor := &account.DonorRecord{Name: "Amira", Phone: "07123456789", PledgeTotal: 500, PaidTotal: 200}
	donor.ID = 1
	admin := &account.UserRecord{Name: "Sam", Phone: "07700900123", Password: staffHash, Role: "admin", Active: true}
	admin.ID = 10
	registrar := &account.UserRecord{Name: "Kai", Phone: "07700900456", Password: staffHash, Role: "registrar", Active: true}
	registrar.ID = 11
	retired := &account.UserRecord{Name: "Ola", Phone: "07700900999", Password: staffHash, Role: "registrar", Active: false}
	retired.ID = 12
	return &fakeAccounts{
		donors: map[uint]*account.DonorRecord{1: donor},
		users:  map[uint]*account.UserRecord{10: admin, 11: registrar, 12: retired},
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
