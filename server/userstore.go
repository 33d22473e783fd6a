package server

import (
	"strings"
	"sync"
	"time"

	"github.com/buildworks/sitelink/tenants"
	"github.com/buildworks/sitelink/users"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// account pairs a user with its credential hash. The dev backend keeps
// everything in memory and reseeds on every start.
type account struct {
	user         users.User
	passwordHash string
}

type userStore struct {
	lock    sync.RWMutex
	byEmail map[string]*account
	byID    map[string]*account
	tenants map[string]*tenants.Tenant
}

func newUserStore() *userStore {
	return &userStore{
		byEmail: make(map[string]*account),
		byID:    make(map[string]*account),
		tenants: make(map[string]*tenants.Tenant),
	}
}

// seedDemoAccounts creates the fixed logins used in development. The MFA
// account always accepts the code 246810.
func (s *userStore) seedDemoAccounts() error {
	demoTenant := &tenants.Tenant{
		ID:           "demo-construction",
		Name:         "Demo Construction Co",
		Plan:         "pro",
		SeatLimit:    25,
		Features:     []string{"equipment", "incidents", "invoicing"},
		BillingEmail: "billing@demo.example",
	}

	seeds := []struct {
		email    string
		password string
		role     users.RoleType
		mfa      users.MFAuthType
		first    string
		last     string
	}{
		{"owner@demo.example", "Owner123!", users.RolePrincipalAdmin, "", "Dana", "Whitfield"},
		{"pm@demo.example", "Manager123!", users.RoleProjectManager, "", "Luis", "Ortega"},
		{"foreman@demo.example", "Foreman123!", users.RoleForeman, users.MFAuthenticator, "Sam", "Kowalski"},
	}

	for _, seed := range seeds {
		hash, err := users.HashPassword(seed.password)
		if err != nil {
			return errors.Wrapf(err, "[userStore.seedDemoAccounts] %s", seed.email)
		}
		user := users.User{
			ID:         uuid.NewString(),
			Email:      seed.email,
			FirstName:  seed.first,
			LastName:   seed.last,
			Role:       seed.role,
			CompanyID:  demoTenant.ID,
			MFType:     seed.mfa,
			DateJoined: time.Now().UTC(),
		}
		s.add(&account{user: user, passwordHash: hash}, demoTenant)
	}
	return nil
}

func (s *userStore) add(acct *account, tenant *tenants.Tenant) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.byEmail[strings.ToLower(acct.user.Email)] = acct
	s.byID[acct.user.ID] = acct
	if tenant != nil {
		s.tenants[tenant.ID] = tenant
	}
}

func (s *userStore) findByEmail(email string) (*account, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	acct, ok := s.byEmail[strings.ToLower(email)]
	return acct, ok
}

func (s *userStore) findByID(id string) (*account, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	acct, ok := s.byID[id]
	return acct, ok
}

func (s *userStore) tenantOf(acct *account) *tenants.Tenant {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.tenants[acct.user.CompanyID]
}

func (s *userStore) setPassword(email, hash string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	acct, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return false
	}
	acct.passwordHash = hash
	return true
}
