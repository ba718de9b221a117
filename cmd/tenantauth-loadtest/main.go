// Command tenantauth-loadtest drives the engine through the full
// register / login / authorize / refresh cycle and prints throughput
// and the engine's own metric counters.
//
// It is fully self-contained: Redis is an embedded miniredis and the
// directory is in memory, so the numbers reflect the engine itself
// rather than network round-trips.
//
// Usage:
//
//	go run ./cmd/tenantauth-loadtest -workers 8 -duration 10s
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hexleaf/tenantauth"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	workers := flag.Int("workers", 4, "concurrent worker goroutines")
	duration := flag.Duration("duration", 5*time.Second, "how long to run")
	flag.Parse()

	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := tenantauth.DevelopmentConfig([]byte("loadtest-secret-key-0123456789abc"))
	// Keep argon2 at its floor so the run measures the engine, not the KDF.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Registration.MaxAttemptsPerMail = 1 << 20
	cfg.Registration.MaxAttemptsPerIP = 1 << 20

	engine, err := tenantauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(newLoadDirectory()).
		Build()
	if err != nil {
		log.Fatal("engine build:", err)
	}
	defer engine.Close()

	ctx := context.Background()
	deadline := time.Now().Add(*duration)

	var logins, refreshes, authorizes, failures atomic.Uint64

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()

			email := fmt.Sprintf("load-%d@example.com", w)
			const pass = "correct-horse-42X"

			reg, err := engine.Register(ctx, tenantauth.RegisterRequest{
				Email:            email,
				Password:         pass,
				OrganizationName: fmt.Sprintf("org-%d", w),
			})
			if err != nil {
				log.Printf("worker %d register: %v", w, err)
				return
			}

			access := reg.AccessToken
			refresh := reg.RefreshToken

			for time.Now().Before(deadline) {
				if _, err := engine.Authorize(ctx, access, ""); err != nil {
					failures.Add(1)
				} else {
					authorizes.Add(1)
				}

				res, err := engine.Refresh(ctx, refresh)
				if err != nil {
					failures.Add(1)
					continue
				}
				access = res.AccessToken
				refresh = res.RefreshToken
				refreshes.Add(1)

				login, err := engine.Login(ctx, email, pass, reg.OrganizationID)
				if err != nil {
					failures.Add(1)
					continue
				}
				access = login.AccessToken
				refresh = login.RefreshToken
				logins.Add(1)
			}
		}(w)
	}
	wg.Wait()

	elapsed := duration.Seconds()
	fmt.Printf("workers=%d duration=%s\n", *workers, *duration)
	fmt.Printf("logins:     %8d (%.0f/s)\n", logins.Load(), float64(logins.Load())/elapsed)
	fmt.Printf("refreshes:  %8d (%.0f/s)\n", refreshes.Load(), float64(refreshes.Load())/elapsed)
	fmt.Printf("authorizes: %8d (%.0f/s)\n", authorizes.Load(), float64(authorizes.Load())/elapsed)
	fmt.Printf("failures:   %8d\n", failures.Load())

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine counters: login_success=%d refresh_success=%d authorize_accepted=%d reuse_detected=%d\n",
		snap.Counters[tenantauth.MetricLoginSuccess],
		snap.Counters[tenantauth.MetricRefreshSuccess],
		snap.Counters[tenantauth.MetricAuthorizeAccepted],
		snap.Counters[tenantauth.MetricRefreshReuseDetected],
	)
	if buckets, ok := snap.Histograms[tenantauth.MetricAuthorizeLatency]; ok {
		fmt.Printf("authorize latency buckets: %v\n", buckets)
	}
}

// loadDirectory is an in-memory directory behind a single RWMutex,
// enough to keep the engine busy without a database.
type loadDirectory struct {
	mu            sync.RWMutex
	identities    map[string]tenantauth.IdentityRecord
	emailIndex    map[string]string
	organizations map[string]tenantauth.OrganizationRecord
	memberships   map[string]tenantauth.MembershipRecord
}

func newLoadDirectory() *loadDirectory {
	return &loadDirectory{
		identities:    make(map[string]tenantauth.IdentityRecord),
		emailIndex:    make(map[string]string),
		organizations: make(map[string]tenantauth.OrganizationRecord),
		memberships:   make(map[string]tenantauth.MembershipRecord),
	}
}

func (d *loadDirectory) FindIdentityByEmail(_ context.Context, email string) (tenantauth.IdentityRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.emailIndex[email]
	if !ok {
		return tenantauth.IdentityRecord{}, tenantauth.ErrIdentityNotFound
	}
	return d.identities[id], nil
}

func (d *loadDirectory) FindIdentityByID(_ context.Context, identityID string) (tenantauth.IdentityRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	identity, ok := d.identities[identityID]
	if !ok {
		return tenantauth.IdentityRecord{}, tenantauth.ErrIdentityNotFound
	}
	return identity, nil
}

func (d *loadDirectory) CreateIdentity(_ context.Context, identity tenantauth.IdentityRecord) (tenantauth.IdentityRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.emailIndex[identity.Email]; exists {
		return tenantauth.IdentityRecord{}, tenantauth.ErrDuplicateEmail
	}
	identity.ID = uuid.NewString()
	d.identities[identity.ID] = identity
	d.emailIndex[identity.Email] = identity.ID
	return identity, nil
}

func (d *loadDirectory) UpdatePasswordHash(_ context.Context, identityID, hash, algorithm string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	identity, ok := d.identities[identityID]
	if !ok {
		return tenantauth.ErrIdentityNotFound
	}
	identity.PasswordHash = hash
	identity.PasswordAlgorithm = algorithm
	d.identities[identityID] = identity
	return nil
}

func (d *loadDirectory) CreateOrganization(_ context.Context, org tenantauth.OrganizationRecord) (tenantauth.OrganizationRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	org.ID = uuid.NewString()
	d.organizations[org.ID] = org
	return org, nil
}

func (d *loadDirectory) FindOrganizationByID(_ context.Context, orgID string) (tenantauth.OrganizationRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	org, ok := d.organizations[orgID]
	if !ok {
		return tenantauth.OrganizationRecord{}, tenantauth.ErrOrganizationNotFound
	}
	return org, nil
}

func (d *loadDirectory) CreateMembership(_ context.Context, membership tenantauth.MembershipRecord) (tenantauth.MembershipRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.memberships {
		if m.IdentityID == membership.IdentityID && m.OrganizationID == membership.OrganizationID {
			return tenantauth.MembershipRecord{}, tenantauth.ErrAlreadyMember
		}
	}
	membership.ID = uuid.NewString()
	d.memberships[membership.ID] = membership
	return membership, nil
}

func (d *loadDirectory) FindMembership(_ context.Context, identityID, orgID string) (tenantauth.MembershipRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.memberships {
		if m.IdentityID == identityID && m.OrganizationID == orgID {
			return m, nil
		}
	}
	return tenantauth.MembershipRecord{}, tenantauth.ErrMembershipNotFound
}

func (d *loadDirectory) ListMembershipsForIdentity(_ context.Context, identityID string) ([]tenantauth.MembershipRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []tenantauth.MembershipRecord
	for _, m := range d.memberships {
		if m.IdentityID == identityID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *loadDirectory) ListMembershipsForOrganization(_ context.Context, orgID string) ([]tenantauth.MembershipRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []tenantauth.MembershipRecord
	for _, m := range d.memberships {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *loadDirectory) UpdateMembershipRole(_ context.Context, membershipID, newRole string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memberships[membershipID]
	if !ok {
		return tenantauth.ErrMembershipNotFound
	}
	m.Role = newRole
	d.memberships[membershipID] = m
	return nil
}

func (d *loadDirectory) DeleteMembership(_ context.Context, membershipID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.memberships, membershipID)
	return nil
}
