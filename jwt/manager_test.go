package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"
)

func testHSConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "tenantauth-test",
	}
}

func TestCreateParseRoundTrip(t *testing.T) {
	m, err := NewManager(testHSConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, err := m.CreateAccess("idn_1", "org_1", "mem_1", "admin", "sess_1")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.UID != "idn_1" || claims.OID != "org_1" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.MID != "mem_1" || claims.Role != "admin" || claims.SID != "sess_1" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Issuer != "tenantauth-test" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	m, err := NewManager(testHSConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, err := m.CreateAccess("idn_1", "org_1", "mem_1", "member", "sess_1")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", tok)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.ParseAccess(tampered); err == nil {
		t.Fatal("tampered signature accepted")
	}

	if _, err := m.ParseAccess("not.a.token"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	a, err := NewManager(testHSConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	otherCfg := testHSConfig()
	otherCfg.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	b, err := NewManager(otherCfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, err := a.CreateAccess("idn_1", "org_1", "mem_1", "member", "sess_1")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	if _, err := b.ParseAccess(tok); err == nil {
		t.Fatal("token signed with a different key accepted")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issued := time.Now().Add(-time.Hour)

	cfg := testHSConfig()
	cfg.AccessTTL = 5 * time.Minute
	cfg.Now = func() time.Time { return issued }
	issuer, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tok, err := issuer.CreateAccess("idn_1", "org_1", "mem_1", "member", "sess_1")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	verifier, err := NewManager(testHSConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := verifier.ParseAccess(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseRejectsFutureIAT(t *testing.T) {
	cfg := testHSConfig()
	cfg.Now = func() time.Time { return time.Now().Add(time.Hour) }
	issuer, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tok, err := issuer.CreateAccess("idn_1", "org_1", "mem_1", "member", "sess_1")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}

	verifier, err := NewManager(testHSConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := verifier.ParseAccess(tok); err == nil {
		t.Fatal("token issued an hour in the future accepted")
	}
}

func TestParseRequiresIdentityAndOrgClaims(t *testing.T) {
	m, err := NewManager(testHSConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, err := m.CreateAccess("idn_1", "", "", "", "")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	if _, err := m.ParseAccess(tok); err == nil {
		t.Fatal("token without organization claim accepted")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     10 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, err := m.CreateAccess("idn_9", "org_9", "mem_9", "owner", "sess_9")
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Role != "owner" {
		t.Fatalf("role = %q", claims.Role)
	}
}

func TestNewManagerConfigValidation(t *testing.T) {
	cfg := testHSConfig()
	cfg.AccessTTL = 0
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("zero TTL accepted")
	}

	cfg = testHSConfig()
	cfg.PrivateKey = nil
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("hs256 without secret accepted")
	}

	if _, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
	}); err == nil {
		t.Fatal("ed25519 without any verify key accepted")
	}

	cfg = testHSConfig()
	cfg.SigningMethod = "rs256"
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("unsupported method accepted")
	}
}
