// Package auth is the identity provider: account registration, login and
// the signed session token that tells the rest of the program who the
// current user is.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	gojwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/ids"
)

const (
	issuer            = "mindmap"
	minNameLength     = 2
	minPasswordLength = 8
)

// Identity answers who is signed in.
type Identity interface {
	CurrentUserID() (string, bool)
}

// Static is an Identity with a fixed user. The empty string means nobody
// is signed in.
type Static string

// CurrentUserID implements Identity.
func (s Static) CurrentUserID() (string, bool) {
	return string(s), s != ""
}

// User is an account as stored in the users collection. The users
// document never carries the password hash.
type User struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// record is the full user document; the maps list is owned by the map
// registry and starts out empty.
type record struct {
	User
	Maps []json.RawMessage `json:"maps"`
}

// account is the login credential kept in the accounts collection.
type account struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// Registration is the input to Register.
type Registration struct {
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credentials is the on-disk login state.
type Credentials struct {
	Token string `toml:"token"`
	UID   string `toml:"uid"`
	Email string `toml:"email"`
}

// Provider implements registration, login and token handling.
type Provider struct {
	store     docstore.Store
	secret    []byte
	ttl       time.Duration
	credsPath string
	cost      int
	now       func() time.Time
	server    *accountsClient
}

// NewProvider returns a provider storing accounts in store and the login
// token at credsPath.
func NewProvider(store docstore.Store, secret string, ttl time.Duration, credsPath string) *Provider {
	return &Provider{
		store:     store,
		secret:    []byte(secret),
		ttl:       ttl,
		credsPath: credsPath,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// UseServer sends Register and Login to the document server at baseURL,
// which holds the accounts and the signing secret. Saved tokens are then
// trusted for their subject and expiry; the server checks signatures.
func (p *Provider) UseServer(baseURL string, timeout time.Duration) {
	p.server = newAccountsClient(baseURL, timeout)
}

// CredentialsPath returns the default credentials file under dir.
func CredentialsPath(dir string) string {
	return filepath.Join(dir, "credentials.toml")
}

// Validate checks a registration before anything is written.
func (r Registration) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Name)) < minNameLength {
		return apperr.Validation("name must be at least %d characters", minNameLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.LastName)) < minNameLength {
		return apperr.Validation("last name must be at least %d characters", minNameLength)
	}
	if !validEmail(r.Email) {
		return apperr.Validation("invalid email address %q", r.Email)
	}
	if len(r.Password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

// Register creates an account and signs it in.
func (p *Provider) Register(ctx context.Context, reg Registration) (User, string, error) {
	if err := reg.Validate(); err != nil {
		return User{}, "", err
	}
	var (
		u     User
		token string
		err   error
	)
	if p.server != nil {
		u, token, err = p.server.register(ctx, reg)
	} else {
		u, token, err = p.CreateAccount(ctx, reg)
	}
	if err != nil {
		return User{}, "", err
	}
	return u, token, p.signIn(u, token)
}

// Login checks the password and signs the user in.
func (p *Provider) Login(ctx context.Context, email, password string) (User, string, error) {
	var (
		u     User
		token string
		err   error
	)
	if p.server != nil {
		u, token, err = p.server.login(ctx, email, password)
	} else {
		u, token, err = p.Authenticate(ctx, email, password)
	}
	if err != nil {
		return User{}, "", err
	}
	return u, token, p.signIn(u, token)
}

// CreateAccount writes a new user and its credentials to the store and
// returns a token for it. Nothing is saved on disk.
func (p *Provider) CreateAccount(ctx context.Context, reg Registration) (User, string, error) {
	if err := reg.Validate(); err != nil {
		return User{}, "", err
	}
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if _, err := p.findByEmail(ctx, email); err == nil {
		return User{}, "", apperr.Validation("email already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), p.cost)
	if err != nil {
		return User{}, "", fmt.Errorf("hash password: %w", err)
	}
	u := User{
		UID:       ids.New(),
		Name:      strings.TrimSpace(reg.Name),
		LastName:  strings.TrimSpace(reg.LastName),
		Email:     email,
		CreatedAt: p.now(),
	}
	if err := docstore.SetJSON(ctx, p.store, docstore.Users, u.UID, record{User: u, Maps: []json.RawMessage{}}); err != nil {
		return User{}, "", err
	}
	acct := account{UID: u.UID, Email: email, PasswordHash: string(hash)}
	if err := docstore.SetJSON(ctx, p.store, docstore.Accounts, u.UID, acct); err != nil {
		return User{}, "", err
	}
	token, err := p.IssueToken(u.UID)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Authenticate checks email and password against the store and returns
// the user with a fresh token. Nothing is saved on disk.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (User, string, error) {
	acct, err := p.findByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrNotFound) {
		return User{}, "", apperr.Validation("invalid email or password")
	}
	if err != nil {
		return User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return User{}, "", apperr.Validation("invalid email or password")
	}
	u, err := p.Get(ctx, acct.UID)
	if err != nil {
		return User{}, "", err
	}
	token, err := p.IssueToken(u.UID)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

func (p *Provider) signIn(u User, token string) error {
	return p.saveCredentials(Credentials{Token: token, UID: u.UID, Email: u.Email})
}

// Logout forgets the saved token.
func (p *Provider) Logout() error {
	err := os.Remove(p.credsPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Get returns the account with uid.
func (p *Provider) Get(ctx context.Context, uid string) (User, error) {
	var u User
	if err := docstore.GetJSON(ctx, p.store, docstore.Users, uid, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (p *Provider) findByEmail(ctx context.Context, email string) (account, error) {
	docs, err := p.store.List(ctx, docstore.Accounts)
	if err != nil {
		return account{}, err
	}
	for _, d := range docs {
		var a account
		if d.Decode(&a) != nil {
			continue
		}
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return account{}, apperr.NotFound("user %s", email)
}

// ─── Tokens ───

// IssueToken signs a session token for uid.
func (p *Provider) IssueToken(uid string) (string, error) {
	now := p.now()
	claims := gojwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   uid,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(p.ttl)),
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks a token's signature and expiry and returns its user id.
func (p *Provider) Verify(token string) (string, error) {
	claims := &gojwt.RegisteredClaims{}
	_, err := gojwt.ParseWithClaims(token, claims,
		func(*gojwt.Token) (any, error) { return p.secret, nil },
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(issuer),
		gojwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrNoSession, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrNoSession)
	}
	return claims.Subject, nil
}

// subject returns the user id a saved token speaks for. With a server
// configured only the issuer, subject and expiry are checked locally.
func (p *Provider) subject(token string) (string, error) {
	if p.server == nil {
		return p.Verify(token)
	}
	claims := &gojwt.RegisteredClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrNoSession, err)
	}
	switch {
	case claims.Issuer != issuer:
		return "", fmt.Errorf("%w: unexpected issuer %q", apperr.ErrNoSession, claims.Issuer)
	case claims.ExpiresAt == nil || !p.now().Before(claims.ExpiresAt.Time):
		return "", fmt.Errorf("%w: token expired", apperr.ErrNoSession)
	case claims.Subject == "":
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrNoSession)
	}
	return claims.Subject, nil
}

// Token returns the saved session token, if any.
func (p *Provider) Token() string {
	return SavedToken(p.credsPath)
}

// SavedToken reads the token stored at credsPath without verifying it.
func SavedToken(credsPath string) string {
	creds, err := loadCredentials(credsPath)
	if err != nil {
		return ""
	}
	return creds.Token
}

// Whoami returns the saved credentials when they hold a valid token.
func (p *Provider) Whoami() (Credentials, error) {
	creds, err := loadCredentials(p.credsPath)
	if err != nil || creds.Token == "" {
		return Credentials{}, apperr.ErrNoSession
	}
	if _, err := p.subject(creds.Token); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// CurrentUserID implements Identity using the saved token. A missing,
// expired or forged token means nobody is signed in.
func (p *Provider) CurrentUserID() (string, bool) {
	token := p.Token()
	if token == "" {
		return "", false
	}
	uid, err := p.subject(token)
	if err != nil {
		return "", false
	}
	return uid, true
}

func loadCredentials(path string) (Credentials, error) {
	var creds Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}
	err = toml.Unmarshal(data, &creds)
	return creds, err
}

func (p *Provider) saveCredentials(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(p.credsPath), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(p.credsPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(creds)
}
