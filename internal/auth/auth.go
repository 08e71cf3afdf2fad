// Package auth keeps local practice accounts: signup, login and session tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"finwise/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidEmail       = errors.New("please enter a valid email")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidAge         = errors.New("please enter a valid age (18-100)")
	ErrInvalidIncomeType  = errors.New("income type must be salaried, freelance, business or student")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var incomeTypes = map[string]bool{"salaried": true, "freelance": true, "business": true, "student": true}

const (
	DemoEmail    = "demo@finwise.app"
	demoPassword = "demo123"
)

// User is the stored auth record.
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Age                int       `json:"age"`
	IncomeType         string    `json:"income_type"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	JoinedAt           time.Time `json:"joined_at"`
	PasswordHash       string    `json:"password_hash"`
}

// PublicUser is a User without its password hash.
type PublicUser struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Age                int       `json:"age"`
	IncomeType         string    `json:"income_type"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	JoinedAt           time.Time `json:"joined_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Age:                u.Age,
		IncomeType:         u.IncomeType,
		OnboardingComplete: u.OnboardingComplete,
		JoinedAt:           u.JoinedAt,
	}
}

type Session struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        PublicUser `json:"user"`
}

type SignupInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Age        int    `json:"age"`
	IncomeType string `json:"income_type"`
}

type Options struct {
	TTL        time.Duration
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	kv     storage.Store
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewService(kv storage.Store, secret string, opts Options) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 12
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{kv: kv, secret: []byte(secret), ttl: opts.TTL, cost: opts.BcryptCost, now: opts.Now}, nil
}

func ValidateSignup(in SignupInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if !emailRE.MatchString(strings.TrimSpace(in.Email)) {
		return ErrInvalidEmail
	}
	if len(in.Password) < 6 {
		return ErrWeakPassword
	}
	if in.Age < 18 || in.Age > 100 {
		return ErrInvalidAge
	}
	if in.IncomeType != "" && !incomeTypes[in.IncomeType] {
		return ErrInvalidIncomeType
	}
	return nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	if err := ValidateSignup(in); err != nil {
		return Session{}, err
	}
	email := storage.NormalizeEmail(in.Email)
	if _, err := s.load(ctx, email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	incomeType := in.IncomeType
	if incomeType == "" {
		incomeType = "salaried"
	}
	user := User{
		ID:           "user_" + uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Age:          in.Age,
		IncomeType:   incomeType,
		JoinedAt:     s.now().UTC(),
		PasswordHash: string(hash),
	}
	if err := s.save(ctx, user); err != nil {
		return Session{}, err
	}
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.load(ctx, storage.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// Demo logs into the shared demo account, creating it on first use.
func (s *Service) Demo(ctx context.Context) (Session, error) {
	sess, err := s.Login(ctx, DemoEmail, demoPassword)
	if err == nil || !errors.Is(err, ErrInvalidCredentials) {
		return sess, err
	}
	return s.Signup(ctx, SignupInput{Name: "Demo User", Email: DemoEmail, Password: demoPassword, Age: 25, IncomeType: "salaried"})
}

func (s *Service) User(ctx context.Context, email string) (User, error) {
	return s.load(ctx, storage.NormalizeEmail(email))
}

// MarkOnboarded flips the onboarding flag on the auth record.
func (s *Service) MarkOnboarded(ctx context.Context, email string) (User, error) {
	user, err := s.load(ctx, storage.NormalizeEmail(email))
	if err != nil {
		return User{}, err
	}
	if user.OnboardingComplete {
		return user, nil
	}
	user.OnboardingComplete = true
	if err := s.save(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) ParseToken(raw string) (*Claims, error) {
	return parseToken(s.secret, raw, s.now())
}

func (s *Service) session(user User) (Session, error) {
	token, err := generateToken(s.secret, user.ID, user.Email, s.now(), s.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.ttl / time.Second),
		User:        user.Public(),
	}, nil
}

func (s *Service) load(ctx context.Context, email string) (User, error) {
	raw, err := s.kv.Get(ctx, storage.UserKey(email))
	if errors.Is(err, storage.ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

func (s *Service) save(ctx context.Context, user User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Put(ctx, storage.UserKey(user.Email), raw); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
