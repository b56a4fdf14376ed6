package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

const tokenLifetime = 12 * time.Hour

// LoginRequest represents login credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginResponse represents a successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// HandleLogin authenticates the admin user and issues a JWT.
func HandleLogin(db *gorm.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request")
			return
		}

		var user models.User
		err := db.WithContext(r.Context()).Where("username = ?", req.Username).First(&user).Error
		if err != nil {
			log.Warn().Str("username", req.Username).Msg("login failed: user not found")
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			log.Warn().Str("username", req.Username).Msg("login failed: invalid password")
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		token, err := generateJWT(user.Username, cfg.JWTSecret)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}

		log.Info().Str("username", user.Username).Msg("login successful")
		respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: &user})
	}
}

// HandleLogout acknowledges logout; JWTs are stateless so there is nothing
// to revoke server-side.
func HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
}

// HandleSetup creates the admin account. Only allowed while no user exists.
func HandleSetup(db *gorm.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var count int64
		if err := db.WithContext(r.Context()).Model(&models.User{}).Count(&count).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		if count > 0 {
			respondError(w, http.StatusConflict, "Setup already completed")
			return
		}

		var req LoginRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		if len(req.Password) < 8 {
			respondError(w, http.StatusBadRequest, "Password must be at least 8 characters")
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		user := models.User{
			Username:  req.Username,
			Password:  string(hashed),
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		if err := db.WithContext(r.Context()).Create(&user).Error; err != nil {
			log.Error().Err(err).Msg("failed to create admin user")
			respondError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		token, err := generateJWT(user.Username, cfg.JWTSecret)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}

		log.Info().Str("username", user.Username).Msg("admin account created")
		respondJSON(w, http.StatusCreated, LoginResponse{Token: token, User: &user})
	}
}

// SetupStatusResponse reports whether the admin account exists yet.
type SetupStatusResponse struct {
	SetupComplete bool `json:"setup_complete"`
}

// HandleGetSetupStatus reports whether initial setup has run.
func HandleGetSetupStatus(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var count int64
		if err := db.WithContext(r.Context()).Model(&models.User{}).Count(&count).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		respondJSON(w, http.StatusOK, SetupStatusResponse{SetupComplete: count > 0})
	}
}

// HandleGetCurrentUser returns the authenticated user.
func HandleGetCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(userContextKey).(*models.User)
		if !ok {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		respondJSON(w, http.StatusOK, user)
	}
}

// AuthMiddleware validates the bearer JWT and loads the user into the
// request context.
func AuthMiddleware(jwtSecret string, db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			username, err := parseJWT(tokenString, jwtSecret)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			var user models.User
			if err := db.WithContext(r.Context()).Where("username = ?", username).First(&user).Error; err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func generateJWT(username, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(tokenLifetime).Unix(),
		"iat": time.Now().Unix(),
	})
	return token.SignedString([]byte(secret))
}

func parseJWT(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	username, _ := claims["sub"].(string)
	if username == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return username, nil
}
