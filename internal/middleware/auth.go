package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"freight-erp/internal/permission"
	"freight-erp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const profileKey = "profile"

// ProfileLoader returns the live profile of a user. It is called on every request;
// permissions are never cached between requests.
type ProfileLoader interface {
	GetProfile(ctx context.Context, userID string) (*permission.Profile, error)
}

// AuthConfig carries the token settings shared by login, middleware and websocket
type AuthConfig struct {
	Secret        []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
}

type Auth struct {
	cfg      AuthConfig
	profiles ProfileLoader
	log      zerolog.Logger
}

func NewAuth(cfg AuthConfig, profiles ProfileLoader, log zerolog.Logger) *Auth {
	return &Auth{cfg: cfg, profiles: profiles, log: log.With().Str("component", "auth").Logger()}
}

// ParseToken validates an HS256 access token and returns its subject and role claims
func (a *Auth) ParseToken(tokenString string) (userID, role string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.cfg.Secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid token claims")
	}
	userID, _ = claims["sub"].(string)
	role, _ = claims["role"].(string)
	if userID == "" {
		return "", "", errors.New("subject not found in token")
	}
	return userID, role, nil
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func (a *Auth) SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	// cross-origin deployments need SameSite=None, which browsers only accept with Secure
	c.SetSameSite(a.sameSite())
	c.SetCookie("access_token", accessToken, int(a.cfg.AccessTTL.Seconds()), "/", "", a.cfg.SecureCookies, true)
	c.SetCookie("refresh_token", refreshToken, int(a.cfg.RefreshTTL.Seconds()), "/", "", a.cfg.SecureCookies, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func (a *Auth) ClearTokenCookies(c *gin.Context) {
	c.SetSameSite(a.sameSite())
	c.SetCookie("access_token", "", -1, "/", "", a.cfg.SecureCookies, true)
	c.SetCookie("refresh_token", "", -1, "/", "", a.cfg.SecureCookies, true)
}

func (a *Auth) sameSite() http.SameSite {
	if a.cfg.SecureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// tokenFromRequest tries the cookie first, then the Authorization header
func tokenFromRequest(c *gin.Context) (string, string) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, ""
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// RequireAuth validates the token and loads the caller's live profile. Deactivated
// users are rejected even while their token is still valid.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := tokenFromRequest(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}

		userID, _, err := a.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		profile, err := a.profiles.GetProfile(c.Request.Context(), userID)
		if err != nil || profile == nil || !profile.IsActive {
			a.log.Debug().Err(err).Str("user_id", userID).Msg("profile rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User is not active"))
			return
		}

		c.Set(profileKey, profile)
		c.Set("userID", profile.UserID)
		c.Set("userRole", string(profile.Role))
		c.Next()
	}
}

// RequireFeature allows the request when the caller can access any of the feature keys.
// Must run after RequireAuth.
func (a *Auth) RequireFeature(featureKeys ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := CurrentProfile(c)
		if profile == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}
		for _, key := range featureKeys {
			if permission.CanAccessFeature(profile, key) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing feature '"+strings.Join(featureKeys, "' or '")+"'"))
	}
}

// RequireRole allows the request when the caller holds one of roles. Must run after RequireAuth.
func (a *Auth) RequireRole(roles ...permission.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := CurrentProfile(c)
		if profile == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}
		if !permission.IsRole(profile, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}
		c.Next()
	}
}

// CurrentProfile returns the profile loaded by RequireAuth, or nil
func CurrentProfile(c *gin.Context) *permission.Profile {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil
	}
	profile, _ := v.(*permission.Profile)
	return profile
}
