// Package auth signs readers and librarians in and decides who is calling.
//
// Users live in the catalog database and log in with a username (or email)
// and password at /accounts/login/. A successful login stores the user id in
// an scs session; Middleware.Handler turns that id into an access.Identity
// on every request, and RequireOperation gates routes with access.Authorize.
// Anonymous callers are redirected to the login page with a next parameter,
// JSON clients get 401.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # CSRF key, generated per process if empty
//	AUTH_SESSION_LIFETIME=24h           # Session duration
//	AUTH_BCRYPT_COST=12                 # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true            # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5           # Failures before lockout
//	AUTH_LOCKOUT_DURATION=30m
//
// When no user exists yet, /setup creates the first superuser.
//
// # Usage
//
//	authService := auth.NewService(userRepo, cfg.Auth)
//	sessions, _ := auth.NewSessionManager(sqlDB, cfg.Database.Driver, cfg.Auth)
//	router.Use(sessions.SessionLoadSave())
//	router.Use(auth.NewMiddleware(authService, sessions).Handler())
//
// Extract the caller in handlers:
//
//	identity := auth.GetIdentity(c) // access.Anonymous() when signed out
package auth
