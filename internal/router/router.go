package router

import (
	"net/http"

	"wallet-service/internal/config"
	"wallet-service/internal/events"
	"wallet-service/internal/handlers"
	"wallet-service/internal/middleware"
	"wallet-service/internal/services"
	"wallet-service/internal/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func SetupRouter(st store.Store, cfg config.Config, publisher events.Publisher, logger zerolog.Logger) http.Handler {
	tokens := services.NewTokenSet(cfg.SupportedTokens)
	notifier := events.NewNotifier(publisher, logger)

	userService := services.NewUserService(st, logger, cfg.AdminEmails)
	authService := services.NewAuthService(cfg.JWTSecret, cfg.TokenTTL, logger)
	balanceService := services.NewBalanceService(st, logger)
	transactionService := services.NewTransactionService(st, logger)
	withdrawalService := services.NewWithdrawalService(st, userService, tokens, notifier, logger)
	depositService := services.NewDepositService(st, userService, tokens, notifier, logger)

	functionsHandler := handlers.NewFunctionsHandler(userService, withdrawalService, depositService, logger)
	authHandler := handlers.NewAuthHandler(userService, authService, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	walletHandler := handlers.NewWalletHandler(balanceService, transactionService, withdrawalService, depositService, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst, cfg.TrustedProxies)

	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(rateLimiter.Middleware())

	functions := r.PathPrefix("/functions/v1").Subrouter()
	functions.Use(middleware.IdentifyCaller(authService, logger))
	functions.HandleFunc("/approve_withdrawal", functionsHandler.ApproveWithdrawal).Methods("POST")
	functions.HandleFunc("/credit_deposit", functionsHandler.CreditDeposit).Methods("POST")
	functions.HandleFunc("/reject_withdrawal", functionsHandler.RejectWithdrawal).Methods("POST")
	functions.PathPrefix("/").HandlerFunc(functionsHandler.Options).Methods("OPTIONS")

	api := r.PathPrefix("/api/v1").Subrouter()
	jsonBody := middleware.RequestValidation()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Handle("/register", jsonBody(http.HandlerFunc(authHandler.Register))).Methods("POST")
	auth.Handle("/login", jsonBody(http.HandlerFunc(authHandler.Login))).Methods("POST")

	protectedAuth := auth.PathPrefix("").Subrouter()
	protectedAuth.Use(middleware.Authentication(authService, logger))
	protectedAuth.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Authentication(authService, logger))
	protected.HandleFunc("/me", userHandler.Me).Methods("GET")
	protected.HandleFunc("/balances", walletHandler.GetBalances).Methods("GET")
	protected.HandleFunc("/transactions", walletHandler.GetTransactions).Methods("GET")
	protected.HandleFunc("/withdrawals", walletHandler.GetWithdrawals).Methods("GET")
	protected.Handle("/withdrawals", jsonBody(http.HandlerFunc(walletHandler.CreateWithdrawal))).Methods("POST")
	protected.HandleFunc("/deposit-addresses/{token}", walletHandler.GetDepositAddress).Methods("GET")
	protected.HandleFunc("/admin/withdrawals", walletHandler.AdminListWithdrawals).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS wraps the router so preflights for any route are answered before
	// method matching.
	return middleware.ErrorHandling(logger)(middleware.CORS()(r))
}
