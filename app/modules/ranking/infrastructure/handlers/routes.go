package rankinghandlers

import "github.com/go-chi/chi/v5"

// Routes mounts the ranking API on r.
func Routes(r chi.Router, h Handlers, limiter *IPRateLimiter, allowedOrigins []string) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CORSMiddleware(allowedOrigins))
		if limiter != nil {
			r.Use(RateLimitMiddleware(limiter))
		}

		r.Get("/tiers", h.HandleHTTPTiers)
		r.Post("/matches", h.HandleHTTPSubmitMatch)
		r.Post("/imports", h.HandleHTTPImportMatches)

		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Put("/", h.HandleHTTPUpsertPlayer)
			r.Get("/history", h.HandleHTTPHistory)
			r.Get("/history/chart", h.HandleHTTPHistoryChart)
		})

		r.Route("/leaderboards/{format}/{division}", func(r chi.Router) {
			r.Get("/", h.HandleHTTPLeaderboard)
			r.Get("/players/{playerID}", h.HandleHTTPPosition)
		})
	})
}
